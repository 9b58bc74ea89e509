package ports

import (
	"context"
	"io"
)

// TransportPort fetches bytes over HTTP with retries.
type TransportPort interface {
	Fetch(ctx context.Context, url string, accept string) ([]byte, error)
	Download(ctx context.Context, url string, w io.Writer) error
}
