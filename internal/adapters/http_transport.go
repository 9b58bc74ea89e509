package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pub/internal/ports"
	"pub/internal/shared"
)

const defaultHTTPTimeout = 60 * time.Second
const defaultHTTPRetries = 3
const defaultHTTPRetryDelay = 200 * time.Millisecond
const maxHTTPRetryDelay = 2 * time.Second
const maxErrorBody = 512

type HTTPConfig struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	UserAgent  string
}

// NormalizeHTTPConfig fills zero fields with defaults.
func NormalizeHTTPConfig(timeoutSec int, retries int, delayMs int) HTTPConfig {
	cfg := HTTPConfig{
		Timeout:    time.Duration(timeoutSec) * time.Second,
		Retries:    retries,
		RetryDelay: time.Duration(delayMs) * time.Millisecond,
		UserAgent:  "pub",
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultHTTPRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultHTTPRetryDelay
	}
	return cfg
}

// HTTPTransport performs GET requests with exponential backoff. Network
// errors, 5xx and 429 responses are retried; any other non-2xx status is
// returned at once as *shared.HTTPStatusError.
type HTTPTransport struct {
	client *http.Client
	cfg    HTTPConfig
}

func NewHTTPTransport(cfg HTTPConfig) HTTPTransport {
	return HTTPTransport{client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

func (t HTTPTransport) Fetch(ctx context.Context, url string, accept string) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.do(ctx, url, accept, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t HTTPTransport) Download(ctx context.Context, url string, w io.Writer) error {
	return t.do(ctx, url, "", w)
}

func (t HTTPTransport) do(ctx context.Context, url string, accept string, w io.Writer) error {
	var lastErr error
	for attempt := 0; attempt < t.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := httpRetryDelay(attempt-1, t.cfg)
			log.Ctx(ctx).Debug().Str("url", url).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to create request").
				WithCause(err)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		req.Header.Set("User-Agent", t.cfg.UserAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			statusErr := &shared.HTTPStatusError{Status: resp.StatusCode, URL: url, Body: string(bytes.TrimSpace(body))}
			if statusErr.Retryable() {
				lastErr = statusErr
				continue
			}
			return statusErr
		}
		_, err = io.Copy(w, resp.Body)
		resp.Body.Close()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", url, err)
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("request failed")
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", url, t.cfg.Retries, lastErr)
}

func httpRetryDelay(attempt int, cfg HTTPConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<attempt)
	if delay > maxHTTPRetryDelay {
		delay = maxHTTPRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

var _ ports.TransportPort = HTTPTransport{}
