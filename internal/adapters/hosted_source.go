package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"pub/internal/metrics"
	"pub/internal/ports"
	"pub/internal/shared"
	"pub/internal/types"
	"pub/internal/version"
)

const hostedAccept = "application/vnd.pub.v2+json"

type hostedListingDocument struct {
	Name     string                  `json:"name"`
	Versions []hostedVersionDocument `json:"versions"`
}

type hostedVersionDocument struct {
	Version       string          `json:"version"`
	Pubspec       json.RawMessage `json:"pubspec"`
	ArchiveURL    string          `json:"archive_url"`
	ArchiveSHA256 string          `json:"archive_sha256"`
}

type hostedVersion struct {
	version hostedVersionDocument
	parsed  version.Version
}

type hostedListing struct {
	versions []hostedVersion
}

func (l hostedListing) find(v version.Version) (hostedVersionDocument, bool) {
	for _, entry := range l.versions {
		if entry.parsed.Equal(v) {
			return entry.version, true
		}
	}
	return hostedVersionDocument{}, false
}

type HostedSourceConfig struct {
	Transport ports.TransportPort
	Cache     ports.SystemCachePort
	Pubspecs  ports.PubspecPort
	// Listings is optional; online runs record into it and offline runs
	// read from it.
	Listings ports.ListingStorePort
	Offline  bool
	Metrics  *metrics.Metrics
}

// HostedSource serves packages from a pub registry over HTTP.
type HostedSource struct {
	cfg      HostedSourceConfig
	mu       sync.Mutex
	listings map[string]hostedListing
	group    singleflight.Group
}

func NewHostedSource(cfg HostedSourceConfig) *HostedSource {
	return &HostedSource{cfg: cfg, listings: map[string]hostedListing{}}
}

func (s *HostedSource) Kind() types.SourceKind {
	return types.SourceKindHosted
}

func (s *HostedSource) Versions(ctx context.Context, ref types.PackageRef) ([]version.Version, error) {
	listing, err := s.listing(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := make([]version.Version, 0, len(listing.versions))
	for _, entry := range listing.versions {
		out = append(out, entry.parsed)
	}
	return out, nil
}

func (s *HostedSource) Describe(ctx context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error) {
	listing, err := s.listing(ctx, ref)
	if err != nil {
		return types.PackageID{}, err
	}
	entry, ok := listing.find(v)
	if !ok {
		return types.PackageID{}, &types.VersionNotFoundError{Package: ref, Version: v.String()}
	}
	return types.PackageID{
		Name:        ref.Name,
		Description: ref.Description,
		Version:     v,
		SHA256:      strings.ToLower(entry.ArchiveSHA256),
	}, nil
}

func (s *HostedSource) Pubspec(ctx context.Context, id types.PackageID) (types.Pubspec, error) {
	listing, err := s.listing(ctx, id.Ref())
	if err != nil {
		return types.Pubspec{}, err
	}
	entry, ok := listing.find(id.Version)
	if !ok {
		return types.Pubspec{}, &types.VersionNotFoundError{Package: id.Ref(), Version: id.Version.String()}
	}
	spec, err := s.cfg.Pubspecs.Parse(entry.Pubspec, "")
	if err != nil {
		return types.Pubspec{}, fmt.Errorf("pubspec of %s: %w", id, err)
	}
	if spec.Name != id.Name {
		return types.Pubspec{}, &types.DescriptorMismatchError{Expected: id.Name, Actual: spec.Name, Location: id.Description.URL}
	}
	return spec, nil
}

// Get downloads the archive of id into dest, checking its digest.
func (s *HostedSource) Get(ctx context.Context, id types.PackageID, dest string) error {
	if s.cfg.Offline {
		return &types.PackageNotFoundError{Package: id.Ref(), Hint: "not in the system cache while offline"}
	}
	listing, err := s.listing(ctx, id.Ref())
	if err != nil {
		return err
	}
	entry, ok := listing.find(id.Version)
	if !ok {
		return &types.VersionNotFoundError{Package: id.Ref(), Version: id.Version.String()}
	}
	archiveURL := entry.ArchiveURL
	if archiveURL == "" {
		archiveURL = fmt.Sprintf("%s/packages/%s/versions/%s.tar.gz", strings.TrimSuffix(id.Description.URL, "/"), url.PathEscape(id.Name), id.Version)
	}

	tmp, err := os.CreateTemp("", "pub-archive-*.tar.gz")
	if err != nil {
		return &types.CacheError{Key: id.String(), Op: "download", Cause: err}
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	s.cfg.Metrics.Request(string(types.SourceKindHosted), "archive")
	hash := sha256.New()
	if err := s.cfg.Transport.Download(ctx, archiveURL, io.MultiWriter(tmp, hash)); err != nil {
		return s.classify(ctx, id.Ref(), archiveURL, err)
	}
	want := id.SHA256
	if want == "" {
		want = strings.ToLower(entry.ArchiveSHA256)
	}
	if got := hex.EncodeToString(hash.Sum(nil)); want != "" && got != want {
		return &types.SourceUnavailableError{
			Package: id.Ref(),
			URL:     archiveURL,
			Cause:   fmt.Errorf("archive sha256 %s does not match expected %s", got, want),
		}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return &types.CacheError{Key: id.String(), Op: "download", Cause: err}
	}
	if err := extractTarGz(tmp, dest); err != nil {
		return &types.SourceUnavailableError{Package: id.Ref(), URL: archiveURL, Cause: err}
	}
	log.Ctx(ctx).Debug().Str("package", id.Name).Str("version", id.Version.String()).Msg("downloaded archive")
	return nil
}

func (s *HostedSource) Materialize(ctx context.Context, id types.PackageID) (string, error) {
	key := hostedCacheKey(id)
	if s.cfg.Offline && !s.cfg.Cache.Contains(key) {
		return "", &types.PackageNotFoundError{Package: id.Ref(), Hint: "not in the system cache while offline"}
	}
	return s.cfg.Cache.Ensure(ctx, key, func(ctx context.Context, dir string) error {
		return s.Get(ctx, id, dir)
	})
}

func hostedCacheKey(id types.PackageID) types.CacheKey {
	return types.CacheKey{
		Kind:    types.SourceKindHosted,
		Scope:   shared.HostSegment(id.Description.URL),
		Name:    id.Name,
		Version: id.Version.String(),
	}
}

func (s *HostedSource) listing(ctx context.Context, ref types.PackageRef) (hostedListing, error) {
	key := ref.Key()
	s.mu.Lock()
	cached, ok := s.listings[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		listing, err := s.loadListing(ctx, ref)
		if err != nil {
			return hostedListing{}, err
		}
		s.mu.Lock()
		s.listings[key] = listing
		s.mu.Unlock()
		return listing, nil
	})
	if err != nil {
		return hostedListing{}, err
	}
	return value.(hostedListing), nil
}

func (s *HostedSource) loadListing(ctx context.Context, ref types.PackageRef) (hostedListing, error) {
	registry := strings.TrimSuffix(ref.Description.URL, "/")
	listingURL := fmt.Sprintf("%s/api/packages/%s", registry, url.PathEscape(ref.Name))

	var data []byte
	if s.cfg.Offline {
		if s.cfg.Listings == nil {
			return hostedListing{}, &types.PackageNotFoundError{Package: ref, Hint: "no listing store while offline"}
		}
		stored, found, err := s.cfg.Listings.Get(registry, ref.Name)
		if err != nil {
			return hostedListing{}, &types.SourceUnavailableError{Package: ref, URL: listingURL, Cause: err}
		}
		if !found {
			return hostedListing{}, &types.PackageNotFoundError{Package: ref, Hint: "not cached for offline use"}
		}
		data = stored
	} else {
		s.cfg.Metrics.Request(string(types.SourceKindHosted), "listing")
		fetched, err := s.cfg.Transport.Fetch(ctx, listingURL, hostedAccept)
		if err != nil {
			return hostedListing{}, s.classify(ctx, ref, listingURL, err)
		}
		data = fetched
	}

	var doc hostedListingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return hostedListing{}, &types.SourceUnavailableError{Package: ref, URL: listingURL, Cause: fmt.Errorf("malformed listing: %w", err)}
	}
	if doc.Name != "" && doc.Name != ref.Name {
		return hostedListing{}, &types.DescriptorMismatchError{Expected: ref.Name, Actual: doc.Name, Location: listingURL}
	}
	if !s.cfg.Offline && s.cfg.Listings != nil {
		if err := s.cfg.Listings.Put(registry, ref.Name, data); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("package", ref.Name).Msg("failed to record listing for offline use")
		}
	}

	listing := hostedListing{}
	seen := map[string]bool{}
	for _, entry := range doc.Versions {
		v, err := version.Parse(entry.Version)
		if err != nil {
			log.Ctx(ctx).Debug().Str("package", ref.Name).Str("version", entry.Version).Msg("skipping unparsable version")
			continue
		}
		if seen[v.String()] {
			continue
		}
		if s.cfg.Offline {
			id := types.PackageID{Name: ref.Name, Description: ref.Description, Version: v}
			if !s.cfg.Cache.Contains(hostedCacheKey(id)) {
				continue
			}
		}
		seen[v.String()] = true
		listing.versions = append(listing.versions, hostedVersion{version: entry, parsed: v})
	}
	sortHostedDescending(listing.versions)
	log.Ctx(ctx).Debug().Str("package", ref.Name).Int("versions", len(listing.versions)).Bool("offline", s.cfg.Offline).Msg("loaded listing")
	return listing, nil
}

func (s *HostedSource) classify(ctx context.Context, ref types.PackageRef, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var status *shared.HTTPStatusError
	if errors.As(err, &status) && status.Status == http.StatusNotFound {
		return &types.PackageNotFoundError{Package: ref, Hint: "not found at " + target}
	}
	return &types.SourceUnavailableError{Package: ref, URL: target, Cause: err}
}

func sortHostedDescending(entries []hostedVersion) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].parsed.Less(entries[i].parsed)
	})
}

var _ ports.SourcePort = (*HostedSource)(nil)
