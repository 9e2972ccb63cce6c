package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readalong/internal/cache"
)

// ErrNotFound is returned when a bundle resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Source reads named resources from a textbook bundle. Names are slash
// separated and relative to the bundle root.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Location() string
}

// DirSource reads a bundle from a local directory.
type DirSource struct {
	Root string
}

// Read implements Source.
func (s DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

// Location implements Source.
func (s DirSource) Location() string { return s.Root }

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	RequestsPerMinute int
	Timeout           time.Duration
	Cache             *cache.Manager
}

// HTTPSource reads a bundle published under a base URL. Requests are
// rate limited and responses go through the resource cache.
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Manager
}

// NewHTTPSource creates a source for the bundle at base.
func NewHTTPSource(base string, cfg HTTPConfig) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid bundle url: %w", err)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPSource{
		base:    u,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 4),
		cache:   cfg.Cache,
	}, nil
}

// Read implements Source.
func (s *HTTPSource) Read(ctx context.Context, name string) ([]byte, error) {
	key := cache.Key(s.base.String(), name)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	ref, err := url.Parse(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("invalid resource name %q: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("unable to fetch %s: %s", name, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", name, err)
	}

	if s.cache != nil {
		if err := s.cache.Put(key, data); err != nil {
			log.Debug("unable to cache resource", "name", name, "error", err)
		}
	}
	return data, nil
}

// Location implements Source.
func (s *HTTPSource) Location() string { return s.base.String() }

// IsRemote reports whether loc names an HTTP bundle.
func IsRemote(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}
