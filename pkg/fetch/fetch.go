// Package fetch materializes catalog atlas files in a local cache
// directory, downloading each file only when it is not already present.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/voxelai/parcpak/internal/models"
	"github.com/voxelai/parcpak/pkg/catalog"
)

// DefaultCacheDir is the cache directory name under the user's home
const DefaultCacheDir = "parcpak_data"

// Config locates the cache and the remote repository
type Config struct {
	// CacheRoot is the directory files are stored in. Empty means
	// <home>/parcpak_data.
	CacheRoot string

	// BaseURL is the root of the atlas repository. Empty means
	// catalog.DefaultBaseURL.
	BaseURL string
}

// DefaultCacheRoot returns <home>/parcpak_data
func DefaultCacheRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for the default cache: %w", err)
	}
	return filepath.Join(home, DefaultCacheDir), nil
}

// Fetcher resolves atlas specs to cached files. It holds no state between
// calls beyond the files on disk.
type Fetcher struct {
	cacheRoot string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithLogger sets the logger that receives transfer notices
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher from cfg. The cache directory is not created until
// the first transfer.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	root := cfg.CacheRoot
	if root == "" {
		var err error
		if root, err = DefaultCacheRoot(); err != nil {
			return nil, err
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid cache root %q: %w", cfg.CacheRoot, err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = catalog.DefaultBaseURL
	}

	f := &Fetcher{
		cacheRoot: root,
		baseURL:   baseURL,
		client:    http.DefaultClient,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CacheRoot returns the absolute cache directory
func (f *Fetcher) CacheRoot() string {
	return f.cacheRoot
}

// BaseURL returns the repository root used to build catalog URLs
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Path returns the cache path a URL is stored at
func (f *Fetcher) Path(url string) string {
	return filepath.Join(f.cacheRoot, catalog.Basename(url))
}

// Resolve makes the label image and label table of spec available locally.
// Files already in the cache are left untouched unless overwrite is set.
func (f *Fetcher) Resolve(ctx context.Context, spec models.AtlasSpec, overwrite bool) (models.CachedAtlas, error) {
	image, err := f.download(ctx, spec.Name, spec.LabelImageURL, overwrite)
	if err != nil {
		return models.CachedAtlas{}, err
	}
	table, err := f.download(ctx, spec.Name, spec.LabelTableURL, overwrite)
	if err != nil {
		return models.CachedAtlas{}, err
	}
	return models.CachedAtlas{
		Name:           spec.Name,
		LabelImagePath: image,
		LabelTablePath: table,
	}, nil
}

// ResolveCatalog resolves every catalog atlas at res, in catalog order
func (f *Fetcher) ResolveCatalog(ctx context.Context, res models.Resolution, overwrite bool) ([]models.CachedAtlas, error) {
	specs, err := catalog.Specs(f.baseURL, res)
	if err != nil {
		return nil, err
	}

	atlases := make([]models.CachedAtlas, 0, len(specs))
	for _, spec := range specs {
		atlas, err := f.Resolve(ctx, spec, overwrite)
		if err != nil {
			return nil, err
		}
		atlases = append(atlases, atlas)
	}
	return atlases, nil
}

// download fetches url into the cache unless it is already there. The body
// is written to a temporary file and renamed into place so an interrupted
// transfer never leaves a partial file at the target path.
func (f *Fetcher) download(ctx context.Context, atlas, url string, overwrite bool) (string, error) {
	target := f.Path(url)
	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			f.logger.Debug("using cached file", zap.String("path", target))
			return target, nil
		}
	}

	fail := func(status int, err error) (string, error) {
		return "", &models.TransferError{URL: url, Atlas: atlas, StatusCode: status, Err: err}
	}

	if err := os.MkdirAll(f.cacheRoot, 0755); err != nil {
		return fail(0, fmt.Errorf("failed to create cache directory: %w", err))
	}

	f.logger.Info("Downloading", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	tmp, err := os.CreateTemp(f.cacheRoot, "."+filepath.Base(target)+".*.part")
	if err != nil {
		return fail(0, fmt.Errorf("failed to create temporary file: %w", err))
	}
	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fail(resp.StatusCode, fmt.Errorf("failed to write %s: %w", target, err))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fail(resp.StatusCode, fmt.Errorf("failed to move download into place: %w", err))
	}

	f.logger.Info("Downloaded",
		zap.String("url", url),
		zap.String("path", target),
		zap.String("size", humanize.Bytes(uint64(n))))
	return target, nil
}
