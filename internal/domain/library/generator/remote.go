package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuentacuentos/internal/domain/library"

	"github.com/sirupsen/logrus"
)

// RemoteCache fetches a JSON story catalog over HTTP and keeps a local copy
// that is reused while it is younger than maxAge.
type RemoteCache struct {
	url        string
	cacheDir   string
	cacheFile  string
	maxAge     time.Duration
	httpClient *http.Client
}

// CachedCatalog is the on-disk cache format.
type CachedCatalog struct {
	Library      library.StoryLibrary `json:"library"`
	LastUpdated  time.Time            `json:"last_updated"`
	TotalStories int                  `json:"total_stories"`
}

// CacheInfo describes the cache file for the status command.
type CacheInfo struct {
	Exists       bool
	Path         string
	Size         int64
	LastModified time.Time
	Fresh        bool
	MaxAge       time.Duration
}

var _ StoryGenerator = (*RemoteCache)(nil)

// NewRemoteCache creates a remote catalog cache instance
func NewRemoteCache(url, cacheDir string, maxAge time.Duration) *RemoteCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create catalog cache directory")
	}

	return &RemoteCache{
		url:       url,
		cacheDir:  cacheDir,
		cacheFile: filepath.Join(cacheDir, "catalog_cache.json"),
		maxAge:    maxAge,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (rc *RemoteCache) Name() string {
	return "remote:" + rc.url
}

// Load returns the remote library, from cache while it is fresh. When the
// fetch fails a stale cache is still preferred over nothing.
func (rc *RemoteCache) Load(ctx context.Context) (*library.StoryLibrary, error) {
	if rc.isCacheFresh() {
		logrus.Debug("Loading remote catalog from cache")
		return rc.loadFromCache()
	}

	logrus.WithField("url", rc.url).Info("Fetching remote story catalog")
	lib, err := rc.fetch(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Catalog fetch failed, trying stale cache")
		if cached, cacheErr := rc.loadFromCache(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch catalog and no cache available: %w", err)
	}

	if err := rc.saveToCache(lib); err != nil {
		logrus.WithError(err).Warn("Failed to save catalog cache")
	}

	return lib, nil
}

// Refresh drops the cache and fetches again.
func (rc *RemoteCache) Refresh(ctx context.Context) (*library.StoryLibrary, error) {
	if err := rc.ClearCache(); err != nil {
		return nil, err
	}
	return rc.Load(ctx)
}

func (rc *RemoteCache) isCacheFresh() bool {
	info, err := os.Stat(rc.cacheFile)
	if err != nil {
		return false
	}

	return time.Since(info.ModTime()) < rc.maxAge
}

func (rc *RemoteCache) loadFromCache() (*library.StoryLibrary, error) {
	file, err := os.Open(rc.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var cached CachedCatalog
	if err := json.NewDecoder(file).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"stories":      len(cached.Library.Stories),
		"last_updated": cached.LastUpdated.Format(time.RFC3339),
	}).Debug("Loaded story catalog from cache")

	return &cached.Library, nil
}

func (rc *RemoteCache) saveToCache(lib *library.StoryLibrary) error {
	cached := CachedCatalog{
		Library:      *lib,
		LastUpdated:  time.Now(),
		TotalStories: len(lib.Stories),
	}

	file, err := os.Create(rc.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cached); err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"stories": len(lib.Stories),
		"file":    rc.cacheFile,
	}).Info("Saved story catalog to cache")

	return nil
}

func (rc *RemoteCache) fetch(ctx context.Context) (*library.StoryLibrary, error) {
	if !strings.HasPrefix(rc.url, "http") {
		return nil, fmt.Errorf("invalid catalog url: %q", rc.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", rc.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d for URL %s", resp.StatusCode, rc.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var lib library.StoryLibrary
	if err := json.Unmarshal(body, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if lib.URL == "" {
		lib.URL = rc.url
	}

	logrus.WithField("count", len(lib.Stories)).Info("Fetched remote story catalog")
	return &lib, nil
}

// ClearCache removes the cache file
func (rc *RemoteCache) ClearCache() error {
	if err := os.Remove(rc.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logrus.Info("Cleared story catalog cache")
	return nil
}

// Info returns information about the cache file.
func (rc *RemoteCache) Info() CacheInfo {
	info := CacheInfo{Path: rc.cacheFile, MaxAge: rc.maxAge}

	if stat, err := os.Stat(rc.cacheFile); err == nil {
		info.Exists = true
		info.Size = stat.Size()
		info.LastModified = stat.ModTime()
		info.Fresh = rc.isCacheFresh()
	}

	return info
}
