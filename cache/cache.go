// Package cache stores raw feed responses as flat files, one per distinct
// (url, user, pass) fingerprint, with freshness decided by file
// modification time against a configured expiry.
//
// There is no cross-process locking: concurrent loads of the same URL may
// interleave writes to one cache file. A corrupted entry heals itself on
// the next expiry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultExpire is the freshness window used when none is configured.
const DefaultExpire = "1 day"

// Store is a file-backed response cache. A Store with an empty directory
// is disabled: reads always miss and writes are no-ops.
type Store struct {
	dir    string
	expire time.Duration
	now    func() time.Time
}

// CacheStats describes the cache contents.
type CacheStats struct {
	Entries     int
	OldestEntry time.Time
}

// New builds a Store rooted at dir, creating the directory when missing.
// The expire value is either a Go duration string ("24h") or a phrase
// like "1 day" or "5 hours"; an empty value falls back to DefaultExpire.
// An empty dir yields a disabled store.
func New(dir, expire string) (*Store, error) {
	if expire == "" {
		expire = DefaultExpire
	}
	d, err := ParseExpire(expire)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache expiry with %w", err)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory at '%s' with %w", dir, err)
		}
	}
	return &Store{dir: dir, expire: d, now: time.Now}, nil
}

// Enabled reports whether a cache directory is configured.
func (s *Store) Enabled() bool { return s.dir != "" }

// Expire returns the configured freshness window.
func (s *Store) Expire() time.Duration { return s.expire }

// Key derives the deterministic cache file name for a request: a sha256
// hash over the ordered (url, user, pass) triple.
func (s *Store) Key(url, user, pass string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(pass))
	return hex.EncodeToString(h.Sum(nil))
}

// Read returns the cached body for the request when the entry exists and
// its age is within the freshness window. The freshness decision is a
// single modification-time comparison; the file is read once, and only
// after the entry qualified as fresh.
func (s *Store) Read(url, user, pass string) ([]byte, bool) {
	if !s.Enabled() {
		return nil, false
	}
	path := s.path(url, user, pass)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) > s.expire {
		return nil, false
	}
	body, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cache read failed", "path", path, "error", err)
		return nil, false
	}
	return body, true
}

// ReadStale returns the cached body regardless of age. Used as the last
// resort when the network fetch fails.
func (s *Store) ReadStale(url, user, pass string) ([]byte, bool) {
	if !s.Enabled() {
		return nil, false
	}
	body, err := os.ReadFile(s.path(url, user, pass))
	if err != nil {
		return nil, false
	}
	return body, true
}

// Write persists a fetched body. Once caching is enabled the write is
// mandatory, so a failure is returned to the caller rather than logged
// away. A disabled store ignores the call.
func (s *Store) Write(url, user, pass string, body []byte) error {
	if !s.Enabled() {
		return nil
	}
	path := s.path(url, user, pass)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry at '%s' with %w", path, err)
	}
	return nil
}

// Clear removes every cache entry.
func (s *Store) Clear() error {
	if !s.Enabled() {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory with %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry '%s' with %w", e.Name(), err)
		}
	}
	return nil
}

// Stats returns the entry count and the oldest entry's modification
// time.
func (s *Store) Stats() (CacheStats, error) {
	var stats CacheStats
	if !s.Enabled() {
		return stats, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return stats, fmt.Errorf("failed to list cache directory with %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		if stats.OldestEntry.IsZero() || info.ModTime().Before(stats.OldestEntry) {
			stats.OldestEntry = info.ModTime()
		}
	}
	return stats, nil
}

// DefaultDir returns the conventional cache directory, honoring
// XDG_CACHE_HOME.
func DefaultDir() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "cache"
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "feedfetch")
}

func (s *Store) path(url, user, pass string) string {
	return filepath.Join(s.dir, s.Key(url, user, pass)+".xml")
}
