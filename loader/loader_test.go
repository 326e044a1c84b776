package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scipunch/feedfetch/config"
	"github.com/scipunch/feedfetch/feed"
)

const rssBody = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Cached Blog</title>
    <item>
      <title>Post</title>
      <link>http://example.com/post</link>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const atomBody = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Blog</title>
  <entry>
    <title>Entry</title>
    <link href="http://example.com/entry"/>
    <updated>2024-01-01T00:00:00Z</updated>
  </entry>
</feed>`

func newCountingServer(t *testing.T, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func newLoader(t *testing.T, cacheDir string) *Loader {
	t.Helper()
	l, err := New(config.Config{
		CacheDir:    cacheDir,
		CacheExpire: "1 day",
		UserAgent:   "test-agent",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l
}

func TestLoadDetectsRSS(t *testing.T) {
	srv, _ := newCountingServer(t, rssBody)
	l := newLoader(t, "")

	f, err := l.Load(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Format() != feed.RSS {
		t.Errorf("Expected RSS, got %s", f.Format())
	}
	if f.Text("title") != "Cached Blog" {
		t.Errorf("Expected title 'Cached Blog', got %q", f.Text("title"))
	}
}

func TestLoadDetectsAtom(t *testing.T) {
	srv, _ := newCountingServer(t, atomBody)
	l := newLoader(t, "")

	f, err := l.Load(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Format() != feed.Atom {
		t.Errorf("Expected Atom, got %s", f.Format())
	}
}

func TestLoadRSSOnAtomFails(t *testing.T) {
	srv, _ := newCountingServer(t, atomBody)
	l := newLoader(t, "")

	_, err := l.LoadRSS(context.Background(), srv.URL, "", "")
	if !errors.Is(err, feed.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}

func TestLoadAtomOnRSSFails(t *testing.T) {
	srv, _ := newCountingServer(t, rssBody)
	l := newLoader(t, "")

	_, err := l.LoadAtom(context.Background(), srv.URL, "", "")
	if !errors.Is(err, feed.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}

// Two loads inside the freshness window fetch once; forcing the cache
// entry past the window triggers exactly one more fetch.
func TestCacheIdempotence(t *testing.T) {
	srv, fetches := newCountingServer(t, rssBody)
	dir := t.TempDir()
	l := newLoader(t, dir)
	ctx := context.Background()

	if _, err := l.Load(ctx, srv.URL, "", ""); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	if _, err := l.Load(ctx, srv.URL, "", ""); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("Expected 1 network fetch within the expiry window, got %d", got)
	}

	// Age the cache entry beyond "1 day".
	path := filepath.Join(dir, l.Cache().Key(srv.URL, "", "")+".xml")
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if _, err := l.Load(ctx, srv.URL, "", ""); err != nil {
		t.Fatalf("Third load failed: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("Expected exactly one more fetch after expiry, got %d total", got)
	}
}

func TestDisabledCacheAlwaysFetches(t *testing.T) {
	srv, fetches := newCountingServer(t, rssBody)
	l := newLoader(t, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Load(ctx, srv.URL, "", ""); err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
	}
	if got := fetches.Load(); got != 3 {
		t.Errorf("Expected a fetch per load without a cache, got %d", got)
	}
}

func TestEmptyBodyIsConnectionError(t *testing.T) {
	srv, _ := newCountingServer(t, "   \n\t")
	l := newLoader(t, "")

	_, err := l.Load(context.Background(), srv.URL, "", "")
	if !errors.Is(err, feed.ErrConnection) {
		t.Errorf("Expected ErrConnection for whitespace-only body, got %v", err)
	}
}

func TestTruncatedXMLIsParseError(t *testing.T) {
	srv, _ := newCountingServer(t, "<a><b></a")
	l := newLoader(t, "")

	_, err := l.Load(context.Background(), srv.URL, "", "")
	if !errors.Is(err, feed.ErrParse) {
		t.Errorf("Expected ErrParse for truncated XML, got %v", err)
	}
	if errors.Is(err, feed.ErrConnection) {
		t.Error("Parse error must not match ErrConnection")
	}
}

func TestStaleCacheServedWhenFetchFails(t *testing.T) {
	srv, _ := newCountingServer(t, rssBody)
	dir := t.TempDir()
	l := newLoader(t, dir)
	ctx := context.Background()

	if _, err := l.Load(ctx, srv.URL, "", ""); err != nil {
		t.Fatalf("Priming load failed: %v", err)
	}

	// Entry expires and the origin goes away.
	path := filepath.Join(dir, l.Cache().Key(srv.URL, "", "")+".xml")
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	srv.Close()

	f, err := l.Load(ctx, srv.URL, "", "")
	if err != nil {
		t.Fatalf("Expected stale cache fallback, got %v", err)
	}
	if f.Text("title") != "Cached Blog" {
		t.Errorf("Expected stale body served, got title %q", f.Text("title"))
	}
}

func TestUnreachableWithoutCacheIsConnectionError(t *testing.T) {
	srv, _ := newCountingServer(t, rssBody)
	url := srv.URL
	srv.Close()

	l := newLoader(t, "")
	_, err := l.Load(context.Background(), url, "", "")
	if !errors.Is(err, feed.ErrConnection) {
		t.Errorf("Expected ErrConnection, got %v", err)
	}
	// A connection failure is distinguishable from a parse failure.
	if errors.Is(err, feed.ErrParse) {
		t.Error("Connection error must not match ErrParse")
	}
}

func TestCredentialsReachTheServer(t *testing.T) {
	var user, pass string
	var okAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, okAuth = r.BasicAuth()
		w.Write([]byte(rssBody))
	}))
	defer srv.Close()

	l := newLoader(t, "")
	if _, err := l.Load(context.Background(), srv.URL, "alice", "secret"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !okAuth || user != "alice" || pass != "secret" {
		t.Errorf("Expected basic auth alice/secret, got %q/%q (ok=%v)", user, pass, okAuth)
	}
}
