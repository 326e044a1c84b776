package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testBody = `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`

func newFeedServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.Write([]byte(testBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestHTTPStrategyHeaders(t *testing.T) {
	srv, seen := newFeedServer(t)

	body, err := NewHTTPStrategy().Fetch(context.Background(), Request{
		URL:       srv.URL,
		Username:  "user",
		Password:  "pass",
		UserAgent: "FeedFetcher-Google",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != testBody {
		t.Errorf("Body mismatch: got %q", body)
	}
	if ua := seen.Get("User-Agent"); ua != "FeedFetcher-Google" {
		t.Errorf("Expected configured user agent, got %q", ua)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got := seen.Get("Authorization"); got != want {
		t.Errorf("Expected basic auth header %q, got %q", want, got)
	}
}

func TestHTTPStrategyNoAuthWithoutBothCredentials(t *testing.T) {
	srv, seen := newFeedServer(t)

	// Username alone must not produce an Authorization header.
	_, err := NewHTTPStrategy().Fetch(context.Background(), Request{
		URL:       srv.URL,
		Username:  "user",
		UserAgent: "x",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := seen.Get("Authorization"); got != "" {
		t.Errorf("Expected no Authorization header, got %q", got)
	}
}

func TestHTTPStrategyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPStrategy().Fetch(context.Background(), Request{URL: srv.URL, Timeout: 5 * time.Second})
	if err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestFastHTTPStrategy(t *testing.T) {
	srv, seen := newFeedServer(t)

	body, err := NewFastHTTPStrategy().Fetch(context.Background(), Request{
		URL:       srv.URL,
		Username:  "user",
		Password:  "pass",
		UserAgent: "agent-x",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != testBody {
		t.Errorf("Body mismatch: got %q", body)
	}
	if ua := seen.Get("User-Agent"); ua != "agent-x" {
		t.Errorf("Expected configured user agent, got %q", ua)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got := seen.Get("Authorization"); got != want {
		t.Errorf("Expected basic auth header %q, got %q", want, got)
	}
}

func TestRawStrategy(t *testing.T) {
	srv, seen := newFeedServer(t)

	body, err := NewRawStrategy().Fetch(context.Background(), Request{
		URL:       srv.URL,
		UserAgent: "agent-raw",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != testBody {
		t.Errorf("Body mismatch: got %q", body)
	}
	if ua := seen.Get("User-Agent"); ua != "agent-raw" {
		t.Errorf("Expected configured user agent, got %q", ua)
	}
}

type stubStrategy struct {
	name      string
	available bool
	body      []byte
	err       error
	calls     int
}

func (s *stubStrategy) Name() string    { return s.name }
func (s *stubStrategy) Available() bool { return s.available }
func (s *stubStrategy) Fetch(context.Context, Request) ([]byte, error) {
	s.calls++
	return s.body, s.err
}

// The chain attempts exactly one strategy: the highest-priority available
// one. Its failure surfaces instead of silently falling through.
func TestChainFailFast(t *testing.T) {
	failing := &stubStrategy{name: "first", available: true, err: errors.New("boom")}
	healthy := &stubStrategy{name: "second", available: true, body: []byte("ok")}

	_, err := NewChain(failing, healthy).Fetch(context.Background(), Request{URL: "http://example.com"})
	if err == nil {
		t.Fatal("Expected the first strategy's failure to surface")
	}
	if failing.calls != 1 {
		t.Errorf("Expected the first strategy to run once, ran %d times", failing.calls)
	}
	if healthy.calls != 0 {
		t.Errorf("The chain must not fall through after a failure, second ran %d times", healthy.calls)
	}
}

func TestChainSkipsUnavailable(t *testing.T) {
	missing := &stubStrategy{name: "first", available: false}
	healthy := &stubStrategy{name: "second", available: true, body: []byte("ok")}

	body, err := NewChain(missing, healthy).Fetch(context.Background(), Request{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Body mismatch: got %q", body)
	}
	if missing.calls != 0 {
		t.Error("Unavailable strategy must not be attempted")
	}
}

func TestChainNoStrategyAvailable(t *testing.T) {
	chain := NewChain(&stubStrategy{name: "only", available: false})
	if _, err := chain.Fetch(context.Background(), Request{URL: "http://example.com"}); err == nil {
		t.Error("Expected error when no strategy is available")
	}
}
