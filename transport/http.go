package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
)

// httpStrategy is the full-featured client: redirect following,
// per-request timeout, configurable TLS, native basic auth.
type httpStrategy struct{}

// NewHTTPStrategy returns the net/http strategy, the chain's first
// choice.
func NewHTTPStrategy() Strategy { return httpStrategy{} }

func (httpStrategy) Name() string { return "net/http" }

func (httpStrategy) Available() bool { return true }

func (httpStrategy) Fetch(ctx context.Context, req Request) ([]byte, error) {
	client := &http.Client{Timeout: req.Timeout}
	if req.InsecureTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request with %w", err)
	}
	hreq.Header.Set("User-Agent", req.UserAgent)
	if req.hasAuth() {
		hreq.SetBasicAuth(req.Username, req.Password)
	}

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body with %w", err)
	}
	return body, nil
}
