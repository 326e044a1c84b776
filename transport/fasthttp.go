package transport

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/valyala/fasthttp"
)

// fasthttpStrategy is the lower-level client. Basic auth is attached as a
// manually encoded Authorization header since fasthttp has no helper for
// it.
type fasthttpStrategy struct{}

// NewFastHTTPStrategy returns the fasthttp strategy, tried when the
// net/http strategy is not part of the chain.
func NewFastHTTPStrategy() Strategy { return fasthttpStrategy{} }

func (fasthttpStrategy) Name() string { return "fasthttp" }

func (fasthttpStrategy) Available() bool { return true }

func (fasthttpStrategy) Fetch(_ context.Context, req Request) ([]byte, error) {
	client := &fasthttp.Client{
		ReadTimeout:  req.Timeout,
		WriteTimeout: req.Timeout,
	}
	if req.InsecureTLS {
		client.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	freq := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(freq)
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL)
	freq.Header.SetMethod(fasthttp.MethodGet)
	freq.Header.SetUserAgent(req.UserAgent)
	if req.hasAuth() {
		freq.Header.Set("Authorization", "Basic "+basicCredentials(req))
	}

	if err := client.DoRedirects(freq, fresp, maxRedirects); err != nil {
		return nil, err
	}
	if fresp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", fresp.StatusCode())
	}

	// The response buffer is pooled, copy before release.
	return append([]byte(nil), fresp.Body()...), nil
}
