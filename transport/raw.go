package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

// rawStrategy is the universal fallback: a hand-written HTTP/1.0 GET over
// a plain or TLS socket. It does not follow redirects.
type rawStrategy struct{}

// NewRawStrategy returns the stream-based GET strategy, the chain's last
// resort.
func NewRawStrategy() Strategy { return rawStrategy{} }

func (rawStrategy) Name() string { return "raw" }

func (rawStrategy) Available() bool { return true }

func (rawStrategy) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL with %w", err)
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	dialer := &net.Dialer{Timeout: req.Timeout}
	var conn net.Conn
	if u.Scheme == "https" {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: req.InsecureTLS,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(req.Timeout)); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "GET %s HTTP/1.0\r\n", u.RequestURI())
	fmt.Fprintf(&sb, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&sb, "User-Agent: %s\r\n", req.UserAgent)
	if req.hasAuth() {
		fmt.Fprintf(&sb, "Authorization: Basic %s\r\n", basicCredentials(req))
	}
	sb.WriteString("Connection: close\r\n\r\n")
	if _, err := io.WriteString(conn, sb.String()); err != nil {
		return nil, fmt.Errorf("failed to send request with %w", err)
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read status line with %w", err)
	}
	fields := strings.Fields(status)
	if len(fields) < 2 || fields[1] != "200" {
		return nil, fmt.Errorf("unexpected status line %q", strings.TrimSpace(status))
	}

	// Skip headers until the blank separator line.
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read headers with %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read body with %w", err)
	}
	return body, nil
}
