package candidate

import (
	"context"
	"net"
	"net/http"
	"time"
)

// LinkChecker reports whether a source page is live.
type LinkChecker interface {
	Reachable(ctx context.Context, rawURL string) bool
}

// HTTPLinkChecker probes a URL with HEAD and retries with GET when the server
// rejects HEAD. 2xx and 3xx count as reachable.
type HTTPLinkChecker struct {
	client    *http.Client
	userAgent string
}

// NewHTTPLinkChecker creates a checker whose requests give up after timeout.
func NewHTTPLinkChecker(timeout time.Duration) *HTTPLinkChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLinkChecker{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: "Mozilla/5.0 (compatible; nearby-events/1.0)",
	}
}

// Reachable implements LinkChecker.
func (c *HTTPLinkChecker) Reachable(ctx context.Context, rawURL string) bool {
	code, err := c.probe(ctx, http.MethodHead, rawURL)
	if err == nil && code < 400 {
		return true
	}
	code, err = c.probe(ctx, http.MethodGet, rawURL)
	return err == nil && code < 400
}

func (c *HTTPLinkChecker) probe(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode, nil
}
