package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustinTDCT/CineGate/internal/audit"
)

// Client talks to the gateway's download endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

func (c *Client) endpoint(slug, step string, q url.Values) string {
	u := c.baseURL + "/api/v1/download/" + url.PathEscape(slug) + "/" + step
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) Qualities(ctx context.Context, slug string) (QualitiesResponse, error) {
	var out QualitiesResponse
	err := c.get(ctx, c.endpoint(slug, "qualities", nil), &out)
	return out, err
}

func (c *Client) Services(ctx context.Context, slug, quality string) (ServicesResponse, error) {
	var out ServicesResponse
	err := c.get(ctx, c.endpoint(slug, "services", url.Values{"quality": {quality}}), &out)
	return out, err
}

func (c *Client) Link(ctx context.Context, slug, quality, service string) (LinkResponse, error) {
	var out LinkResponse
	err := c.get(ctx, c.endpoint(slug, "link", url.Values{"quality": {quality}, "service": {service}}), &out)
	return out, err
}

// Token requests a single-use redirect token for a link.
func (c *Client) Token(ctx context.Context, slug, quality, service string) (IssuedToken, error) {
	var out IssuedToken
	body := map[string]string{"quality": quality, "service": service}
	err := c.post(ctx, c.endpoint(slug, "token", nil), body, &out)
	return out, err
}

// RedirectURL is where a token is redeemed.
func (c *Client) RedirectURL(token string) string {
	return c.baseURL + "/go/" + url.PathEscape(token)
}

func (c *Client) Report(ctx context.Context, e audit.Event) error {
	return c.post(ctx, c.baseURL+"/api/v1/download/events", e, nil)
}

func (c *Client) get(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, u string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

// do decodes dst from the body. Fail-closed step bodies arrive with a
// non-2xx status; they are still decoded before the error is returned.
func (c *Client) do(req *http.Request, dst any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if dst != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited, retry after %ss", ErrStepFailed, resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: server returned %d", ErrStepFailed, resp.StatusCode)
	}
	return nil
}
