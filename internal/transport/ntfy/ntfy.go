// Package ntfy implements the transport.Sender contract against an
// ntfy-compatible pub/sub endpoint: HTTP POST to <base>/<topic> with
// the message body as payload and notification attributes as headers.
package ntfy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "ntfyloop/pkg/logx"

	kit "ntfyloop/internal/transport"
)

const (
	// DefaultBaseURL is the public ntfy.sh service.
	DefaultBaseURL = "https://ntfy.sh"

	defaultTimeout = 10 * time.Second

	// maxResponseBody caps how much of the response we read back.
	// ntfy replies with a small JSON document; anything larger is
	// either an error page or a misconfigured endpoint.
	maxResponseBody = 64 << 10
)

type Config struct {
	// BaseURL of the ntfy server. Defaults to DefaultBaseURL.
	BaseURL string
	// Token, when set, is sent as a bearer token. The public service
	// works without one; self-hosted servers may require it.
	Token string
	// Timeout bounds one send round trip. Defaults to 10s.
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
	log  logx.Logger
}

// StatusError reports a non-2xx response from the server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ntfy: server returned %d", e.StatusCode)
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ntfy: invalid base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ntfy: base url must be http(s), got %q", raw)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// BaseURL returns the resolved server base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Send posts one message. A non-2xx status is returned as a
// *StatusError so callers can still read the status code and body.
func (c *Client) Send(ctx context.Context, m kit.Message) (kit.Result, error) {
	if strings.TrimSpace(m.Topic) == "" {
		return kit.Result{}, errors.New("ntfy: topic is required")
	}

	u := c.base.JoinPath(m.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(m.Body))
	if err != nil {
		return kit.Result{}, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if m.Title != "" {
		req.Header.Set("Title", m.Title)
	}
	if len(m.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(m.Tags, ","))
	}
	if m.Priority != 0 {
		req.Header.Set("Priority", strconv.Itoa(m.Priority))
	}
	if m.Delay != "" {
		req.Header.Set("Delay", m.Delay)
	}
	if tok := strings.TrimSpace(c.cfg.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return kit.Result{}, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res := kit.Result{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, &StatusError{StatusCode: resp.StatusCode, Body: res.Body}
	}
	if readErr != nil {
		// Delivery succeeded; losing part of the response body is
		// only worth a debug line.
		c.log.Debug("ntfy response read truncated", logx.Err(readErr))
	}
	return res, nil
}
