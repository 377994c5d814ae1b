// Package bugzilla is the REST gateway to a Bugzilla-compatible tracker.
package bugzilla

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const defaultRESTPath = "/rest.cgi"

type Config struct {
	// Site is the tracker root, e.g. https://bugzilla.example.com.
	Site string
	// RESTPath is appended to Site for every call. Defaults to /rest.cgi.
	RESTPath   string
	Token      string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client is safe for concurrent use; only the token is mutable.
type Client struct {
	site     string
	restPath string
	http     *http.Client
	logger   *log.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config) (*Client, error) {
	site := strings.TrimRight(strings.TrimSpace(cfg.Site), "/")
	if site == "" {
		return nil, fmt.Errorf("bugzilla: site is required")
	}
	u, err := url.Parse(site)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("bugzilla: site must be an http(s) URL (got %q)", cfg.Site)
	}
	restPath := cfg.RESTPath
	if restPath == "" {
		restPath = defaultRESTPath
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		site:     site,
		restPath: "/" + strings.Trim(restPath, "/"),
		http:     hc,
		logger:   logger,
		token:    cfg.Token,
	}, nil
}

func (c *Client) Site() string { return c.site }

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope is the subset of every response that carries an application error.
type envelope struct {
	Error   bool   `json:"error"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// do performs one call. path is relative to the REST root. The stored token
// is appended to the query string once set. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if tok := c.Token(); tok != "" {
		q.Set("token", tok)
	}
	endpoint := c.site + c.restPath + path
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	var reader io.Reader
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("bugzilla: encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("bugzilla: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	entry := c.logger.WithFields(log.Fields{"method": method, "path": path})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry.WithError(err).Warn("request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrNoResponse, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		entry.WithError(err).Warn("reading response failed")
		return fmt.Errorf("%w: %s %s: %v", ErrNoResponse, method, path, err)
	}
	entry.WithFields(log.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)}).Debug("bugzilla call")

	if len(bytes.TrimSpace(raw)) == 0 {
		entry.Warn("No response from " + c.site + c.restPath + path)
		return fmt.Errorf("%w: %s %s", ErrNoResponse, method, path)
	}

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		entry.WithError(err).Warn("unparseable response")
		return fmt.Errorf("%w: %s %s: %v", ErrNoResponse, method, path, err)
	}
	if env.Error || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		entry.WithFields(log.Fields{"code": string(env.Code), "status": resp.StatusCode}).Error(apiErr.Message)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		entry.WithError(err).Warn("unexpected response shape")
		return fmt.Errorf("%w: %s %s: %v", ErrNoResponse, method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}
