package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/infra/buildinfo"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Request paths.
const (
	pathSignIn    = "/v1/auth/signin"
	pathSignOut   = "/v1/auth/signout"
	pathDiscovery = "/v1/discovery/"
)

// RequestIDHeader carries the correlation id of each request.
const RequestIDHeader = "X-Request-ID"

// Client implements service.Transport against the identity service.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	now       func() time.Time
	log       logger.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTLSConfig sets the TLS configuration of the default transport.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = cfg
		c.client.Transport = tr
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now for responses that omit an issue time.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for the identity service at baseURL. A missing
// scheme defaults to https.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("identity service url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, domain.ErrInvalidArgument.WithDetailsf("invalid identity service url %q", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "tokbroker/" + buildinfo.Version,
		now:       time.Now,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type signInRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
}

type signInResponse struct {
	Token     string     `json:"token"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresIn int64      `json:"expires_in"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type discoveryResponse struct {
	URLs []string `json:"urls"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SignIn implements service.Authenticator.
func (c *Client) SignIn(ctx context.Context, p domain.Principal, duration time.Duration) (*domain.SignInResponse, error) {
	body := signInRequest{
		Username:        p.Username(),
		Password:        p.Secret(),
		DurationSeconds: int64(duration / time.Second),
	}

	var out signInResponse
	if err := c.do(ctx, http.MethodPost, pathSignIn, body, "", &out); err != nil {
		return nil, err
	}

	resp := &domain.SignInResponse{
		Token:    out.Token,
		IssuedAt: out.IssuedAt,
		Lifetime: time.Duration(out.ExpiresIn) * time.Second,
	}
	if resp.IssuedAt.IsZero() {
		resp.IssuedAt = c.now()
	}
	if out.ExpiresAt != nil {
		resp.ExpiresAt = *out.ExpiresAt
	}
	return resp, nil
}

// SignOut implements service.Authenticator. A 401 means the token is
// already invalid and counts as success.
func (c *Client) SignOut(ctx context.Context, token *domain.Token) error {
	if token == nil || token.Value == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, pathSignOut, nil, token.BearerHeader(), nil)
	if errors.Is(err, domain.ErrAuthenticationRejected) && statusOf(err) == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Resolve implements service.Discoverer.
func (c *Client) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.EndpointSet, error) {
	q := url.Values{}
	q.Set("schema_version", req.SchemaVersion)
	if req.AccountID != "" {
		q.Set("account_id", req.AccountID)
	}
	path := pathDiscovery + url.PathEscape(req.Service) + "?" + q.Encode()

	var out discoveryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &domain.EndpointSet{
		Service:       req.Service,
		SchemaVersion: req.SchemaVersion,
		AccountID:     req.AccountID,
		URLs:          out.URLs,
	}, nil
}

// do sends one request and decodes a 2xx JSON body into target.
func (c *Client) do(ctx context.Context, method, path string, body any, authorization string, target any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := logger.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = ulid.Make().String()
	}
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.ErrRemoteUnavailable.WithDetailsf("%s %s", method, stripQuery(path)).WithCause(err)
	}
	defer resp.Body.Close()

	c.log.Debug("identity service call",
		"method", method,
		"path", stripQuery(path),
		"status", resp.StatusCode,
		"request_id", reqID,
		"elapsed", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.ErrRemoteUnavailable.WithDetails("read response body").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, data)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return domain.ErrRemoteResponseInvalid.WithDetails("decode response body").WithCause(err)
	}
	return nil
}

// StatusError records the HTTP status behind a mapped error.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d: [%s] %s", e.Status, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(status int, body []byte) error {
	se := &StatusError{Status: status}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		se.Code, se.Message = er.Code, er.Message
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthenticationRejected.WithCause(se)
	default:
		return domain.ErrRemoteUnavailable.WithCause(se)
	}
}

func stripQuery(path string) string {
	p, _, _ := strings.Cut(path, "?")
	return p
}
