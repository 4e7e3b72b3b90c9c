package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/monitoring"
)

// Request plumbing defaults.
const (
	defaultRequestTimeout = 15 * time.Second
	defaultDialTimeout    = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second

	maxResponseBytes = 4 << 20 // 4 MiB
)

// Config wires a Client to the Linkfield gateway.
type Config struct {
	// BaseURL is the gateway REST endpoint, e.g. https://gateway.linkfield.com.
	BaseURL string
	// Token authenticates outgoing requests. Optional for local development
	// gateways that skip auth.
	Token TokenProvider
	// RequestTimeout bounds a whole request including body read.
	RequestTimeout time.Duration
	// DialTimeout bounds TCP connection establishment.
	DialTimeout time.Duration
	// TLSTimeout bounds the TLS handshake.
	TLSTimeout time.Duration
	// Logger is optional.
	Logger *zap.Logger
}

// envelope is the gateway's JSON response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client calls the gateway REST API. All mutating member actions flow through
// it; push delivery is the Transport's job.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      TokenProvider
	logger     *zap.Logger
}

// NewClient constructs a gateway REST client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("gateway: unsupported scheme %q", parsed.Scheme)
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	tlsTimeout := cfg.TLSTimeout
	if tlsTimeout <= 0 {
		tlsTimeout = defaultTLSTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: tlsTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		token:  cfg.Token,
		logger: logger,
	}, nil
}

// Dashboard fetches the member's dashboard summary.
func (c *Client) Dashboard(ctx context.Context) (DashboardSummary, error) {
	var summary DashboardSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/me/dashboard", nil, &summary)
	return summary, err
}

// Jobs fetches the job postings visible to the member.
func (c *Client) Jobs(ctx context.Context) ([]JobPosting, error) {
	var jobs []JobPosting
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs", nil, &jobs)
	return jobs, err
}

// Groups fetches the peer groups visible to the member.
func (c *Client) Groups(ctx context.Context) ([]PeerGroup, error) {
	var groups []PeerGroup
	err := c.do(ctx, http.MethodGet, "/api/v1/groups", nil, &groups)
	return groups, err
}

// FollowCompany asks the gateway to follow the company on the member's
// behalf and returns the raw confirmation payload.
func (c *Client) FollowCompany(ctx context.Context, companyID string) (json.RawMessage, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, errors.New("gateway: company id is required")
	}
	return c.doRaw(ctx, http.MethodPost, "/api/v1/companies/"+url.PathEscape(companyID)+"/follow", nil)
}

// JoinGroup asks the gateway to join the peer group.
func (c *Client) JoinGroup(ctx context.Context, groupID string) (json.RawMessage, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, errors.New("gateway: group id is required")
	}
	return c.doRaw(ctx, http.MethodPost, "/api/v1/groups/"+url.PathEscape(groupID)+"/join", nil)
}

// ApplyToJob submits the member's stored profile as an application.
func (c *Client) ApplyToJob(ctx context.Context, jobID string) (json.RawMessage, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("gateway: job id is required")
	}
	return c.doRaw(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(jobID)+"/apply", nil)
}

// Ping probes the gateway's health endpoint. It bypasses the response
// envelope since health endpoints answer with bare status codes.
func (c *Client) Ping(ctx context.Context) error {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + "/healthz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// doRaw performs a request and returns the envelope data untouched.
func (c *Client) doRaw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	started := time.Now()
	err := c.doOnce(ctx, method, path, body, out)
	result := "success"
	if err != nil {
		result = "failure"
	}
	monitoring.RecordGatewayRequest(method, path, result, time.Since(started))
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", err)
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{
					Status:  resp.StatusCode,
					Message: http.StatusText(resp.StatusCode),
				}
			}
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
		}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		c.logger.Debug("gateway request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("gateway: decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.token == nil {
		return nil
	}
	token, err := c.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("gateway: resolve token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
