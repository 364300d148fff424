// Package backend provides the HTTP client for the external compile and chat service.
//
// Both endpoints take multipart form bodies. Any transport failure, non-2xx status,
// or (for chat) a truthy error field in the body is reported as a *ClientError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/hyperjump/vibetex/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "http://localhost:8000/api"
	DefaultCompilePath = "/compile"
	DefaultChatPath    = "/chat"

	// maxErrorBody bounds how much of a failed response is kept in the error message.
	maxErrorBody = 512
)

// ClientConfig holds endpoint settings. Zero values fall back to the defaults.
type ClientConfig struct {
	BaseURL     string
	CompilePath string
	ChatPath    string
	// Timeout applies to each request. Zero means no client-side timeout.
	Timeout time.Duration
}

// Client talks to the compile and chat service. It is safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for request-level debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service described by cfg.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CompilePath == "" {
		cfg.CompilePath = DefaultCompilePath
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = DefaultChatPath
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.config.BaseURL + path
}

// formPart is one field of a multipart body; File is nil for plain values.
type formPart struct {
	Field string
	Value string
	File  *models.File
}

func encodeMultipart(parts []formPart) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.File == nil {
			if err := mw.WriteField(p.Field, p.Value); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", p.Field, err)
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Field, p.File.Name))
		ct := p.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", p.Field, err)
		}
		if _, err := w.Write(p.File.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", p.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// post sends a multipart request and returns the response body of a 2xx reply.
func (c *Client) post(ctx context.Context, endpoint string, parts []formPart) ([]byte, *http.Response, error) {
	body, contentType, err := encodeMultipart(parts)
	if err != nil {
		return nil, nil, &ClientError{Kind: KindTransport, Endpoint: endpoint, Message: "encode request", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), body)
	if err != nil {
		return nil, nil, &ClientError{Kind: KindTransport, Endpoint: endpoint, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &ClientError{Kind: KindTransport, Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("backend request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if !isSuccess(resp.StatusCode) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp, &ClientError{
			Kind:     KindStatus,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorDetail(b),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &ClientError{Kind: KindDecode, Endpoint: endpoint, Status: resp.StatusCode, Message: "read body", Cause: err}
	}
	return data, resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// errorDetail extracts a readable message from an error body. FastAPI-style
// {"detail": ...} and {"error": ...} bodies are unwrapped; anything else is returned trimmed.
func errorDetail(b []byte) string {
	var structured struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(b, &structured); err == nil {
		if s, ok := structured.Detail.(string); ok && s != "" {
			return s
		}
		if structured.Error != "" {
			return structured.Error
		}
	}
	return strings.TrimSpace(string(b))
}
