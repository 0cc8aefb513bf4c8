// Package client talks to an inference server over HTTP. Client implements
// stream.Transport for /generate_text_stream and also exposes the unary
// /generate_text and /find_similar endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fuhaigao/inference-server/pkg/logger"
	"github.com/fuhaigao/inference-server/pkg/stream"
)

const (
	pathGenerateStream = "/generate_text_stream"
	pathGenerate       = "/generate_text"
	pathFindSimilar    = "/find_similar"

	// maxDetail bounds how much of a failed response body is kept.
	maxDetail = 4 << 10
)

// Client is an HTTP client for one inference server.
type Client struct {
	baseURL   string
	http      *http.Client
	chunkSize int
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithChunkSize sets the read size of streamed bodies.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for the server at baseURL. The default http.Client has
// no timeout; deadlines come from the caller's context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		chunkSize: stream.DefaultChunkSize,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ stream.Transport = (*Client)(nil)

// OpenStream posts req to the streaming endpoint and returns the response
// head. Failed responses carry a body excerpt in Detail and no Body.
func (c *Client) OpenStream(ctx context.Context, req stream.Request) (*stream.Response, error) {
	httpReq, err := c.newRequest(ctx, pathGenerateStream, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening stream",
		"url", httpReq.URL.String(),
		"max_length", req.MaxLength,
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	out := &stream.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Detail = readDetail(resp.Body)
		_ = resp.Body.Close()
		return out, nil
	}

	if resp.Body == http.NoBody {
		return out, nil
	}

	out.Body = stream.NewReaderSource(resp.Body, c.chunkSize)
	return out, nil
}

// GenerateText requests a complete generation in one response.
func (c *Client) GenerateText(ctx context.Context, prompt string, maxLength int) (string, error) {
	var out generateResponse
	err := c.postJSON(ctx, pathGenerate, stream.Request{Prompt: prompt, MaxLength: maxLength}, &out)
	if err != nil {
		return "", err
	}
	return out.GeneratedText, nil
}

// FindSimilar returns the items most similar to text, best first.
func (c *Client) FindSimilar(ctx context.Context, text string, numResults int) ([]TopResult, error) {
	var out similarResponse
	err := c.postJSON(ctx, pathFindSimilar, similarRequest{Text: text, NumResults: numResults}, &out)
	if err != nil {
		return nil, err
	}
	return out.TopResults, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	req, err := c.newRequest(ctx, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response",
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       readDetail(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func readDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxDetail))
	return strings.TrimSpace(string(data))
}
