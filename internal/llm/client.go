// Package llm talks to an Ollama server: streaming and single-shot
// generation plus model listing.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"codegend/pkg/types"
)

const (
	defaultHost           = "http://localhost:11434"
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 30 * time.Second
	maxErrorBody          = 4096
)

// Options are the sampling options sent with every generate call.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// DefaultOptions mirror what the service has always sent.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, TopP: 0.9, NumPredict: 2048}
}

// Config configures a Client. Zero values select defaults.
type Config struct {
	Host           string
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for each line of a streamed response.
	ReadTimeout time.Duration
	// RequestTimeout bounds a whole call; zero disables it.
	RequestTimeout time.Duration
	Options        *Options
}

// Request is one generation call.
type Request struct {
	Model  string
	Prompt string
}

type generateBody struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// Client is safe for concurrent use; all sessions share its connection pool.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	readTimeout    time.Duration
	requestTimeout time.Duration
	opts           Options
}

func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	opts := DefaultOptions()
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: every call carries its own context deadline.
	return &Client{
		baseURL:        strings.TrimRight(cfg.Host, "/"),
		httpClient:     &http.Client{Transport: tr, Timeout: 0},
		readTimeout:    cfg.ReadTimeout,
		requestTimeout: cfg.RequestTimeout,
		opts:           opts,
	}
}

// Host returns the backend base URL.
func (c *Client) Host() string { return c.baseURL }

func (c *Client) newGenerate(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	body, err := json.Marshal(generateBody{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  stream,
		Options: c.opts,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Content-Type", "application/json")
	return hr, nil
}

// Complete runs a non-streaming generation and returns the full response.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	timeout := c.requestTimeout
	if timeout <= 0 {
		timeout = 2 * c.readTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	hr, err := c.newGenerate(ctx, req, false)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(hr)
	if err != nil {
		return "", classifyDoErr(ctx, err, false)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return "", protocolError(resp.StatusCode)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", classifyDoErr(ctx, err, false)
		}
		return "", unreachableError(fmt.Errorf("decode response: %w", err))
	}
	return out.Response, nil
}

type tagsBody struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

// Tags lists the models installed on the backend.
func (c *Client) Tags(ctx context.Context) ([]types.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()
	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(hr)
	if err != nil {
		return nil, classifyDoErr(ctx, err, false)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, protocolError(resp.StatusCode)
	}
	var body tagsBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, unreachableError(fmt.Errorf("decode tags: %w", err))
	}
	out := make([]types.Model, 0, len(body.Models))
	for _, m := range body.Models {
		out = append(out, types.Model{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt})
	}
	return out, nil
}

// Ping reports whether the backend answers its tags endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Tags(ctx)
	return err
}

// classifyDoErr maps a transport-level error into the backend taxonomy.
// Parent cancellation is passed through unchanged.
func classifyDoErr(ctx context.Context, err error, idleFired bool) error {
	if idleFired || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutError(err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeoutError(err)
	}
	return unreachableError(err)
}
