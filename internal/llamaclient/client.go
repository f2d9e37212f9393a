// Package llamaclient speaks to a local llama.cpp server over loopback HTTP.
// It is deliberately narrow: a health probe and a single blocking generate
// call. Timeouts are the caller's responsibility via context deadlines.
package llamaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Params captures generation parameters for one call.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Result is the completed generation.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client issues requests against a fixed llama-server base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client for the given base URL (e.g. http://127.0.0.1:8081).
// The underlying http.Client has Timeout=0: every call must carry a
// context-based deadline.
func New(baseURL string) *Client {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    8,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

// Probe reports whether the server answers its health endpoint.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// completionRequest is the native llama.cpp /completion payload.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict"`
	Temperature   float64  `json:"temperature"`
	Stream        bool     `json:"stream"`
	Stop          []string `json:"stop,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
}

type completionResponse struct {
	Content         string `json:"content"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensPredicted int    `json:"tokens_predicted"`
}

// instruction-tuned stop sequences for Mistral-style models
var defaultStop = []string{"[INST]", "</s>"}

// Generate performs one blocking completion call. Context cancellation and
// deadline expiry are returned as ctx.Err() so callers can distinguish
// timeouts from process-level failures.
func (c *Client) Generate(ctx context.Context, prompt string, p Params) (Result, error) {
	payload := completionRequest{
		Prompt:        prompt,
		NPredict:      p.MaxTokens,
		Temperature:   p.Temperature,
		Stream:        false,
		Stop:          defaultStop,
		RepeatPenalty: 1.1,
		TopK:          40,
		TopP:          0.95,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, string(b))
	}
	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("decode completion response: %w", err)
	}
	return Result{
		Content:          strings.TrimSpace(cr.Content),
		PromptTokens:     cr.TokensEvaluated,
		CompletionTokens: cr.TokensPredicted,
	}, nil
}
