package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Snippet is one ranked hit from the long-term corpus.
type Snippet struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
}

// Store is the read boundary to the vector memory service. Embedding
// generation and indexing live upstream; this side only queries.
type Store interface {
	Query(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Client queries the vector memory service over REST.
type Client struct {
	http *resty.Client
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("memory base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().SetBaseURL(base).SetTimeout(timeout),
	}, nil
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Results []Snippet `json:"results"`
}

func (c *Client) Query(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = 5
	}
	var out queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(queryRequest{Query: query, TopK: topK}).
		SetResult(&out).
		Post("/api/v1/query")
	if err != nil {
		return nil, fmt.Errorf("memory query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("memory query: status %d", resp.StatusCode())
	}
	return out.Results, nil
}
