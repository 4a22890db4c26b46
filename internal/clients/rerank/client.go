// Package rerank provides the client for the reranking provider.
package rerank

import (
	"context"

	"github.com/hsn0918/netkb/internal/clients/base"
	"github.com/hsn0918/netkb/internal/config"
	"github.com/hsn0918/netkb/internal/search"
)

const ServiceName = "rerank"

// Client calls POST {baseUrl}/v1/rerank with bearer auth.
type Client struct {
	httpClient *base.HTTPClient
	config     config.ServiceConfig
}

var _ search.Reranker = (*Client)(nil)

// NewClient creates a rerank client with the short call timeout.
func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{
		httpClient: base.NewHTTPClient(ServiceName, cfg, base.DefaultTimeout),
		config:     cfg,
	}
}

// Request represents a document reranking request.
type Request struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// Result represents a single reranking verdict.
type Result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Response represents the reranking API response. Providers answer with
// either the Data or the Results array.
type Response struct {
	ID      string   `json:"id"`
	Data    []Result `json:"data"`
	Results []Result `json:"results"`
}

func (r *Response) verdicts() []Result {
	if len(r.Data) > 0 {
		return r.Data
	}
	return r.Results
}

// Rerank reorders the documents by relevance to the query.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]search.RankedDocument, error) {
	req := Request{
		Model:     c.config.Model,
		Query:     query,
		Documents: documents,
	}
	var result Response
	if err := c.httpClient.Post(ctx, "/v1/rerank", req, &result); err != nil {
		return nil, err
	}

	verdicts := result.verdicts()
	ranked := make([]search.RankedDocument, 0, len(verdicts))
	for _, v := range verdicts {
		ranked = append(ranked, search.RankedDocument{
			Index:          v.Index,
			RelevanceScore: v.RelevanceScore,
		})
	}
	return ranked, nil
}
