// Package embedding provides the client for the dense-embedding provider.
// It accepts both response shapes seen in the wild: the OpenAI-style
// {data:[{embedding}]} array and the flattened {embedding:[...]} form.
package embedding

import (
	"context"
	"errors"

	"github.com/hsn0918/netkb/internal/clients/base"
	"github.com/hsn0918/netkb/internal/config"
)

const ServiceName = "embedding"

// ErrEmptyResponse indicates the provider answered 200 without vectors.
var ErrEmptyResponse = errors.New("embedding: provider returned no vectors")

// Embedder defines the interface for embedding operations.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Client calls POST {baseUrl}/v1/embeddings with bearer auth.
type Client struct {
	httpClient *base.HTTPClient
	config     config.ServiceConfig
}

var _ Embedder = (*Client)(nil)

// NewClient creates an embedding client with the long call timeout.
func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{
		httpClient: base.NewHTTPClient(ServiceName, cfg, base.EmbeddingTimeout),
		config:     cfg,
	}
}

// Request represents an embedding generation request.
type Request struct {
	Model          string `json:"model"`
	Input          any    `json:"input"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

// Data represents a single embedding result.
type Data struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// Response represents the embedding API response. Providers answer either
// with the Data array or with the single flattened Embedding field.
type Response struct {
	Object    string    `json:"object"`
	Model     string    `json:"model"`
	Data      []Data    `json:"data"`
	Embedding []float64 `json:"embedding"`
}

// vectors normalizes the two response shapes into one list.
func (r *Response) vectors() [][]float64 {
	if len(r.Data) > 0 {
		out := make([][]float64, len(r.Data))
		for i, d := range r.Data {
			out[i] = d.Embedding
		}
		return out
	}
	if len(r.Embedding) > 0 {
		return [][]float64{r.Embedding}
	}
	return nil
}

// EmbedText generates one vector for the given text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates one vector per input text in a single call. The
// result preserves input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts)
}

// EmbedQuery satisfies the hybrid search engine's embedder contract.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return c.EmbedText(ctx, text)
}

func (c *Client) embed(ctx context.Context, input any) ([][]float64, error) {
	req := Request{
		Model:          c.config.Model,
		Input:          input,
		EncodingFormat: "float",
	}
	var result Response
	if err := c.httpClient.Post(ctx, "/v1/embeddings", req, &result); err != nil {
		return nil, err
	}
	vecs := result.vectors()
	if len(vecs) == 0 {
		return nil, base.NewClientError(ServiceName, "POST /v1/embeddings", ErrEmptyResponse)
	}
	return vecs, nil
}
