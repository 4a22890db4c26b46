// Package doc2x provides the client for the Doc2X document-parsing service,
// used to turn PDFs and office documents into markdown before chunking.
package doc2x

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hsn0918/netkb/internal/clients/base"
	"github.com/hsn0918/netkb/internal/config"
)

const ServiceName = "doc2x"

// DefaultPollInterval paces the parse-status polling loop.
const DefaultPollInterval = 2 * time.Second

// Parser defines the interface for document parsing operations.
type Parser interface {
	ParseToMarkdown(ctx context.Context, data []byte) (string, error)
}

// Client drives the Doc2X parse API: upload, poll, collect page markdown.
type Client struct {
	httpClient   *base.HTTPClient
	config       config.ServiceConfig
	pollInterval time.Duration
}

var _ Parser = (*Client)(nil)

// NewClient creates a Doc2X client with the long call timeout.
func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{
		httpClient:   base.NewHTTPClient(ServiceName, cfg, base.EmbeddingTimeout),
		config:       cfg,
		pollInterval: DefaultPollInterval,
	}
}

type uploadResponse struct {
	Code string `json:"code"`
	Data struct {
		UID string `json:"uid"`
	} `json:"data"`
}

type statusResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data *struct {
		Progress int    `json:"progress"`
		Status   string `json:"status"`
		Detail   string `json:"detail"`
		Result   *struct {
			Pages []struct {
				PageIdx int    `json:"page_idx"`
				Md      string `json:"md"`
			} `json:"pages"`
		} `json:"result"`
	} `json:"data"`
}

// ParseToMarkdown uploads the document, waits for parsing to finish and
// returns the concatenated per-page markdown.
func (c *Client) ParseToMarkdown(ctx context.Context, data []byte) (string, error) {
	uid, err := c.upload(ctx, data)
	if err != nil {
		return "", err
	}
	status, err := c.waitForParsing(ctx, uid)
	if err != nil {
		return "", err
	}

	if status.Data == nil || status.Data.Result == nil {
		return "", base.NewClientError(ServiceName, "parse", fmt.Errorf("empty parse result for uid %s", uid))
	}
	var b strings.Builder
	for _, page := range status.Data.Result.Pages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(page.Md)
	}
	return b.String(), nil
}

func (c *Client) upload(ctx context.Context, data []byte) (string, error) {
	var result uploadResponse
	if err := c.httpClient.PostRaw(ctx, "/api/v2/parse/pdf", data, &result); err != nil {
		return "", err
	}
	if result.Code != "success" || result.Data.UID == "" {
		return "", base.NewClientError(ServiceName, "upload", fmt.Errorf("upload rejected: %s", result.Code))
	}
	return result.Data.UID, nil
}

func (c *Client) waitForParsing(ctx context.Context, uid string) (*statusResponse, error) {
	for {
		var status statusResponse
		err := c.httpClient.Get(ctx, "/api/v2/parse/status", map[string]string{"uid": uid}, &status)
		if err != nil {
			return nil, err
		}
		if status.Code != "success" {
			return nil, base.NewClientError(ServiceName, "status",
				fmt.Errorf("parse failed: %s %s", status.Code, status.Msg))
		}

		switch status.Data.Status {
		case "success":
			return &status, nil
		case "failed":
			return nil, base.NewClientError(ServiceName, "status",
				fmt.Errorf("parse failed: %s", status.Data.Detail))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
