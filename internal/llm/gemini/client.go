// Package gemini implements the secondary structured-extraction provider
// on Google's generative AI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"invoice-pipeline/internal/llm"
)

// Client implements llm.Provider using Google Gemini.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *slog.Logger
}

// NewClient creates a Gemini-backed provider.
func NewClient(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &Client{client: client, model: model, log: logger}, nil
}

func (c *Client) Name() string { return "gemini" }

// Extract sends the invoice text with the shared extraction prompt and
// returns the model's JSON output.
func (c *Client) Extract(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	resp, err := c.model.GenerateContent(ctx, genai.Text(llm.BuildExtractionPrompt(text)))
	if err != nil {
		return nil, classifyError(fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.NewPermanentError(fmt.Errorf("no response from gemini"))
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	content := strings.TrimSpace(b.String())
	c.log.Info("gemini.extract.ok",
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// classifyError maps API failures to retry semantics. Bad credentials and
// malformed requests fail the same way on every retry, so they are
// permanent; quota and server trouble stay transient.
func classifyError(err error) error {
	var aerr *googleapi.Error
	if errors.As(err, &aerr) {
		if aerr.Code == http.StatusTooManyRequests || aerr.Code >= 500 {
			return llm.NewTransientError(err)
		}
		return llm.NewPermanentError(err)
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
			return llm.NewPermanentError(err)
		}
	}

	// transport hiccups and anything unclassified: worth a retry
	return llm.NewTransientError(err)
}
