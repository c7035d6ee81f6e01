package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-pipeline/internal/llm"
)

// Extract implements llm.Provider using text-only chat/completions with
// JSON-mode output. HTTP failures are classified for the chain's retry
// policy: 429 and 5xx are transient, everything else is permanent.
func (c *Client) Extract(ctx context.Context, text string) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("openai.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": "You are an expert at extracting structured data from invoices. Return only valid JSON.",
			},
			{
				"role":    "user",
				"content": llm.BuildExtractionPrompt(text),
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("openai.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, llm.NewPermanentError(fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return nil, llm.NewPermanentError(fmt.Errorf("no choices in openai response"))
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("openai.extract.ok",
		"req_id", rid,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewPermanentError(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, llm.NewPermanentError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// transport errors and timeouts are worth retrying
		return nil, llm.NewTransientError(fmt.Errorf("openai http error: %w", err))
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("read openai response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, llm.NewTransientError(fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String()))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, llm.NewPermanentError(fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String()))
	}
	return buf.Bytes(), nil
}
