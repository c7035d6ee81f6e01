package llm

import (
	"context"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"invoice-pipeline/internal/discovery"
	"invoice-pipeline/internal/invoice"
)

// Config holds retry and validation settings for the provider chain.
type Config struct {
	MaxAttempts        int           // attempts per provider, default 3
	BaseDelay          time.Duration // first backoff delay, doubles per retry
	Tolerance          float64       // line total vs quantity*unit_price slack
	MaxFallbackTextLen int           // raw-text truncation in the fallback invoice
}

// Chain tries providers strictly in priority order and degrades to a
// synthetic invoice when every one of them fails. Structure never returns
// an error: one invoice comes out for every document that goes in.
type Chain struct {
	providers []Provider
	limiter   *rate.Limiter
	cfg       Config
	logger    *slog.Logger
}

// NewChain builds a chain over the given providers (primary first). A nil
// limiter disables rate limiting; a shared limiter makes concurrent
// workers respect one global provider budget.
func NewChain(providers []Provider, limiter *rate.Limiter, cfg Config, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 0.05
	}
	if cfg.MaxFallbackTextLen <= 0 {
		cfg.MaxFallbackTextLen = 500
	}
	return &Chain{providers: providers, limiter: limiter, cfg: cfg, logger: logger}
}

// Providers returns the configured provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Structure converts raw text into an invoice. Providers are attempted one
// at a time, each with bounded retries; the first validated response wins.
// With zero providers, or after the last one fails, the basic fallback
// invoice is synthesized from the raw text.
func (c *Chain) Structure(ctx context.Context, text string, doc discovery.Document) invoice.Invoice {
	for _, p := range c.providers {
		raw, err := c.attempt(ctx, p, text)
		if err != nil {
			c.logger.Warn("chain.provider.failed",
				"provider", p.Name(), "path", doc.Path, "error", err)
			continue
		}

		parsed, dropped, err := parseResponse(raw)
		if err != nil {
			c.logger.Warn("chain.provider.unparseable",
				"provider", p.Name(), "path", doc.Path, "error", err)
			continue
		}
		if len(dropped) > 0 {
			c.logger.Warn("chain.response.sanitized",
				"provider", p.Name(), "path", doc.Path, "dropped", dropped)
		}

		inv := c.build(parsed, text, doc, p.Name())
		c.logger.Info("chain.structured",
			"provider", p.Name(),
			"path", doc.Path,
			"invoice_number", inv.Header.InvoiceNumber,
			"line_items", len(inv.LineItems),
		)
		return inv
	}

	c.logger.Info("chain.fallback", "path", doc.Path, "providers_tried", len(c.providers))
	return c.fallback(text, doc)
}

// attempt calls one provider with bounded exponential backoff. Only
// transient failures are retried; permanent ones fail the provider right
// away so the chain can advance.
func (c *Chain) attempt(ctx context.Context, p Provider, text string) ([]byte, error) {
	var lastErr error
	delay := c.cfg.BaseDelay
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		raw, err := p.Extract(ctx, text)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !Transient(err) || attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Debug("chain.provider.retry",
			"provider", p.Name(), "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (c *Chain) build(parsed responseDocument, text string, doc discovery.Document, method string) invoice.Invoice {
	header := parsed.Header
	if header.InvoiceNumber == "" {
		header.InvoiceNumber = doc.Stem()
	}

	c.checkLineTotals(parsed.LineItems, doc)

	return invoice.Invoice{
		Header:      header,
		LineItems:   parsed.LineItems,
		RawText:     text,
		FilePath:    doc.Path,
		Method:      method,
		ProcessedAt: time.Now(),
	}
}

// checkLineTotals warns when a line total strays from quantity*unit_price
// beyond the configured tolerance. Implausible arithmetic is a signal for
// review, not grounds for rejection.
func (c *Chain) checkLineTotals(items []invoice.LineItem, doc discovery.Document) {
	for i, item := range items {
		if item.Quantity == nil || item.UnitPrice == nil || item.LineTotal == nil {
			continue
		}
		expected := *item.Quantity * *item.UnitPrice
		slack := c.cfg.Tolerance * math.Max(1, math.Abs(expected))
		if math.Abs(expected-*item.LineTotal) > slack {
			c.logger.Warn("chain.line_total.implausible",
				"path", doc.Path,
				"line", i,
				"quantity", *item.Quantity,
				"unit_price", *item.UnitPrice,
				"line_total", *item.LineTotal,
				"expected", expected,
			)
		}
	}
}

// fallback synthesizes the minimal invoice used when structured extraction
// is unavailable: the file stem as invoice number and the raw text parked
// in a single line item for manual review.
func (c *Chain) fallback(text string, doc discovery.Document) invoice.Invoice {
	vendor := invoice.FallbackVendorName
	description := invoice.FallbackTextPrefix + truncate(text, c.cfg.MaxFallbackTextLen)

	return invoice.Invoice{
		Header: invoice.Header{
			InvoiceNumber: doc.Stem(),
			VendorName:    &vendor,
		},
		LineItems:   []invoice.LineItem{{Description: description}},
		RawText:     text,
		FilePath:    doc.Path,
		Method:      invoice.FallbackMethod,
		ProcessedAt: time.Now(),
	}
}

// truncate cuts s to at most max bytes without splitting a multi-byte
// rune, so the fallback description stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
