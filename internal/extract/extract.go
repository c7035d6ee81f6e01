// Package extract produces raw text from invoice documents via a layered
// strategy: embedded PDF text first, OCR of rendered pages or images when
// that is missing or too thin.
package extract

import (
	"context"
	"log/slog"
	"time"
	"unicode"

	"invoice-pipeline/constants"
	"invoice-pipeline/internal/discovery"
)

// Source tags where the text of a TextResult came from.
type Source string

const (
	SourceEmbedded Source = "embedded"
	SourceOCR      Source = "ocr"
	SourceNone     Source = "none"
)

// TextResult is the outcome of text extraction for a single document.
// Extraction never fails hard; unreadable input yields empty text with
// Sufficient=false and the reason recorded.
type TextResult struct {
	Text          string
	Source        Source
	Sufficient    bool
	Pages         int
	Duration      time.Duration
	FailureReason string
}

// Config holds the extraction strategy knobs.
type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit
	PSM           int

	// MinTextLength is the embedded-text sufficiency threshold: fewer
	// non-whitespace runes than this and the PDF falls through to OCR.
	MinTextLength int
	// MinAIInputLength is the floor below which the final text is not
	// worth sending to an AI provider at all.
	MinAIInputLength int
}

// Extractor picks a strategy per document format.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 50
	}
	if cfg.MinAIInputLength <= 0 {
		cfg.MinAIInputLength = 20
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract runs the layered strategy for one document. It never returns an
// error: recoverable failures are folded into the result and logged.
func (e *Extractor) Extract(ctx context.Context, doc discovery.Document) TextResult {
	start := time.Now()
	e.logger.Debug("extract.start", "path", doc.Path, "format", string(doc.Format))

	var res TextResult
	switch doc.Format {
	case constants.PDF:
		res = e.extractPDF(ctx, doc.Path)
	case constants.IMAGE:
		res = e.extractImage(ctx, doc.Path)
	default:
		res = TextResult{Source: SourceNone, FailureReason: "unsupported format"}
	}

	res.Text = Normalize(res.Text)
	res.Sufficient = nonWhitespaceLen(res.Text) >= e.cfg.MinAIInputLength
	res.Duration = time.Since(start)

	if res.FailureReason != "" {
		e.logger.Warn("extract.degraded",
			"path", doc.Path, "reason", res.FailureReason, "source", string(res.Source))
	} else {
		e.logger.Info("extract.ok",
			"path", doc.Path,
			"source", string(res.Source),
			"pages", res.Pages,
			"chars", len(res.Text),
			"sufficient", res.Sufficient,
			"elapsed_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}

func nonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
