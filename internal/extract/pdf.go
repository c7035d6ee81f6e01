package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// extractPDF tries embedded text first and falls through to page-by-page
// OCR when the PDF carries too little of it (scanned documents).
func (e *Extractor) extractPDF(ctx context.Context, path string) TextResult {
	text, pages, err := e.embeddedText(path)
	if err == nil && nonWhitespaceLen(text) >= e.cfg.MinTextLength {
		return TextResult{Text: text, Source: SourceEmbedded, Pages: pages}
	}
	if err != nil {
		e.logger.Debug("extract.pdf.embedded_failed", "path", path, "error", err)
	} else {
		e.logger.Info("extract.pdf.embedded_thin", "path", path, "chars", nonWhitespaceLen(text))
	}

	ocrText, ocrPages, ocrErr := e.pdfToOCR(ctx, path)
	if ocrErr != nil {
		// keep whatever embedded text we had, however thin
		if text != "" {
			return TextResult{Text: text, Source: SourceEmbedded, Pages: pages,
				FailureReason: fmt.Sprintf("ocr fallback failed: %v", ocrErr)}
		}
		return TextResult{Source: SourceNone, FailureReason: ocrErr.Error()}
	}
	if strings.TrimSpace(ocrText) == "" && text != "" {
		return TextResult{Text: text, Source: SourceEmbedded, Pages: pages}
	}
	return TextResult{Text: ocrText, Source: SourceOCR, Pages: ocrPages}
}

// embeddedText pulls the text layer straight out of the PDF structure.
func (e *Extractor) embeddedText(path string) (string, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read pdf: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), pages, nil
}

// pdfToOCR renders each page with go-fitz, preprocesses it and runs
// tesseract, concatenating page texts with a form-feed marker.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	tmpDir, err := os.MkdirTemp("", "inv-ocr-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("extract.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	pages := doc.NumPage()
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
	}
	if pages == 0 {
		return "", 0, fmt.Errorf("pdf has no pages")
	}

	var b strings.Builder
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return b.String(), i, err
		}
		img, err := doc.ImageDPI(i, float64(e.cfg.DPI))
		if err != nil {
			e.logger.Warn("extract.pdf.render_failed", "path", path, "page", i, "error", err)
			continue
		}

		pagePath := filepath.Join(tmpDir, fmt.Sprintf("page-%03d.png", i))
		if err := imaging.Save(preprocess(img), pagePath); err != nil {
			e.logger.Warn("extract.pdf.page_save_failed", "path", path, "page", i, "error", err)
			continue
		}

		txt, err := e.tesseractOCR(ctx, pagePath)
		if err != nil {
			e.logger.Warn("extract.pdf.page_ocr_failed", "path", path, "page", i, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	return b.String(), pages, nil
}
