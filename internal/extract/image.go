package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// extractImage preprocesses the image and OCRs it directly.
func (e *Extractor) extractImage(ctx context.Context, path string) TextResult {
	src, err := imaging.Open(path)
	if err != nil {
		return TextResult{Source: SourceNone, FailureReason: fmt.Sprintf("open image: %v", err)}
	}

	tmpDir, err := os.MkdirTemp("", "inv-ocr-*")
	if err != nil {
		return TextResult{Source: SourceNone, FailureReason: fmt.Sprintf("temp dir: %v", err)}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("extract.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	processedPath := filepath.Join(tmpDir, "processed.png")
	if err := imaging.Save(preprocess(src), processedPath); err != nil {
		return TextResult{Source: SourceNone, FailureReason: fmt.Sprintf("save preprocessed image: %v", err)}
	}

	txt, err := e.tesseractOCR(ctx, processedPath)
	if err != nil {
		return TextResult{Source: SourceNone, FailureReason: fmt.Sprintf("ocr: %v", err)}
	}
	return TextResult{Text: txt, Source: SourceOCR, Pages: 1}
}

// preprocess applies denoise/contrast normalization before OCR. Scanned
// invoices respond well to grayscale + contrast + a light sharpen.
func preprocess(src image.Image) *image.NRGBA {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	return img
}

// tesseractOCR shells out to tesseract for a single image file.
func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
