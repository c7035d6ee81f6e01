package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-pipeline/internal/common"
	"invoice-pipeline/internal/discovery"
	"invoice-pipeline/internal/extract"
	"invoice-pipeline/internal/invoice"
)

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

func ptr[T any](v T) *T { return &v }

type fakeExtractor struct {
	fn func(doc discovery.Document) extract.TextResult
}

func (f *fakeExtractor) Extract(_ context.Context, doc discovery.Document) extract.TextResult {
	return f.fn(doc)
}

type fakeStructurer struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string, doc discovery.Document) invoice.Invoice
}

func (f *fakeStructurer) Structure(_ context.Context, text string, doc discovery.Document) invoice.Invoice {
	f.mu.Lock()
	f.calls = append(f.calls, doc.Path)
	f.mu.Unlock()
	return f.fn(text, doc)
}

func (f *fakeStructurer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func goodText(doc discovery.Document) extract.TextResult {
	return extract.TextResult{
		Text:       "Invoice " + doc.Stem() + " total 100.00",
		Source:     extract.SourceEmbedded,
		Sufficient: true,
	}
}

func structured(_ string, doc discovery.Document) invoice.Invoice {
	return invoice.Invoice{
		Header: invoice.Header{
			InvoiceNumber: doc.Stem(),
			VendorName:    ptr("Acme Corp"),
			TotalAmount:   ptr(100.0),
			Currency:      ptr("USD"),
		},
		LineItems: []invoice.LineItem{
			{Description: "Service", Quantity: ptr(1.0), UnitPrice: ptr(100.0), LineTotal: ptr(100.0)},
		},
		FilePath:    doc.Path,
		Method:      "openai",
		ProcessedAt: time.Now(),
	}
}

func fallbackInvoice(text string, doc discovery.Document) invoice.Invoice {
	return invoice.Invoice{
		Header: invoice.Header{
			InvoiceNumber: doc.Stem(),
			VendorName:    ptr(invoice.FallbackVendorName),
		},
		LineItems: []invoice.LineItem{
			{Description: invoice.FallbackTextPrefix + text},
		},
		FilePath:    doc.Path,
		Method:      invoice.FallbackMethod,
		ProcessedAt: time.Now(),
	}
}

func touch(path string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	Expect(err).ToNot(HaveOccurred())
	return rows
}

var _ = Describe("Runner", func() {
	var (
		input, output, processed string
		extractor                *fakeExtractor
		chain                    *fakeStructurer
		runner                   *Runner
		opts                     Options
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		input = filepath.Join(root, "in")
		output = filepath.Join(root, "out")
		processed = filepath.Join(root, "done")
		Expect(os.MkdirAll(input, 0o755)).To(Succeed())

		extractor = &fakeExtractor{fn: goodText}
		chain = &fakeStructurer{fn: structured}
		runner = NewRunner(extractor, chain, slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
		opts = Options{Input: input, Output: output, Processed: processed, Recursive: true, Workers: 1}
	})

	When("the input directory is empty", func() {
		It("completes without writing any outputs", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.WroteOutputs).To(BeFalse())
			Expect(res.Processing.TotalFiles).To(Equal(0))
			_, statErr := os.Stat(output)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	When("the input directory does not exist", func() {
		It("fails discovery", func() {
			opts.Input = filepath.Join(input, "nope")
			_, err := runner.Run(context.Background(), opts)
			Expect(err).To(HaveOccurred())
		})
	})

	When("every document extracts and structures cleanly", func() {
		BeforeEach(func() {
			touch(filepath.Join(input, "inv-001.pdf"))
			touch(filepath.Join(input, "sub", "inv-002.png"))
		})

		It("writes the full report set", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.WroteOutputs).To(BeTrue())
			Expect(res.Processing.TotalFiles).To(Equal(2))
			Expect(res.Processing.SucceededAI).To(Equal(2))
			Expect(res.Processing.Failed).To(Equal(0))

			records := readCSV(res.Outputs.Records)
			Expect(records).To(HaveLen(3), "header plus one row per line item")

			summary := readCSV(res.Outputs.SummaryTable)
			Expect(summary).To(HaveLen(3))

			narrative, err := os.ReadFile(res.Outputs.Narrative)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(narrative)).To(ContainSubstring("Total files processed:      2"))
		})

		It("relocates processed files preserving subdirectories", func() {
			_, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())

			Expect(filepath.Join(processed, "inv-001.pdf")).To(BeAnExistingFile())
			Expect(filepath.Join(processed, "sub", "inv-002.png")).To(BeAnExistingFile())
			Expect(filepath.Join(input, "inv-001.pdf")).ToNot(BeAnExistingFile())
		})

		It("aggregates financials from structured totals", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Financial.InvoiceCount).To(Equal(2))
			Expect(res.Financial.Total).To(Equal(200.0))
		})

		It("optionally writes an XLSX workbook", func() {
			opts.Workbook = true
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Outputs.Workbook).To(BeAnExistingFile())
		})
	})

	When("extraction yields insufficient text", func() {
		BeforeEach(func() {
			touch(filepath.Join(input, "blank.pdf"))
			extractor.fn = func(doc discovery.Document) extract.TextResult {
				return extract.TextResult{Source: extract.SourceNone, Sufficient: false, FailureReason: "ocr produced no text"}
			}
		})

		It("marks the file failed and leaves it in place", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Processing.Failed).To(Equal(1))
			Expect(chain.callCount()).To(Equal(0), "structuring is skipped without text")
			Expect(filepath.Join(input, "blank.pdf")).To(BeAnExistingFile())

			narrative, err := os.ReadFile(res.Outputs.Narrative)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(narrative)).To(ContainSubstring("ocr produced no text"))
		})
	})

	When("structuring falls back to raw text", func() {
		BeforeEach(func() {
			touch(filepath.Join(input, "scan.jpg"))
			chain.fn = fallbackInvoice
		})

		It("classifies the file as OCR only and still relocates it", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Processing.SucceededOCR).To(Equal(1))
			Expect(res.Processing.SucceededAI).To(Equal(0))
			Expect(filepath.Join(processed, "scan.jpg")).To(BeAnExistingFile())
		})
	})

	When("running with multiple workers", func() {
		BeforeEach(func() {
			for i := 0; i < 8; i++ {
				touch(filepath.Join(input, "inv-"+string(rune('a'+i))+".pdf"))
			}
			opts.Workers = 4
		})

		It("processes every file exactly once", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Processing.TotalFiles).To(Equal(8))
			Expect(res.Processing.SucceededAI).To(Equal(8))
			Expect(chain.callCount()).To(Equal(8))

			records := readCSV(res.Outputs.Records)
			Expect(records).To(HaveLen(9))
		})
	})

	When("the output directory cannot be created", func() {
		BeforeEach(func() {
			touch(filepath.Join(input, "inv-001.pdf"))
			// A regular file where the output directory should go makes
			// every report write fail.
			touch(output)
		})

		It("surfaces an output error without undoing relocations or results", func() {
			res, err := runner.Run(context.Background(), opts)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, common.ErrOutput)).To(BeTrue())

			Expect(filepath.Join(processed, "inv-001.pdf")).To(BeAnExistingFile())
			Expect(res.Processing.TotalFiles).To(Equal(1))
			Expect(res.Processing.SucceededAI).To(Equal(1))
			Expect(res.Financial.Total).To(Equal(100.0))
			Expect(res.WroteOutputs).To(BeFalse())
		})
	})

	When("the context is already canceled", func() {
		BeforeEach(func() {
			touch(filepath.Join(input, "inv-001.pdf"))
		})

		It("dispatches nothing but still writes an empty report", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := runner.Run(ctx, opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Processing.TotalFiles).To(Equal(0))
			Expect(res.WroteOutputs).To(BeTrue())

			narrative, err := os.ReadFile(res.Outputs.Narrative)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(narrative)).To(ContainSubstring("No files were processed."))
		})
	})
})

var _ = Describe("Watch", func() {
	It("processes files dropped into the directory as a batch", func() {
		root := GinkgoT().TempDir()
		input := filepath.Join(root, "in")
		output := filepath.Join(root, "out")
		processed := filepath.Join(root, "done")
		Expect(os.MkdirAll(input, 0o755)).To(Succeed())

		extractor := &fakeExtractor{fn: goodText}
		chain := &fakeStructurer{fn: structured}
		runner := NewRunner(extractor, chain, slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
		opts := Options{Input: input, Output: output, Processed: processed, Workers: 1}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- runner.Watch(ctx, opts, WatchConfig{Debounce: 50 * time.Millisecond})
		}()

		// Give the watcher a moment to register before dropping the file.
		time.Sleep(100 * time.Millisecond)
		touch(filepath.Join(input, "dropped.pdf"))

		Eventually(func() int {
			return chain.callCount()
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(1))

		Eventually(func() bool {
			entries, err := os.ReadDir(output)
			if err != nil {
				return false
			}
			for _, e := range entries {
				if strings.HasPrefix(e.Name(), "processed_invoices_") {
					return true
				}
			}
			return false
		}, 3*time.Second, 20*time.Millisecond).Should(BeTrue())

		cancel()
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})
})
