// Package pipeline orchestrates a full run: discover documents, extract
// text, structure it, flatten, relocate and report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"invoice-pipeline/internal/common"
	"invoice-pipeline/internal/discovery"
	"invoice-pipeline/internal/extract"
	"invoice-pipeline/internal/invoice"
	"invoice-pipeline/internal/report"
)

// TextExtractor produces text from a document. Degradation is expressed
// in the result, never as an error.
type TextExtractor interface {
	Extract(ctx context.Context, doc discovery.Document) extract.TextResult
}

// Structurer turns extracted text into a structured invoice. It never
// fails; when no provider succeeds it synthesizes a fallback invoice.
type Structurer interface {
	Structure(ctx context.Context, text string, doc discovery.Document) invoice.Invoice
}

// Options configure one run.
type Options struct {
	Input     string
	Output    string
	Processed string
	Recursive bool
	Workers   int  // 1 means sequential
	Workbook  bool // also write an XLSX report
}

// Result is what a run produced. Outputs is zero-valued when no files
// were found and nothing was written.
type Result struct {
	Processing   report.ProcessingSummary
	Financial    report.FinancialSummary
	Outputs      report.Filenames
	WroteOutputs bool
}

// Runner wires the stages together.
type Runner struct {
	extractor TextExtractor
	chain     Structurer
	logger    *slog.Logger
}

func NewRunner(extractor TextExtractor, chain Structurer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{extractor: extractor, chain: chain, logger: logger}
}

// Run processes every supported file under opts.Input and writes the
// report set to opts.Output. A run over an empty directory completes
// with an empty Result and writes nothing. Per-file failures never abort
// the run; only discovery and output-writing problems return an error.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()

	docs, err := discovery.Discover(opts.Input, opts.Recursive, r.logger)
	if err != nil {
		return Result{}, fmt.Errorf("%w: discover input files: %w", common.ErrDiscovery, err)
	}
	if len(docs) == 0 {
		r.logger.Info("pipeline.empty", "input", opts.Input)
		return Result{}, nil
	}

	acc := report.NewAccumulator(opts.Input)
	r.processAll(ctx, docs, opts, acc)

	res, err := r.writeReports(opts, acc)
	r.logger.Info("pipeline.done",
		"files", res.Processing.TotalFiles,
		"succeeded_ai", res.Processing.SucceededAI,
		"ocr_only", res.Processing.SucceededOCR,
		"failed", res.Processing.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}

// processAll fans documents out to a bounded worker pool. Cancellation
// stops dispatching; in-flight documents finish so the report reflects
// everything that actually ran.
func (r *Runner) processAll(ctx context.Context, docs []discovery.Document, opts Options, acc *report.Accumulator) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan discovery.Document)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for doc := range jobs {
				r.processOne(ctx, doc, opts, acc)
			}
		}(i + 1)
	}

dispatch:
	for i, doc := range docs {
		if ctx.Err() != nil {
			r.logger.Warn("pipeline.canceled", "remaining", len(docs)-i)
			break
		}
		select {
		case <-ctx.Done():
			r.logger.Warn("pipeline.canceled", "remaining", len(docs)-i)
			break dispatch
		case jobs <- doc:
		}
	}
	close(jobs)
	wg.Wait()
}

func (r *Runner) processOne(ctx context.Context, doc discovery.Document, opts Options, acc *report.Accumulator) {
	log := r.logger.With("path", doc.Path)

	text := r.extractor.Extract(ctx, doc)
	if !text.Sufficient {
		reason := text.FailureReason
		if reason == "" {
			reason = "insufficient text extracted"
		}
		log.Warn("pipeline.file.failed", "reason", reason)
		acc.AddFailure(doc.Path, reason)
		return
	}

	inv := r.chain.Structure(ctx, text.Text, doc)

	outcome := invoice.OutcomeSucceededAI
	if inv.Method == invoice.FallbackMethod {
		outcome = invoice.OutcomeSucceededOCROnly
	}
	acc.AddInvoice(inv, outcome, invoice.Flatten(inv))

	if _, err := discovery.Relocate(doc, outcome, opts.Input, opts.Processed, r.logger); err != nil {
		// Relocation problems are logged, not fatal: the invoice data is
		// already captured.
		log.Warn("pipeline.relocate.failed", "error", err)
	}
	log.Info("pipeline.file.ok", "outcome", string(outcome), "method", inv.Method)
}

func (r *Runner) writeReports(opts Options, acc *report.Accumulator) (Result, error) {
	proc, fin, rows := acc.Summarize()
	res := Result{Processing: proc, Financial: fin}

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return res, fmt.Errorf("%w: create output directory: %w", common.ErrOutput, err)
	}
	res.Outputs = report.OutputFilenames(opts.Output, time.Now())

	if err := report.WriteRecordsCSV(res.Outputs.Records, acc.Records()); err != nil {
		return res, fmt.Errorf("%w: write records csv: %w", common.ErrOutput, err)
	}
	if err := report.WriteSummaryTableCSV(res.Outputs.SummaryTable, rows); err != nil {
		return res, fmt.Errorf("%w: write summary table: %w", common.ErrOutput, err)
	}
	if err := report.WriteNarrative(res.Outputs.Narrative, res.Processing, res.Financial, rows); err != nil {
		return res, fmt.Errorf("%w: write narrative report: %w", common.ErrOutput, err)
	}
	if opts.Workbook {
		if err := report.WriteWorkbook(res.Outputs.Workbook, acc.Records(), rows, res.Processing, res.Financial); err != nil {
			return res, fmt.Errorf("%w: write workbook: %w", common.ErrOutput, err)
		}
	} else {
		res.Outputs.Workbook = ""
	}
	res.WroteOutputs = true
	return res, nil
}

func describeOutputs(names report.Filenames) string {
	s := fmt.Sprintf("%s, %s, %s", names.Records, names.SummaryTable, names.Narrative)
	if names.Workbook != "" {
		s += ", " + names.Workbook
	}
	return s
}
