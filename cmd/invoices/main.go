package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/time/rate"

	"invoice-pipeline/internal/common"
	"invoice-pipeline/internal/discovery"
	"invoice-pipeline/internal/extract"
	"invoice-pipeline/internal/llm"
	"invoice-pipeline/internal/llm/gemini"
	"invoice-pipeline/internal/llm/openai"
	"invoice-pipeline/internal/pipeline"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootFlags := ff.NewFlagSet("invoices")
	root := &ff.Command{
		Name:      "invoices",
		Usage:     "invoices <subcommand> [flags]",
		ShortHelp: "process invoice documents into structured CSV reports",
		Flags:     rootFlags,
	}
	root.Subcommands = []*ff.Command{
		newProcessCommand(rootFlags, cfg, logger),
		newWatchCommand(rootFlags, cfg, logger),
		newStatusCommand(rootFlags, cfg),
	}

	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("INVOICES"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root))
		os.Exit(2)
	case errors.Is(err, common.ErrInvalidInput):
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	default:
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

type runFlags struct {
	input       *string
	output      *string
	processed   *string
	noRecursive *bool
	workers     *int
	workbook    *bool
}

func addRunFlags(fs *ff.FlagSet, cfg *common.Config) *runFlags {
	return &runFlags{
		input:       fs.StringLong("input", "invoices", "directory containing invoice files"),
		output:      fs.StringLong("output", "output", "directory for CSV and report files"),
		processed:   fs.StringLong("processed", "processed", "directory processed files are moved into"),
		noRecursive: fs.BoolLong("no-recursive", "process only the top level of the input directory"),
		workers:     fs.IntLong("workers", cfg.Pipeline.Workers, "concurrent documents (1 = sequential)"),
		workbook:    fs.BoolLong("xlsx", "also write an XLSX workbook"),
	}
}

func (f *runFlags) options() (pipeline.Options, error) {
	if *f.input == "" {
		return pipeline.Options{}, fmt.Errorf("%w: --input is required", common.ErrInvalidInput)
	}
	return pipeline.Options{
		Input:     *f.input,
		Output:    *f.output,
		Processed: *f.processed,
		Recursive: !*f.noRecursive,
		Workers:   *f.workers,
		Workbook:  *f.workbook,
	}, nil
}

func newProcessCommand(parent *ff.FlagSet, cfg *common.Config, logger *slog.Logger) *ff.Command {
	fs := ff.NewFlagSet("process").SetParent(parent)
	flags := addRunFlags(fs, cfg)

	return &ff.Command{
		Name:      "process",
		Usage:     "invoices process [flags]",
		ShortHelp: "process every invoice in the input directory once",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			runner, cleanup, err := buildRunner(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := runner.Run(ctx, opts)
			if err != nil {
				return err
			}
			printRunResult(res)
			return nil
		},
	}
}

func newWatchCommand(parent *ff.FlagSet, cfg *common.Config, logger *slog.Logger) *ff.Command {
	fs := ff.NewFlagSet("watch").SetParent(parent)
	flags := addRunFlags(fs, cfg)
	debounce := fs.DurationLong("debounce", 2*time.Second, "settle time before processing a batch of new files")
	initialScan := fs.BoolLong("initial-scan", "process files already present at startup")

	return &ff.Command{
		Name:      "watch",
		Usage:     "invoices watch [flags]",
		ShortHelp: "watch the input directory and process new files as they arrive",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			runner, cleanup, err := buildRunner(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			return runner.Watch(ctx, opts, pipeline.WatchConfig{
				Debounce:    *debounce,
				InitialScan: *initialScan,
			})
		},
	}
}

func newStatusCommand(parent *ff.FlagSet, cfg *common.Config) *ff.Command {
	fs := ff.NewFlagSet("status").SetParent(parent)
	input := fs.StringLong("input", "invoices", "directory containing invoice files")

	return &ff.Command{
		Name:      "status",
		Usage:     "invoices status [flags]",
		ShortHelp: "report configured providers, OCR availability and pending files",
		Flags:     fs,
		Exec: func(_ context.Context, _ []string) error {
			printStatus(cfg, *input)
			return nil
		},
	}
}

// buildRunner wires extractor, providers and chain from config. Providers
// are optional: with none configured every invoice degrades to the OCR
// fallback.
func buildRunner(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	extractor := extract.NewExtractor(extract.Config{
		Tesseract:        cfg.OCR.Tesseract,
		TesseractLang:    cfg.OCR.TesseractLang,
		TessdataDir:      cfg.OCR.TessdataDir,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		PSM:              cfg.OCR.PSM,
		MinTextLength:    cfg.Extract.MinTextLength,
		MinAIInputLength: cfg.Extract.MinAIInputLength,
	}, logger)

	var providers []llm.Provider
	cleanup := func() {}

	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		}, logger))
		logger.Info("provider configured", "name", "openai", "model", cfg.OpenAI.Model)
	}
	if cfg.Gemini.APIKey != "" {
		gc, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini client: %w", err)
		}
		providers = append(providers, gc)
		cleanup = func() { _ = gc.Close() }
		logger.Info("provider configured", "name", "gemini", "model", cfg.Gemini.Model)
	}
	if len(providers) == 0 {
		logger.Warn("no AI providers configured, every invoice will use the OCR fallback")
	}

	var limiter *rate.Limiter
	if cfg.Chain.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Chain.RatePerSecond), 1)
	}
	chain := llm.NewChain(providers, limiter, llm.Config{
		MaxAttempts:        cfg.Chain.MaxAttempts,
		BaseDelay:          cfg.Chain.BaseDelay,
		Tolerance:          cfg.Chain.Tolerance,
		MaxFallbackTextLen: cfg.Chain.MaxFallbackTextLen,
	}, logger)

	return pipeline.NewRunner(extractor, chain, logger), cleanup, nil
}

func printRunResult(res pipeline.Result) {
	fmt.Printf("Processing complete!\n")
	fmt.Printf("- Files processed: %d\n", res.Processing.TotalFiles)
	fmt.Printf("- AI extracted: %d\n", res.Processing.SucceededAI)
	fmt.Printf("- OCR only: %d\n", res.Processing.SucceededOCR)
	fmt.Printf("- Failed: %d\n", res.Processing.Failed)
	if res.WroteOutputs {
		fmt.Printf("- Records: %s\n", res.Outputs.Records)
		fmt.Printf("- Summary table: %s\n", res.Outputs.SummaryTable)
		fmt.Printf("- Report: %s\n", res.Outputs.Narrative)
		if res.Outputs.Workbook != "" {
			fmt.Printf("- Workbook: %s\n", res.Outputs.Workbook)
		}
	} else {
		fmt.Printf("- No supported files found, nothing written\n")
	}
}

func printStatus(cfg *common.Config, input string) {
	fmt.Println("invoices status")

	if cfg.OpenAI.APIKey != "" {
		fmt.Printf("- openai: configured (model %s)\n", cfg.OpenAI.Model)
	} else {
		fmt.Println("- openai: not configured (OPENAI_API_KEY unset)")
	}
	if cfg.Gemini.APIKey != "" {
		fmt.Printf("- gemini: configured (model %s)\n", cfg.Gemini.Model)
	} else {
		fmt.Println("- gemini: not configured (GEMINI_API_KEY unset)")
	}

	if path, err := exec.LookPath(cfg.OCR.Tesseract); err == nil {
		fmt.Printf("- tesseract: %s\n", path)
	} else {
		fmt.Printf("- tesseract: not found (%s)\n", cfg.OCR.Tesseract)
	}

	docs, err := discovery.Discover(input, true, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		fmt.Printf("- input %s: %v\n", input, err)
		return
	}
	fmt.Printf("- input %s: %d supported file(s) pending\n", input, len(docs))
}
