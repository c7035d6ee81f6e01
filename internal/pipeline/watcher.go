package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"invoice-pipeline/constants"
	"invoice-pipeline/internal/common"
	"invoice-pipeline/internal/discovery"
	"invoice-pipeline/internal/report"
)

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce    time.Duration // coalesce rapid create/write bursts
	InitialScan bool          // process files already present at startup
}

// Watch observes opts.Input for new supported files and processes each
// debounced batch as its own run, writing a fresh report set per batch.
// It blocks until ctx is canceled.
func (r *Runner) Watch(ctx context.Context, opts Options, cfg WatchConfig) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %w", common.ErrDiscovery, err)
	}
	defer func() { _ = w.Close() }()

	if err := addTree(w, opts.Input); err != nil {
		return fmt.Errorf("%w: watch input directory: %w", common.ErrDiscovery, err)
	}
	r.logger.Info("watch.started", "input", opts.Input, "debounce", cfg.Debounce.String())

	if cfg.InitialScan {
		if res, err := r.Run(ctx, opts); err != nil {
			r.logger.Error("watch.initial_scan.failed", "error", err)
		} else if res.WroteOutputs {
			r.logger.Info("watch.initial_scan.ok", "outputs", describeOutputs(res.Outputs))
		}
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	settled := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch.stopped")
			return nil

		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Op&fsnotify.Create != 0 {
				// New subdirectories need their own watch.
				if info, statErr := os.Stat(e.Name); statErr == nil && info.IsDir() {
					if err := addTree(w, e.Name); err != nil {
						r.logger.Warn("watch.add_dir.failed", "path", e.Name, "error", err)
					}
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && constants.IsSupported(filepath.Ext(e.Name)) {
				pending[e.Name] = struct{}{}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, func() {
					select {
					case settled <- struct{}{}:
					default:
					}
				})
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watch.error", "error", err)

		case <-settled:
			batch := make([]discovery.Document, 0, len(pending))
			now := time.Now()
			for path := range pending {
				delete(pending, path)
				// Relocation renames files away; skip anything already gone.
				if _, statErr := os.Stat(path); statErr != nil {
					continue
				}
				format := constants.MapExtToFormat(filepath.Ext(path))
				if format == "" {
					continue
				}
				batch = append(batch, discovery.Document{Path: path, Format: format, DiscoveredAt: now})
			}
			if len(batch) == 0 {
				continue
			}
			r.processBatch(ctx, batch, opts)
		}
	}
}

func (r *Runner) processBatch(ctx context.Context, batch []discovery.Document, opts Options) {
	r.logger.Info("watch.batch", "files", len(batch))

	acc := report.NewAccumulator(opts.Input)
	r.processAll(ctx, batch, opts, acc)

	res, err := r.writeReports(opts, acc)
	if err != nil {
		r.logger.Error("watch.batch.report_failed", "error", err)
		return
	}
	r.logger.Info("watch.batch.ok",
		"files", res.Processing.TotalFiles,
		"failed", res.Processing.Failed,
		"outputs", describeOutputs(res.Outputs),
	)
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
