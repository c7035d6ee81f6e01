// Package discovery locates candidate invoice documents under an input
// root and relocates processed files into the output tree.
package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"invoice-pipeline/constants"
)

// Document is one discovered candidate file. Immutable once created.
type Document struct {
	Path         string
	Format       constants.Format
	DiscoveredAt time.Time
}

// Stem returns the file name without directory or extension. Used as the
// invoice-number fallback when no better value is extracted.
func (d Document) Stem() string {
	base := filepath.Base(d.Path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Discover walks root and returns every supported document, ordered
// lexicographically by path so downstream reporting is reproducible.
// Unsupported extensions are skipped without logging; hidden files and
// directories are ignored. An unreadable root is a hard error.
func Discover(root string, recursive bool, logger *slog.Logger) ([]Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %q is not a directory", root)
	}

	var docs []Document
	now := time.Now()

	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if isHidden(path) && path != root {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if format := constants.MapExtToFormat(filepath.Ext(path)); format != "" {
				docs = append(docs, Document{Path: path, Format: format, DiscoveredAt: now})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || isHidden(entry.Name()) {
				continue
			}
			if format := constants.MapExtToFormat(filepath.Ext(entry.Name())); format != "" {
				docs = append(docs, Document{
					Path:         filepath.Join(root, entry.Name()),
					Format:       format,
					DiscoveredAt: now,
				})
			}
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	logger.Info("discovery.done", "root", root, "recursive", recursive, "files", len(docs))
	return docs, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && base[0] == '.'
}
