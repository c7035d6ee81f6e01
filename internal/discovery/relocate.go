package discovery

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"invoice-pipeline/internal/invoice"
)

// Relocate moves a successfully processed source file under processedRoot,
// mirroring its path relative to inputRoot. Files with a failed outcome are
// left in place for inspection and the original path is returned.
//
// A name collision at the destination appends an incrementing numeric
// suffix to the stem until a free name is found; nothing is overwritten.
func Relocate(doc Document, outcome invoice.Outcome, inputRoot, processedRoot string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if outcome == invoice.OutcomeFailed {
		logger.Info("relocate.skipped", "path", doc.Path, "outcome", string(outcome))
		return doc.Path, nil
	}

	dest := filepath.Join(processedRoot, filepath.Base(doc.Path))
	if rel, err := filepath.Rel(inputRoot, doc.Path); err == nil && filepath.IsLocal(rel) {
		dest = filepath.Join(processedRoot, rel)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create processed dir: %w", err)
	}

	dest, err := resolveCollision(dest)
	if err != nil {
		return "", err
	}

	if err := moveFile(doc.Path, dest); err != nil {
		return "", fmt.Errorf("move %s -> %s: %w", doc.Path, dest, err)
	}

	logger.Info("relocate.moved", "from", doc.Path, "to", dest)
	return dest, nil
}

// maxCollisionSuffix bounds the search for a free destination name.
const maxCollisionSuffix = 10000

// resolveCollision returns dest unchanged when free, otherwise the first
// "<stem>_<n><ext>" that does not exist yet. A stat failure other than
// not-exist is surfaced instead of being mistaken for a taken name.
func resolveCollision(dest string) (string, error) {
	free, err := nameFree(dest)
	if err != nil {
		return "", err
	}
	if free {
		return dest, nil
	}

	dir := filepath.Dir(dest)
	ext := filepath.Ext(dest)
	stem := filepath.Base(dest)
	stem = stem[:len(stem)-len(ext)]
	for counter := 1; counter <= maxCollisionSuffix; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		free, err := nameFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", dest, maxCollisionSuffix)
}

func nameFree(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return false, nil
	case os.IsNotExist(err):
		return true, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// moveFile renames when possible and falls back to copy-then-rename across
// devices. The temp-then-rename step keeps the destination atomic with
// respect to a crash: the source is removed only after the destination is
// fully in place.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".relocate-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Remove(src)
}
