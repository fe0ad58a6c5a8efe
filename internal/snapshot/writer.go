package snapshot

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"cropfetcher/internal/table"
)

// Writer persists a table under a destination name, replacing any
// previous snapshot with that name.
type Writer interface {
	Write(destination string, t *table.Table) error
}

// CSVWriter writes snapshots as CSV files into a flat directory.
type CSVWriter struct {
	fs  afero.Fs
	dir string
}

// NewCSVWriter creates a writer rooted at dir on fs. The directory is
// created on first write if it does not exist.
func NewCSVWriter(fs afero.Fs, dir string) *CSVWriter {
	return &CSVWriter{
		fs:  fs,
		dir: dir,
	}
}

// Path returns the file a destination is written to.
func (w *CSVWriter) Path(destination string) string {
	return filepath.Join(w.dir, destination)
}

// Write serializes t as CSV (header row first, columns in table order) to
// a temporary file and renames it over the destination. On any error the
// previous snapshot is left untouched.
func (w *CSVWriter) Write(destination string, t *table.Table) (err error) {
	if destination == "" || strings.ContainsAny(destination, `/\`) {
		return fmt.Errorf("invalid destination %q", destination)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid table for %s: %w", destination, err)
	}

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := afero.TempFile(w.fs, w.dir, "."+destination+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			w.fs.Remove(tmp.Name())
		}
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := w.fs.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := w.fs.Rename(tmp.Name(), w.Path(destination)); err != nil {
		return fmt.Errorf("replace %s: %w", destination, err)
	}

	return nil
}
