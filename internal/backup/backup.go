// Package backup moves the application state in and out of JSON files.
package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/verte-zerg/moadil/internal/model"
)

// ErrNotObject is returned when an imported document is not a JSON object.
var ErrNotObject = model.ErrNotObject

// maxDocumentSize bounds what Import is willing to read.
const maxDocumentSize = 8 << 20

// Export writes state as an indented JSON document.
func Export(w io.Writer, state model.AppState) error {
	data, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Import reads a document written by Export. Nothing is returned unless the
// whole document decodes and validates, so a failed import never replaces the
// caller's state.
func Import(r io.Reader, defaultDark bool) (model.AppState, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return model.AppState{}, fmt.Errorf("failed to read backup: %w", err)
	}
	if n > maxDocumentSize {
		return model.AppState{}, fmt.Errorf("backup is larger than %d bytes", maxDocumentSize)
	}
	return model.DecodeState(buf.Bytes(), defaultDark)
}

// ExportFile writes state to path, replacing any existing file atomically.
func ExportFile(path string, state model.AppState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "backup-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := Export(tmpFile, state); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// ImportFile reads a backup from path.
func ImportFile(path string, defaultDark bool) (model.AppState, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.AppState{}, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only backup.
			_ = cerr
		}
	}()
	return Import(file, defaultDark)
}
