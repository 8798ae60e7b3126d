package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// multipartThreshold is the document size above which uploads switch to
// multipart.
const multipartThreshold = 16 << 20

// WriteFile writes the document to path atomically: it writes a temporary
// file in the same directory and renames it into place.
func WriteFile(path string, doc Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("export: sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("export: chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename to %s: %w", path, err)
	}
	return nil
}

// ObjectKey returns the blob key for a run's document.
func ObjectKey(runID string, at time.Time) string {
	return fmt.Sprintf("exports/%s/markets-%s.json", at.UTC().Format("2006-01-02"), runID)
}

// Upload stores the document under key via w.
func Upload(ctx context.Context, w domain.BlobWriter, key string, doc Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	if len(data) > multipartThreshold {
		err = w.PutMultipart(ctx, key, bytes.NewReader(data), 0)
	} else {
		err = w.Put(ctx, key, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		return fmt.Errorf("export: upload %s: %w", key, err)
	}
	return nil
}
