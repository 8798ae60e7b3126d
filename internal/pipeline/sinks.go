package pipeline

import (
	"context"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/export"
)

// Artifact is everything a sink may persist at the end of a run.
type Artifact struct {
	RunID    string
	Document export.Document
}

// Sink persists a run artifact. Sinks run concurrently and must not mutate
// the artifact.
type Sink interface {
	Name() string
	Write(ctx context.Context, a Artifact) error
}

// FileSink writes the export document to a local path.
type FileSink struct {
	Path string
}

func (s FileSink) Name() string { return "file" }

func (s FileSink) Write(_ context.Context, a Artifact) error {
	return export.WriteFile(s.Path, a.Document)
}

// BlobSink uploads the export document to object storage.
type BlobSink struct {
	Writer domain.BlobWriter
}

func (s BlobSink) Name() string { return "blob" }

func (s BlobSink) Write(ctx context.Context, a Artifact) error {
	return export.Upload(ctx, s.Writer, export.ObjectKey(a.RunID, a.Document.Metadata.GeneratedAt), a.Document)
}
