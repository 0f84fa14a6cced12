// Package archive stores uploaded statement files so an analysis can be
// re-run later without asking the user to upload again.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gcsstorage "cloud.google.com/go/storage"
)

// Archiver persists raw statement uploads and returns the stored path.
type Archiver interface {
	Save(ctx context.Context, sessionID, filename string, data []byte) (string, error)
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// GCSArchiver stores statements in a Google Cloud Storage bucket under
// statements/{sessionID}/{sha}-{filename}, so re-uploading the same file
// overwrites rather than accumulates.
type GCSArchiver struct {
	bucket *gcsstorage.BucketHandle
	logger *slog.Logger
}

// NewGCSArchiver creates an archiver writing to the given bucket.
func NewGCSArchiver(bucket *gcsstorage.BucketHandle, logger *slog.Logger) *GCSArchiver {
	return &GCSArchiver{
		bucket: bucket,
		logger: logger.With("component", "archive"),
	}
}

func (a *GCSArchiver) Save(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	path := fmt.Sprintf("statements/%s/%s-%s",
		sessionID, hex.EncodeToString(sum[:])[:12], sanitizeFilename(filename))

	w := a.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentTypeForFilename(filename)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write statement object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize statement object: %w", err)
	}

	a.logger.Info("archived statement", "path", path, "bytes", len(data))
	return path, nil
}

func (a *GCSArchiver) Fetch(ctx context.Context, path string) ([]byte, error) {
	reader, err := a.bucket.Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open statement object: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read statement object: %w", err)
	}
	return data, nil
}

// NoopArchiver discards uploads. It backs local development where no bucket
// is configured.
type NoopArchiver struct{}

func (NoopArchiver) Save(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	return "", nil
}

func (NoopArchiver) Fetch(ctx context.Context, path string) ([]byte, error) {
	return nil, fmt.Errorf("archiving is not configured")
}

// sanitizeFilename removes or replaces characters unsafe for object names.
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "", " ", "_")
	result := replacer.Replace(s)
	if len(result) > 80 {
		result = result[:80]
	}
	if result == "" {
		result = "statement"
	}
	return result
}

func contentTypeForFilename(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
