package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalPublisher writes artifacts under a directory and returns file://
// URLs. Used when S3 is disabled, and by tests.
type LocalPublisher struct {
	Dir string
}

func NewLocalPublisher(dir string) (*LocalPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalPublisher{Dir: dir}, nil
}

func (p *LocalPublisher) Publish(_ context.Context, scanID string, kind ArtifactKind, data []byte) (string, error) {
	dir := filepath.Join(p.Dir, scanID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir for scan %s: %w", scanID, err)
	}
	path := filepath.Join(dir, kind.fileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", kind, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}
