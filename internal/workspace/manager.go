// Package workspace manages per-job scratch directories. Every job gets
// an exclusive directory and releases it on every exit path; leftovers
// from a crashed process are swept at the next startup.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/complyscan/complyscan/internal/logger"
)

type Manager struct {
	root string
}

func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Acquire creates the scratch directory for a job. Job IDs are unique,
// so concurrent jobs never share a directory.
func (m *Manager) Acquire(jobID string) (*Handle, error) {
	dir := filepath.Join(m.root, "job-"+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace for job %s: %w", jobID, err)
	}
	return &Handle{dir: dir}, nil
}

// Sweep removes every scratch directory under the root. Called once at
// startup to reclaim space left behind by a crashed run.
func (m *Manager) Sweep() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("read workspace root: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.GetSugaredLogger().Warnf("sweep: could not remove %s: %v", path, err)
			continue
		}
	}
	return nil
}

// Handle is an acquired scratch directory. Release is idempotent and
// safe to defer on every code path.
type Handle struct {
	dir  string
	once sync.Once
}

func (h *Handle) Dir() string { return h.dir }

func (h *Handle) Release() {
	h.once.Do(func() {
		if err := os.RemoveAll(h.dir); err != nil {
			logger.GetSugaredLogger().Warnf("workspace release: %v", err)
		}
	})
}
