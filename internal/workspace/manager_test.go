package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesExclusiveDirectory(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "ws"))
	require.NoError(t, err)

	h1, err := m.Acquire("job-a")
	require.NoError(t, err)
	h2, err := m.Acquire("job-b")
	require.NoError(t, err)

	assert.NotEqual(t, h1.Dir(), h2.Dir())
	assert.DirExists(t, h1.Dir())
	assert.DirExists(t, h2.Dir())
}

func TestReleaseRemovesDirectoryAndIsIdempotent(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "ws"))
	require.NoError(t, err)

	h, err := m.Acquire("job-a")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir(), "clone.txt"), []byte("x"), 0o644))

	h.Release()
	assert.NoDirExists(t, h.Dir())

	// Second release must be a no-op.
	h.Release()
	assert.NoDirExists(t, h.Dir())
}

func TestSweepRemovesLeftovers(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	m, err := NewManager(root)
	require.NoError(t, err)

	// Simulate a crash: directories exist but no handle was released.
	_, err = m.Acquire("job-crashed-1")
	require.NoError(t, err)
	_, err = m.Acquire("job-crashed-2")
	require.NoError(t, err)

	require.NoError(t, m.Sweep())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
