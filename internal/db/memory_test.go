package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyscan/complyscan/models"
)

func newQueuedJob(id string) *models.ScanJob {
	return &models.ScanJob{
		ID:            id,
		RepositoryURL: "https://github.com/acme/widgets.git",
		Token:         "secret-token",
		Status:        models.StatusQueued,
		CreatedAt:     time.Now(),
	}
}

func TestClaimJobTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))

	job, ok, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusRunning, job.Status)

	// A redelivered RUNNING job is claimable again (expired lease).
	_, ok, err = s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.CompleteJob(ctx, "j1", Completion{Grade: models.GradeA, CommitID: "abc"}))

	// COMPLETED never regresses.
	_, ok, err = s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimJobAllowsRetryAfterError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	_, _, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	require.NoError(t, s.FailJob(ctx, "j1", "storage unavailable"))

	// The queue may redeliver a failed job; it is claimable again.
	job, ok, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusRunning, job.Status)
}

func TestCompleteJobRecordsFieldsAndClearsToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	_, _, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)

	require.NoError(t, s.CompleteJob(ctx, "j1", Completion{
		Grade:          models.GradeC,
		CommitID:       "deadbeef",
		CertificateURL: "file:///certs/j1.html",
		InventoryURL:   "file:///inv/j1.json",
		Warnings:       []string{"license scanner timed out"},
	}))

	job, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, models.GradeC, job.Grade)
	assert.Equal(t, "deadbeef", job.CommitID)
	assert.Equal(t, "file:///certs/j1.html", job.CertificateURL)
	assert.Equal(t, []string{"license scanner timed out"}, job.Warnings)
	assert.Empty(t, job.Token)
	assert.NotNil(t, job.FinishedAt)
}

func TestCompleteJobRequiresRunning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	assert.Error(t, s.CompleteJob(ctx, "j1", Completion{Grade: models.GradeA}))
}

func TestFailJobNeverRegressesCompleted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	_, _, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	require.NoError(t, s.CompleteJob(ctx, "j1", Completion{Grade: models.GradeA}))

	require.NoError(t, s.FailJob(ctx, "j1", "late failure"))
	job, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
}

func TestFailJobRecordsError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	_, _, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)

	require.NoError(t, s.FailJob(ctx, "j1", "artifact upload failed"))
	job, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, job.Status)
	assert.Equal(t, "artifact upload failed", job.LastError)
	assert.Empty(t, job.Token)
}

func TestFindCompletedCacheLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertJob(ctx, newQueuedJob("j1")))
	_, _, err := s.ClaimJob(ctx, "j1")
	require.NoError(t, err)
	require.NoError(t, s.CompleteJob(ctx, "j1", Completion{Grade: models.GradeF, CommitID: "c0ffee"}))

	hit, ok, err := s.FindCompleted(ctx, "https://github.com/acme/widgets.git", "c0ffee")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.GradeF, hit.Grade)

	// Different commit or empty commit never hits.
	_, ok, err = s.FindCompleted(ctx, "https://github.com/acme/widgets.git", "other")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.FindCompleted(ctx, "https://github.com/acme/widgets.git", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
