// Package db persists scan jobs and serves the completed-scan cache
// lookup. The Postgres store is the production backend; the memory
// store backs DB-less runs and tests.
package db

import (
	"context"

	"github.com/complyscan/complyscan/models"
)

// Completion carries everything recorded atomically with the
// RUNNING -> COMPLETED transition.
type Completion struct {
	Grade          models.RiskGrade
	CommitID       string
	CertificateURL string
	InventoryURL   string
	Warnings       []string
}

// Store is the durable job record. Claim semantics enforce the state
// machine: a claim succeeds for QUEUED jobs, for RUNNING jobs being
// redelivered after a lease expired, and for ERROR jobs the queue is
// retrying. COMPLETED is final and never claimed again.
type Store interface {
	InsertJob(ctx context.Context, job *models.ScanJob) error
	GetJob(ctx context.Context, id string) (*models.ScanJob, error)
	ClaimJob(ctx context.Context, id string) (*models.ScanJob, bool, error)
	CompleteJob(ctx context.Context, id string, c Completion) error
	FailJob(ctx context.Context, id, message string) error
	FindCompleted(ctx context.Context, repoURL, commitID string) (*models.ScanJob, bool, error)
}
