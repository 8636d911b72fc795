package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/complyscan/complyscan/models"
)

// MemoryStore is an in-process Store for DB-less runs and tests. Same
// claim and completion semantics as the Postgres store.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ScanJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.ScanJob)}
}

func (s *MemoryStore) InsertJob(_ context.Context, job *models.ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*models.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) ClaimJob(_ context.Context, id string) (*models.ScanJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status == models.StatusCompleted {
		return nil, false, nil
	}
	job.Status = models.StatusRunning
	cp := *job
	return &cp, true, nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, id string, c Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status != models.StatusRunning {
		return fmt.Errorf("complete job %s: not in RUNNING state", id)
	}
	now := time.Now()
	job.Status = models.StatusCompleted
	job.Grade = c.Grade
	job.CommitID = c.CommitID
	job.CertificateURL = c.CertificateURL
	job.InventoryURL = c.InventoryURL
	job.Warnings = c.Warnings
	job.Token = ""
	job.FinishedAt = &now
	return nil
}

func (s *MemoryStore) FailJob(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status == models.StatusCompleted {
		return nil
	}
	now := time.Now()
	job.Status = models.StatusError
	job.LastError = message
	job.Token = ""
	job.FinishedAt = &now
	return nil
}

func (s *MemoryStore) FindCompleted(_ context.Context, repoURL, commitID string) (*models.ScanJob, bool, error) {
	if commitID == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *models.ScanJob
	for _, job := range s.jobs {
		if job.Status != models.StatusCompleted || job.RepositoryURL != repoURL || job.CommitID != commitID {
			continue
		}
		if newest == nil || (job.FinishedAt != nil && newest.FinishedAt != nil && job.FinishedAt.After(*newest.FinishedAt)) {
			newest = job
		}
	}
	if newest == nil {
		return nil, false, nil
	}
	cp := *newest
	return &cp, true, nil
}
