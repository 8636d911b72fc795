// Package services drives a claimed job through the audit pipeline:
// workspace, resolution, cache lookup, clone, scanner fan-out, grading,
// artifact publishing, terminal status. Soft failures (one scanner
// breaking) become warnings; hard failures (workspace, publish,
// persistence) escalate to ERROR and are retried by the queue.
package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/complyscan/complyscan/internal/cert"
	"github.com/complyscan/complyscan/internal/db"
	"github.com/complyscan/complyscan/internal/grade"
	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/internal/storage"
	"github.com/complyscan/complyscan/internal/workspace"
	"github.com/complyscan/complyscan/models"
)

// RepoResolver resolves repository references and clones them.
type RepoResolver interface {
	AuthURL(repoURL, token string) string
	HeadCommit(ctx context.Context, authURL string) (string, error)
	Clone(ctx context.Context, authURL, dir string) error
}

// VulnLicenseScanner is the vulnerability/license scanner adapter.
type VulnLicenseScanner interface {
	Vulnerabilities(ctx context.Context, target, workDir string) ([]models.VulnerabilityFinding, error)
	Licenses(ctx context.Context, target, workDir string) ([]models.LicenseFinding, error)
}

// SecretDetector is the secret scanner adapter.
type SecretDetector interface {
	Detect(ctx context.Context, srcDir, workDir string) ([]models.SecretFinding, error)
}

type Pipeline struct {
	store      db.Store
	resolver   RepoResolver
	workspaces *workspace.Manager
	audit      VulnLicenseScanner
	secrets    SecretDetector
	classifier *grade.Classifier
	publisher  storage.Publisher
	cloneSem   chan struct{}
}

func NewPipeline(
	store db.Store,
	resolver RepoResolver,
	workspaces *workspace.Manager,
	audit VulnLicenseScanner,
	secrets SecretDetector,
	classifier *grade.Classifier,
	publisher storage.Publisher,
	cloneMaxConc int,
) *Pipeline {
	if cloneMaxConc <= 0 {
		cloneMaxConc = 1
	}
	return &Pipeline{
		store:      store,
		resolver:   resolver,
		workspaces: workspaces,
		audit:      audit,
		secrets:    secrets,
		classifier: classifier,
		publisher:  publisher,
		cloneSem:   make(chan struct{}, cloneMaxConc),
	}
}

// Process runs one job to a terminal state. A nil return means the
// queue message can be acked; a non-nil return means the job hit a hard
// failure and the queue should redeliver it.
func (p *Pipeline) Process(ctx context.Context, jobID string) error {
	start := time.Now()
	defer logger.Trace("Process", start)
	log := logger.GetSugaredLogger()

	job, claimed, err := p.store.ClaimJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		log.Debugf("job %s not claimable (already completed or unknown), dropping", jobID)
		return nil
	}

	ws, err := p.workspaces.Acquire(job.ID)
	if err != nil {
		return p.hardFail(ctx, job, fmt.Errorf("workspace allocation: %w", err))
	}
	defer ws.Release()

	// The authenticated URL exists only in memory for subprocess and
	// fetch use; the persisted repository reference stays untouched.
	authURL := p.resolver.AuthURL(job.RepositoryURL, job.Token)

	var warnings []string

	commitID, err := p.resolver.HeadCommit(ctx, authURL)
	if err != nil {
		// Non-fatal: the scan proceeds without cache lookup or write.
		msg := redact(fmt.Sprintf("commit resolution failed: %v", err), job.Token)
		warnings = append(warnings, msg)
		log.Warnf("job %s: %s", job.ID, msg)
		commitID = ""
	}

	if commitID != "" {
		cached, hit, err := p.store.FindCompleted(ctx, job.RepositoryURL, commitID)
		if err != nil {
			// Cache-lookup failure is a cache miss.
			log.Warnf("job %s: cache lookup failed: %v", job.ID, err)
		} else if hit {
			log.Infof("job %s: cache hit on %s@%s, skipping scanners", job.ID, job.RepositoryURL, commitID)
			if err := p.store.CompleteJob(ctx, job.ID, db.Completion{
				Grade:          cached.Grade,
				CommitID:       commitID,
				CertificateURL: cached.CertificateURL,
				InventoryURL:   cached.InventoryURL,
				Warnings:       warnings,
			}); err != nil {
				return p.hardFail(ctx, job, fmt.Errorf("record cached result: %w", err))
			}
			return nil
		}
	}

	cloneDir := filepath.Join(ws.Dir(), "repo")
	p.cloneSem <- struct{}{}
	err = p.resolver.Clone(ctx, authURL, cloneDir)
	<-p.cloneSem
	if err != nil {
		// No clone means no scanner can run at all.
		return p.hardFail(ctx, job, fmt.Errorf("clone: %w", err))
	}

	findings, scanWarnings, anySucceeded := p.runScanners(ctx, job.ID, cloneDir, ws.Dir())
	warnings = append(warnings, scanWarnings...)
	if !anySucceeded {
		return p.hardFail(ctx, job, fmt.Errorf("all scanners failed: %v", scanWarnings))
	}

	riskGrade := p.classifier.Classify(findings)
	log.Infof("job %s graded %s (%d licenses, %d vulns, %d secrets)",
		job.ID, riskGrade, len(findings.Licenses), len(findings.Vulnerabilities), len(findings.Secrets))

	urls, err := p.publishArtifacts(ctx, job, commitID, riskGrade, findings, warnings)
	if err != nil {
		// A COMPLETED job without its certificate is a broken contract.
		return p.hardFail(ctx, job, err)
	}

	if err := p.store.CompleteJob(ctx, job.ID, db.Completion{
		Grade:          riskGrade,
		CommitID:       commitID,
		CertificateURL: urls.Certificate,
		InventoryURL:   urls.Inventory,
		Warnings:       warnings,
	}); err != nil {
		return p.hardFail(ctx, job, fmt.Errorf("record completion: %w", err))
	}
	return nil
}

// runScanners executes the three scanner stages concurrently. A failed
// stage contributes a warning, never aborts the others.
func (p *Pipeline) runScanners(ctx context.Context, jobID, cloneDir, workDir string) (models.FindingSet, []string, bool) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		findings  models.FindingSet
		warnings  []string
		succeeded int
	)

	stage := func(name string, run func() error) {
		defer wg.Done()
		if err := run(); err != nil {
			mu.Lock()
			warnings = append(warnings, fmt.Sprintf("%s scan failed: %v", name, err))
			mu.Unlock()
			logger.GetSugaredLogger().Warnf("job %s: %s scan failed: %v", jobID, name, err)
			return
		}
		mu.Lock()
		succeeded++
		mu.Unlock()
	}

	wg.Add(3)
	go stage("vulnerability", func() error {
		found, err := p.audit.Vulnerabilities(ctx, cloneDir, workDir)
		if err != nil {
			return err
		}
		mu.Lock()
		findings.Vulnerabilities = found
		mu.Unlock()
		return nil
	})
	go stage("license", func() error {
		found, err := p.audit.Licenses(ctx, cloneDir, workDir)
		if err != nil {
			return err
		}
		mu.Lock()
		findings.Licenses = found
		mu.Unlock()
		return nil
	})
	go stage("secret", func() error {
		found, err := p.secrets.Detect(ctx, cloneDir, workDir)
		if err != nil {
			return err
		}
		mu.Lock()
		findings.Secrets = found
		mu.Unlock()
		return nil
	})
	wg.Wait()

	return findings, warnings, succeeded > 0
}

func (p *Pipeline) publishArtifacts(
	ctx context.Context,
	job *models.ScanJob,
	commitID string,
	riskGrade models.RiskGrade,
	findings models.FindingSet,
	warnings []string,
) (storage.ArtifactURLs, error) {
	var urls storage.ArtifactURLs

	certBytes, err := cert.Certificate(cert.CertificateData{
		ScanID:        job.ID,
		RepositoryURL: job.RepositoryURL,
		CommitID:      commitID,
		Grade:         riskGrade,
		GeneratedAt:   time.Now(),
		Findings:      findings,
		Warnings:      warnings,
	})
	if err != nil {
		return urls, fmt.Errorf("render certificate: %w", err)
	}
	invBytes, err := cert.Inventory(job.ID, job.RepositoryURL, commitID, findings)
	if err != nil {
		return urls, fmt.Errorf("render inventory: %w", err)
	}

	if urls.Certificate, err = p.publisher.Publish(ctx, job.ID, storage.KindCertificate, certBytes); err != nil {
		return urls, fmt.Errorf("publish certificate: %w", err)
	}
	if urls.Inventory, err = p.publisher.Publish(ctx, job.ID, storage.KindInventory, invBytes); err != nil {
		return urls, fmt.Errorf("publish inventory: %w", err)
	}
	return urls, nil
}

// hardFail marks the job ERROR and propagates the error so the queue
// can apply its retry policy. The persisted message is scrubbed of the
// job's credential first.
func (p *Pipeline) hardFail(ctx context.Context, job *models.ScanJob, cause error) error {
	msg := redact(cause.Error(), job.Token)
	if err := p.store.FailJob(ctx, job.ID, msg); err != nil {
		logger.GetSugaredLogger().Errorf("job %s: could not record failure: %v", job.ID, err)
	}
	return errors.New(msg)
}

// redact masks the credential anywhere it leaked into a message bound
// for the job record or the log.
func redact(msg, token string) string {
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "REDACTED")
}
