package models

import "time"

// ScanStatus is the lifecycle state of a scan job. Transitions are
// monotonic: QUEUED -> RUNNING -> COMPLETED | ERROR.
type ScanStatus string

const (
	StatusQueued    ScanStatus = "QUEUED"
	StatusRunning   ScanStatus = "RUNNING"
	StatusCompleted ScanStatus = "COMPLETED"
	StatusError     ScanStatus = "ERROR"
)

// RiskGrade is the aggregate audit outcome. F dominates C dominates A.
// A worst-case grade is still a successful audit, never an ERROR.
type RiskGrade string

const (
	GradeA RiskGrade = "A" // clean
	GradeC RiskGrade = "C" // critical vulnerabilities present
	GradeF RiskGrade = "F" // viral license or leaked secret present
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// ScanJob is the durable record of one audit request. The record is
// created by the intake handler and mutated only by the worker that
// claimed it. The token is carried for cloning and cleared when the job
// reaches a terminal state; it is never logged and never serialized.
type ScanJob struct {
	ID             string     `json:"scan_id"`
	RepositoryURL  string     `json:"repository_url"`
	Token          string     `json:"-"`
	UserID         string     `json:"user_id,omitempty"`
	Status         ScanStatus `json:"status"`
	Grade          RiskGrade  `json:"grade,omitempty"`
	CommitID       string     `json:"commit_id,omitempty"`
	CertificateURL string     `json:"certificate_url,omitempty"`
	InventoryURL   string     `json:"inventory_url,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

type LicenseFinding struct {
	Package string `json:"package"`
	License string `json:"license"`
}

type VulnerabilityFinding struct {
	VulnerabilityID string   `json:"vulnerability_id"`
	Package         string   `json:"package"`
	Severity        Severity `json:"severity"`
}

// SecretFinding carries a masked snippet only; the raw secret never
// leaves the scanner adapter.
type SecretFinding struct {
	RuleID    string `json:"rule_id"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	Masked    string `json:"masked"`
}

// FindingSet groups everything the scanners reported for one job.
type FindingSet struct {
	Licenses        []LicenseFinding       `json:"licenses"`
	Vulnerabilities []VulnerabilityFinding `json:"vulnerabilities"`
	Secrets         []SecretFinding        `json:"secrets"`
}

// Empty reports whether no scanner produced any finding.
func (f FindingSet) Empty() bool {
	return len(f.Licenses) == 0 && len(f.Vulnerabilities) == 0 && len(f.Secrets) == 0
}
