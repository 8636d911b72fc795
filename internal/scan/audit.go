package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/models"
)

// AuditScanner wraps the vulnerability/license scanner binary. The same
// binary serves both concerns under different verbs.
type AuditScanner struct {
	Path    string
	Timeout time.Duration
}

// auditReport is the subset of the scanner's JSON report we consume.
type auditReport struct {
	Results []struct {
		Vulnerabilities []struct {
			VulnerabilityID string `json:"VulnerabilityID"`
			PkgName         string `json:"PkgName"`
			Severity        string `json:"Severity"`
		} `json:"Vulnerabilities"`
		Licenses []struct {
			PkgName string `json:"PkgName"`
			Name    string `json:"Name"`
		} `json:"Licenses"`
	} `json:"Results"`
}

// Vulnerabilities scans the cloned repository for known CVEs. The
// report may be arbitrarily large, so it is streamed to a file in the
// job workspace rather than buffered.
func (s *AuditScanner) Vulnerabilities(ctx context.Context, target, workDir string) ([]models.VulnerabilityFinding, error) {
	start := time.Now()
	defer logger.Trace("Vulnerabilities", start)

	outPath := filepath.Join(workDir, "vuln_report.json")
	args := []string{
		"vuln", target,
		"--output-format", "json",
		"--timeout", s.Timeout.String(),
		"--output", outPath,
	}
	if err := runStreamed(ctx, s.Timeout, s.Path, args...); err != nil {
		return nil, err
	}

	report, err := decodeAuditReport(outPath)
	if err != nil {
		return nil, err
	}

	var findings []models.VulnerabilityFinding
	for _, res := range report.Results {
		for _, v := range res.Vulnerabilities {
			findings = append(findings, models.VulnerabilityFinding{
				VulnerabilityID: v.VulnerabilityID,
				Package:         v.PkgName,
				Severity:        normalizeSeverity(v.Severity),
			})
		}
	}
	return findings, nil
}

// Licenses scans the cloned repository for declared package licenses.
// License reports are small, so the buffered mode is fine here.
func (s *AuditScanner) Licenses(ctx context.Context, target, workDir string) ([]models.LicenseFinding, error) {
	start := time.Now()
	defer logger.Trace("Licenses", start)

	args := []string{
		"license", target,
		"--output-format", "json",
		"--timeout", s.Timeout.String(),
	}
	out, err := runBuffered(ctx, s.Timeout, s.Path, args...)
	if err != nil {
		return nil, err
	}
	return parseLicenseReport(out)
}

func decodeAuditReport(path string) (*auditReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scanner report: %w", err)
	}
	defer f.Close()

	var report auditReport
	if err := json.NewDecoder(f).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode scanner report: %w", err)
	}
	return &report, nil
}

func parseLicenseReport(data []byte) ([]models.LicenseFinding, error) {
	var report auditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode license report: %w", err)
	}
	var findings []models.LicenseFinding
	for _, res := range report.Results {
		for _, l := range res.Licenses {
			findings = append(findings, models.LicenseFinding{
				Package: l.PkgName,
				License: l.Name,
			})
		}
	}
	return findings, nil
}

func normalizeSeverity(s string) models.Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return models.SeverityCritical
	case "HIGH":
		return models.SeverityHigh
	case "MEDIUM":
		return models.SeverityMedium
	case "LOW":
		return models.SeverityLow
	}
	return models.SeverityUnknown
}
