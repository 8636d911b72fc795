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

// SecretScanner wraps the secret-detection binary. It operates against
// the local clone and writes its report to a file in the workspace.
// --exit-code 0 keeps findings from looking like process failures.
type SecretScanner struct {
	Path    string
	Timeout time.Duration
}

type secretReportEntry struct {
	Description string `json:"Description"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	RuleID      string `json:"RuleID"`
	Secret      string `json:"Secret"`
}

// Detect runs the secret scanner over srcDir. The raw secret value is
// masked before it leaves this package.
func (s *SecretScanner) Detect(ctx context.Context, srcDir, workDir string) ([]models.SecretFinding, error) {
	start := time.Now()
	defer logger.Trace("Detect", start)

	reportPath := filepath.Join(workDir, "secret_report.json")
	args := []string{
		"detect",
		"--source", srcDir,
		"--report-path", reportPath,
		"--report-format", "json",
		"--exit-code", "0",
	}
	if err := runStreamed(ctx, s.Timeout, s.Path, args...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("read secret report: %w", err)
	}
	return parseSecretReport(data)
}

func parseSecretReport(data []byte) ([]models.SecretFinding, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []secretReportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode secret report: %w", err)
	}
	findings := make([]models.SecretFinding, 0, len(entries))
	for _, e := range entries {
		rule := e.RuleID
		if rule == "" {
			rule = e.Description
		}
		findings = append(findings, models.SecretFinding{
			RuleID:    rule,
			File:      e.File,
			StartLine: e.StartLine,
			Masked:    maskSecret(e.Secret),
		})
	}
	return findings, nil
}

// maskSecret keeps a short recognizable prefix and hides the rest.
func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
