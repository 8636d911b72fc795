package cert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyscan/complyscan/models"
)

func TestCertificateListsAllFindings(t *testing.T) {
	data := CertificateData{
		ScanID:        "scan-1",
		RepositoryURL: "https://github.com/acme/widgets.git",
		CommitID:      "deadbeef",
		Grade:         models.GradeF,
		GeneratedAt:   time.Now(),
		Findings: models.FindingSet{
			Secrets: []models.SecretFinding{
				{RuleID: "aws-access-key-id", File: "config.env", StartLine: 12, Masked: "AKIA****"},
			},
			Vulnerabilities: []models.VulnerabilityFinding{
				{VulnerabilityID: "CVE-2024-1234", Package: "openssl", Severity: models.SeverityCritical},
			},
			Licenses: []models.LicenseFinding{{Package: "leftpad", License: "MIT"}},
		},
		Warnings: []string{"license scanner timed out"},
	}

	out, err := Certificate(data)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "scan-1")
	assert.Contains(t, html, "Risk Grade: F")
	assert.Contains(t, html, "aws-access-key-id")
	assert.Contains(t, html, "AKIA****")
	assert.Contains(t, html, "CVE-2024-1234")
	assert.Contains(t, html, "leftpad")
	assert.Contains(t, html, "license scanner timed out")
}

func TestCertificateEmptyFindings(t *testing.T) {
	out, err := Certificate(CertificateData{
		ScanID: "scan-2", RepositoryURL: "https://github.com/acme/empty.git",
		Grade: models.GradeA, GeneratedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Risk Grade: A")
	assert.Contains(t, string(out), "No findings were reported")
	assert.Contains(t, string(out), "none")
}

func TestCertificateWithFindingsHasNoEmptyBanner(t *testing.T) {
	out, err := Certificate(CertificateData{
		ScanID: "scan-3", RepositoryURL: "https://github.com/acme/widgets.git",
		Grade: models.GradeC, GeneratedAt: time.Now(),
		Findings: models.FindingSet{
			Vulnerabilities: []models.VulnerabilityFinding{
				{VulnerabilityID: "CVE-2024-1234", Package: "openssl", Severity: models.SeverityCritical},
			},
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "No findings were reported")
}

func TestInventoryGroupsByPackage(t *testing.T) {
	fs := models.FindingSet{
		Licenses: []models.LicenseFinding{
			{Package: "openssl", License: "Apache-2.0"},
			{Package: "leftpad", License: "MIT"},
		},
		Vulnerabilities: []models.VulnerabilityFinding{
			{VulnerabilityID: "CVE-2024-1234", Package: "openssl", Severity: models.SeverityCritical},
		},
	}
	out, err := Inventory("scan-1", "https://github.com/acme/widgets.git", "deadbeef", fs)
	require.NoError(t, err)

	var inv struct {
		ScanID   string `json:"scan_id"`
		Packages []struct {
			Package         string `json:"package"`
			License         string `json:"license"`
			Vulnerabilities []struct {
				VulnerabilityID string `json:"vulnerability_id"`
			} `json:"vulnerabilities"`
		} `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(out, &inv))
	assert.Equal(t, "scan-1", inv.ScanID)
	require.Len(t, inv.Packages, 2)
	assert.Equal(t, "openssl", inv.Packages[0].Package)
	assert.Equal(t, "Apache-2.0", inv.Packages[0].License)
	require.Len(t, inv.Packages[0].Vulnerabilities, 1)
	assert.Equal(t, "CVE-2024-1234", inv.Packages[0].Vulnerabilities[0].VulnerabilityID)
}
