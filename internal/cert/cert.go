// Package cert renders the audit certificate document and the software
// inventory. Both are pure functions from scan output to bytes.
package cert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/complyscan/complyscan/models"
)

type CertificateData struct {
	ScanID        string
	RepositoryURL string
	CommitID      string
	Grade         models.RiskGrade
	GeneratedAt   time.Time
	Findings      models.FindingSet
	Warnings      []string
}

var certTmpl = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Compliance Certificate {{.ScanID}}</title></head>
<body>
<h1>Repository Compliance Certificate</h1>
<p>Scan <code>{{.ScanID}}</code> of <code>{{.RepositoryURL}}</code>{{if .CommitID}} at commit <code>{{.CommitID}}</code>{{end}}.</p>
<h2>Risk Grade: {{.Grade}}</h2>
<p>Generated at {{.GeneratedAt.UTC.Format "2006-01-02 15:04:05 UTC"}}.</p>
{{if .Findings.Empty}}<p>No findings were reported.</p>{{end}}

<h3>Leaked Secrets ({{len .Findings.Secrets}})</h3>
<ul>{{range .Findings.Secrets}}
<li>{{.RuleID}} in <code>{{.File}}</code> line {{.StartLine}} ({{.Masked}})</li>
{{else}}<li>none</li>{{end}}</ul>

<h3>Vulnerabilities ({{len .Findings.Vulnerabilities}})</h3>
<ul>{{range .Findings.Vulnerabilities}}
<li>{{.VulnerabilityID}} in {{.Package}} [{{.Severity}}]</li>
{{else}}<li>none</li>{{end}}</ul>

<h3>Package Licenses ({{len .Findings.Licenses}})</h3>
<ul>{{range .Findings.Licenses}}
<li>{{.Package}}: {{.License}}</li>
{{else}}<li>none</li>{{end}}</ul>

{{if .Warnings}}<h3>Warnings</h3>
<ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>{{end}}
</body>
</html>
`))

// Certificate renders the certificate document.
func Certificate(data CertificateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := certTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

type inventoryEntry struct {
	Package         string                        `json:"package"`
	License         string                        `json:"license,omitempty"`
	Vulnerabilities []models.VulnerabilityFinding `json:"vulnerabilities,omitempty"`
}

type inventory struct {
	ScanID        string           `json:"scan_id"`
	RepositoryURL string           `json:"repository_url"`
	CommitID      string           `json:"commit_id,omitempty"`
	Packages      []inventoryEntry `json:"packages"`
}

// Inventory renders the software inventory: one entry per package seen
// by the license or vulnerability scanner.
func Inventory(scanID, repoURL, commitID string, fs models.FindingSet) ([]byte, error) {
	byPackage := make(map[string]*inventoryEntry)
	order := make([]string, 0)

	entry := func(pkg string) *inventoryEntry {
		if e, ok := byPackage[pkg]; ok {
			return e
		}
		e := &inventoryEntry{Package: pkg}
		byPackage[pkg] = e
		order = append(order, pkg)
		return e
	}

	for _, l := range fs.Licenses {
		entry(l.Package).License = l.License
	}
	for _, v := range fs.Vulnerabilities {
		e := entry(v.Package)
		e.Vulnerabilities = append(e.Vulnerabilities, v)
	}

	inv := inventory{
		ScanID:        scanID,
		RepositoryURL: repoURL,
		CommitID:      commitID,
		Packages:      make([]inventoryEntry, 0, len(order)),
	}
	for _, pkg := range order {
		inv.Packages = append(inv.Packages, *byPackage[pkg])
	}
	return json.MarshalIndent(inv, "", "  ")
}
