// Package grade merges heterogeneous scanner findings into a single
// risk grade. The policy is strict and auditable: one qualifying finding
// of the worst category forces the whole-repository grade.
package grade

import (
	"strings"

	"github.com/complyscan/complyscan/models"
)

// Classifier grades finding sets against a configured set of viral
// license families.
type Classifier struct {
	viral []string
}

// NewClassifier builds a Classifier. Entries are matched against license
// identifiers case-insensitively, either exactly ("GPL-3.0") or as a
// family prefix ("AGPL" matches "AGPL-3.0-only").
func NewClassifier(viralLicenses []string) *Classifier {
	viral := make([]string, 0, len(viralLicenses))
	for _, v := range viralLicenses {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			viral = append(viral, v)
		}
	}
	return &Classifier{viral: viral}
}

// Classify returns the grade for a finding set. Pure, deterministic and
// order-independent: only the presence of qualifying findings matters.
//
//	F: any secret, or any license in the viral set
//	C: any CRITICAL vulnerability
//	A: otherwise
func (c *Classifier) Classify(fs models.FindingSet) models.RiskGrade {
	if len(fs.Secrets) > 0 {
		return models.GradeF
	}
	for _, l := range fs.Licenses {
		if c.IsViral(l.License) {
			return models.GradeF
		}
	}
	for _, v := range fs.Vulnerabilities {
		if v.Severity == models.SeverityCritical {
			return models.GradeC
		}
	}
	return models.GradeA
}

// IsViral reports whether a license identifier belongs to a configured
// viral family.
func (c *Classifier) IsViral(license string) bool {
	id := strings.ToUpper(strings.TrimSpace(license))
	if id == "" {
		return false
	}
	for _, v := range c.viral {
		if id == v || strings.HasPrefix(id, v+"-") {
			return true
		}
	}
	return false
}
