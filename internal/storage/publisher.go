// Package storage publishes scan artifacts to durable object storage.
// Keys are derived from the scan identifier, so retried uploads
// overwrite instead of orphaning.
package storage

import "context"

type ArtifactKind string

const (
	KindCertificate ArtifactKind = "certificate"
	KindInventory   ArtifactKind = "inventory"
)

func (k ArtifactKind) fileName() string {
	if k == KindCertificate {
		return "certificate.html"
	}
	return string(k) + ".json"
}

func (k ArtifactKind) contentType() string {
	if k == KindCertificate {
		return "text/html; charset=utf-8"
	}
	return "application/json"
}

// Publisher uploads one artifact and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, scanID string, kind ArtifactKind, data []byte) (string, error)
}

// ArtifactURLs pairs the two artifact locations a completed job records.
type ArtifactURLs struct {
	Certificate string
	Inventory   string
}
