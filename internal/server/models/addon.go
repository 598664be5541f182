package models

import (
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
)

// Addon is an operator-curated add-on.
//
// ManifestURL, OriginalManifest and Manifest hold vault blobs. ManifestHash
// is the hash of the filtered manifest, and Resources/Catalogs are the
// operator's selection that produced it.
type Addon struct {
	ID               string
	AccountID        string
	Name             string
	ManifestURL      string
	OriginalManifest string
	Manifest         string
	ManifestHash     string
	Resources        []string
	Catalogs         []manifest.CatalogSelection
	IsActive         bool
	UpdatedAt        time.Time
}
