// Package manifest models add-on manifests and derives the restricted
// manifests operators expose to their users.
//
// A manifest is kept as decoded JSON (Manifest) rather than a fixed
// struct: add-ons publish many fields this service does not interpret,
// and all of them must survive filtering untouched. Sections that have the
// wrong shape (a resources value that is not an array, a catalog that is
// not an object) are read as empty instead of failing.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
)

// Well-known resource names.
const (
	ResourceCatalog      = "catalog"
	ResourceAddonCatalog = "addon_catalog"
	// ResourceSearch is not published by add-ons. It stands for the search
	// capability embedded in catalogs so operators can switch it off as a
	// whole.
	ResourceSearch = "search"
)

const (
	keyResources     = "resources"
	keyCatalogs      = "catalogs"
	keyAddonCatalogs = "addonCatalogs"
)

// Manifest is a decoded add-on manifest.
type Manifest map[string]any

// Parse decodes a manifest document. Anything other than a JSON object is
// rejected with common.ErrMalformedManifest.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: not an object", common.ErrMalformedManifest)
	}
	return m, nil
}

func (m Manifest) str(key string) string {
	s, _ := m[key].(string)
	return s
}

// ID returns the add-on id published in the manifest.
func (m Manifest) ID() string { return m.str("id") }

// Name returns the human readable add-on name.
func (m Manifest) Name() string { return m.str("name") }

// Version returns the published version string.
func (m Manifest) Version() string { return m.str("version") }

// Clone returns a deep copy of m.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return nil
	}
	return deepCopy(map[string]any(m)).(map[string]any)
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case Manifest:
		return Manifest(deepCopy(map[string]any(val)).(map[string]any))
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return val
	}
}

func (m Manifest) list(key string) []any {
	l, _ := m[key].([]any)
	return l
}

// Resources returns the raw resource entries. Each entry is either a
// resource name or an object with a "name" field.
func (m Manifest) Resources() []any { return m.list(keyResources) }

// Catalogs returns the catalog entries that are JSON objects.
func (m Manifest) Catalogs() []map[string]any { return objects(m.list(keyCatalogs)) }

// AddonCatalogs returns the add-on catalog entries that are JSON objects.
func (m Manifest) AddonCatalogs() []map[string]any { return objects(m.list(keyAddonCatalogs)) }

func objects(l []any) []map[string]any {
	out := make([]map[string]any, 0, len(l))
	for _, e := range l {
		if o, ok := e.(map[string]any); ok {
			out = append(out, o)
		}
	}
	return out
}

// ResourceName returns the name of a resource entry, or "" for entries of
// an unknown shape.
func ResourceName(entry any) string {
	switch e := entry.(type) {
	case string:
		return e
	case map[string]any:
		name, _ := e["name"].(string)
		return name
	default:
		return ""
	}
}

// AvailableResources lists, in manifest order and without duplicates, the
// resource names an operator can select. Catalog sections imply their
// resource even when the manifest does not list it, and ResourceSearch is
// added when any catalog offers search.
func (m Manifest) AvailableResources() []string {
	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, r := range m.Resources() {
		add(ResourceName(r))
	}
	if len(m.Catalogs()) > 0 {
		add(ResourceCatalog)
	}
	if len(m.AddonCatalogs()) > 0 {
		add(ResourceAddonCatalog)
	}
	if m.HasSearch() {
		add(ResourceSearch)
	}
	return out
}

// HasSearch reports whether any catalog offers search.
func (m Manifest) HasSearch() bool {
	for _, c := range m.Catalogs() {
		if has, _ := catalogSearch(c); has {
			return true
		}
	}
	return false
}
