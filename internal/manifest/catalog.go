package manifest

import "fmt"

// CatalogKey identifies a catalog inside a manifest.
type CatalogKey struct {
	Type string
	ID   string
}

// CatalogSelection is an operator's choice for one catalog.
type CatalogSelection struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	// Search keeps the catalog's search capability when true.
	Search bool `json:"searchEnabled"`
}

// Key returns the catalog identity of the selection.
func (s CatalogSelection) Key() CatalogKey { return CatalogKey{Type: s.Type, ID: s.ID} }

// CatalogInfo describes a catalog offered by a manifest.
type CatalogInfo struct {
	Key        CatalogKey
	Name       string
	Search     bool
	SearchOnly bool
}

// Label is the human readable form used in diffs: "name (type)".
func (c CatalogInfo) Label() string {
	name := c.Name
	if name == "" {
		name = c.Key.ID
	}
	return fmt.Sprintf("%s (%s)", name, c.Key.Type)
}

func catalogKey(c map[string]any) CatalogKey {
	typ, _ := c["type"].(string)
	id, _ := c["id"].(string)
	return CatalogKey{Type: typ, ID: id}
}

// CatalogInfos lists the catalogs offered by m in manifest order.
func (m Manifest) CatalogInfos() []CatalogInfo {
	cats := m.Catalogs()
	out := make([]CatalogInfo, 0, len(cats))
	for _, c := range cats {
		name, _ := c["name"].(string)
		search, only := catalogSearch(c)
		out = append(out, CatalogInfo{Key: catalogKey(c), Name: name, Search: search, SearchOnly: only})
	}
	return out
}

// CatalogSelections selects every catalog of m with search enabled
// wherever the catalog offers it.
func (m Manifest) CatalogSelections() []CatalogSelection {
	infos := m.CatalogInfos()
	out := make([]CatalogSelection, 0, len(infos))
	for _, c := range infos {
		out = append(out, CatalogSelection{Type: c.Key.Type, ID: c.Key.ID, Search: c.Search})
	}
	return out
}

// catalogSearch reports whether the catalog exposes search and whether
// search is its only extra capability.
func catalogSearch(c map[string]any) (has bool, only bool) {
	names := map[string]bool{}

	if extra, ok := c["extra"].([]any); ok {
		for _, e := range extra {
			if o, ok := e.(map[string]any); ok {
				if n, ok := o["name"].(string); ok {
					names[n] = true
				}
			}
		}
	}
	if supported, ok := c["extraSupported"].([]any); ok {
		for _, e := range supported {
			if n, ok := e.(string); ok {
				names[n] = true
			}
		}
	}

	has = names[ResourceSearch]
	return has, has && len(names) == 1
}

// stripSearch removes the search capability from a catalog in place.
func stripSearch(c map[string]any) {
	if extra, ok := c["extra"].([]any); ok {
		kept := make([]any, 0, len(extra))
		for _, e := range extra {
			if o, ok := e.(map[string]any); ok && o["name"] == ResourceSearch {
				continue
			}
			kept = append(kept, e)
		}
		c["extra"] = kept
	}
	for _, key := range []string{"extraSupported", "extraRequired"} {
		if l, ok := c[key].([]any); ok {
			kept := make([]any, 0, len(l))
			for _, e := range l {
				if e == ResourceSearch {
					continue
				}
				kept = append(kept, e)
			}
			c[key] = kept
		}
	}
}
