// Package reload refreshes add-on manifests and folds the changes into the
// operator's stored selection.
package reload

import (
	"slices"

	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
)

// Selection is an operator's resource and catalog choice for one add-on.
type Selection struct {
	Resources []string                    `json:"resources"`
	Catalogs  []manifest.CatalogSelection `json:"catalogs"`
}

// SelectAll selects every resource and catalog m offers, with search on
// wherever available.
func SelectAll(m manifest.Manifest) Selection {
	return Selection{Resources: m.AvailableResources(), Catalogs: m.CatalogSelections()}
}

// Diff lists capabilities that appeared or vanished between two manifests.
// Catalogs are given by their human readable label.
type Diff struct {
	AddedResources   []string `json:"addedResources"`
	RemovedResources []string `json:"removedResources"`
	AddedCatalogs    []string `json:"addedCatalogs"`
	RemovedCatalogs  []string `json:"removedCatalogs"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.AddedResources)+len(d.RemovedResources)+len(d.AddedCatalogs)+len(d.RemovedCatalogs) == 0
}

// Result is a reconciled add-on state.
type Result struct {
	Original  manifest.Manifest
	Filtered  manifest.Manifest
	Hash      string
	Selection Selection
	Diff      Diff
}

// Reconcile merges a fresh manifest with the previous one and the
// selection made against it.
//
// Selections that the fresh manifest no longer offers are dropped. With
// autoSelect, capabilities that are new in fresh and were not selected
// before are added. The filtered manifest and its hash always follow from
// the returned selection.
func Reconcile(previous manifest.Manifest, selected Selection, fresh manifest.Manifest, autoSelect bool) (Result, error) {
	reset := SelectAll(fresh)
	prevResources := previous.AvailableResources()

	resources := intersect(selected.Resources, reset.Resources)
	if autoSelect {
		for _, r := range reset.Resources {
			if !slices.Contains(prevResources, r) && !slices.Contains(selected.Resources, r) {
				resources = append(resources, r)
			}
		}
	}

	freshCats := indexCatalogs(fresh.CatalogInfos())
	prevCats := indexCatalogs(previous.CatalogInfos())
	selectedCats := map[manifest.CatalogKey]bool{}

	catalogs := []manifest.CatalogSelection{}
	for _, s := range selected.Catalogs {
		info, ok := freshCats[s.Key()]
		if !ok || selectedCats[s.Key()] {
			continue
		}
		selectedCats[s.Key()] = true
		catalogs = append(catalogs, manifest.CatalogSelection{Type: s.Type, ID: s.ID, Search: s.Search && info.Search})
	}
	if autoSelect {
		for _, info := range fresh.CatalogInfos() {
			if _, existed := prevCats[info.Key]; existed || selectedCats[info.Key] {
				continue
			}
			selectedCats[info.Key] = true
			catalogs = append(catalogs, manifest.CatalogSelection{Type: info.Key.Type, ID: info.Key.ID, Search: info.Search})
		}
	}

	sel := Selection{Resources: resources, Catalogs: catalogs}
	filtered := manifest.Filter(fresh, sel.Resources, sel.Catalogs)
	hash, err := manifest.Hash(filtered)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Original:  fresh.Clone(),
		Filtered:  filtered,
		Hash:      hash,
		Selection: sel,
		Diff:      diff(previous, fresh),
	}, nil
}

func diff(previous, fresh manifest.Manifest) Diff {
	prevRes, freshRes := previous.AvailableResources(), fresh.AvailableResources()
	prevCats, freshCats := previous.CatalogInfos(), fresh.CatalogInfos()
	prevIdx, freshIdx := indexCatalogs(prevCats), indexCatalogs(freshCats)

	d := Diff{
		AddedResources:   subtract(freshRes, prevRes),
		RemovedResources: subtract(prevRes, freshRes),
		AddedCatalogs:    []string{},
		RemovedCatalogs:  []string{},
	}
	for _, c := range freshCats {
		if _, ok := prevIdx[c.Key]; !ok {
			d.AddedCatalogs = append(d.AddedCatalogs, c.Label())
		}
	}
	for _, c := range prevCats {
		if _, ok := freshIdx[c.Key]; !ok {
			d.RemovedCatalogs = append(d.RemovedCatalogs, c.Label())
		}
	}
	return d
}

func indexCatalogs(infos []manifest.CatalogInfo) map[manifest.CatalogKey]manifest.CatalogInfo {
	out := make(map[manifest.CatalogKey]manifest.CatalogInfo, len(infos))
	for _, c := range infos {
		if _, dup := out[c.Key]; !dup {
			out[c.Key] = c
		}
	}
	return out
}

// intersect keeps the elements of a that are in b, in a's order, once.
func intersect(a, b []string) []string {
	out := []string{}
	for _, s := range a {
		if slices.Contains(b, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func subtract(a, b []string) []string {
	out := []string{}
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
