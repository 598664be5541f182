package manifest

// FilterByResources returns a copy of m restricted to the selected
// resources. Resource entries whose name is not selected are dropped, the
// catalog and add-on catalog lists are emptied unless their resource is
// selected, and catalog search is stripped unless ResourceSearch is
// selected. m is not modified.
func FilterByResources(m Manifest, selected []string) Manifest {
	out := m.Clone()
	if out == nil {
		return nil
	}

	set := make(map[string]bool, len(selected))
	for _, s := range selected {
		set[s] = true
	}

	if resources, ok := out[keyResources].([]any); ok {
		kept := make([]any, 0, len(resources))
		for _, r := range resources {
			if set[ResourceName(r)] {
				kept = append(kept, r)
			}
		}
		out[keyResources] = kept
	} else if _, present := out[keyResources]; present {
		out[keyResources] = []any{}
	}

	if !set[ResourceCatalog] {
		out[keyCatalogs] = []any{}
	}
	if !set[ResourceAddonCatalog] {
		out[keyAddonCatalogs] = []any{}
	}

	if !set[ResourceSearch] {
		for _, c := range out.Catalogs() {
			stripSearch(c)
		}
	}

	return out
}

// FilterByCatalogs returns a copy of m keeping only catalogs whose
// (type, id) is selected. A kept catalog loses its search capability
// unless its selection enables search; a catalog that offers nothing but
// search is kept either way. m is not modified.
func FilterByCatalogs(m Manifest, selected []CatalogSelection) Manifest {
	out := m.Clone()
	if out == nil {
		return nil
	}

	bySel := make(map[CatalogKey]CatalogSelection, len(selected))
	for _, s := range selected {
		bySel[s.Key()] = s
	}

	cats := out.Catalogs()
	kept := make([]any, 0, len(cats))
	for _, c := range cats {
		sel, ok := bySel[catalogKey(c)]
		if !ok {
			continue
		}
		if has, _ := catalogSearch(c); has && !sel.Search {
			stripSearch(c)
		}
		kept = append(kept, c)
	}
	if _, present := out[keyCatalogs]; present || len(kept) > 0 {
		out[keyCatalogs] = kept
	}

	return out
}

// Filter applies the resource and then the catalog selection. The filtered
// manifest stored for an add-on is always Filter(original, resources,
// catalogs).
func Filter(m Manifest, resources []string, catalogs []CatalogSelection) Manifest {
	return FilterByCatalogs(FilterByResources(m, resources), catalogs)
}
