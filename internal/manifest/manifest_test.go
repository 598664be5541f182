package manifest

import (
	"testing"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const torrentioJSON = `{
  "id": "com.example.streams",
  "name": "Example Streams",
  "version": "1.2.0",
  "resources": ["stream", {"name": "meta", "types": ["movie"]}, "catalog"],
  "types": ["movie", "series"],
  "catalogs": [
    {"type": "movie", "id": "top", "name": "Top", "extra": [{"name": "search"}, {"name": "genre"}]},
    {"type": "series", "id": "search", "name": "Search", "extra": [{"name": "search", "isRequired": true}], "extraRequired": ["search"]},
    {"type": "movie", "id": "new", "name": "New"}
  ],
  "addonCatalogs": [{"type": "all", "id": "community", "name": "Community"}],
  "behaviorHints": {"configurable": true}
}`

func mustParse(t *testing.T, s string) Manifest {
	t.Helper()
	m, err := Parse([]byte(s))
	require.NoError(t, err)
	return m
}

func TestParse(t *testing.T) {
	m := mustParse(t, torrentioJSON)
	assert.Equal(t, "com.example.streams", m.ID())
	assert.Equal(t, "Example Streams", m.Name())
	assert.Equal(t, "1.2.0", m.Version())

	for _, bad := range []string{`not json`, `null`, `[1,2]`} {
		_, err := Parse([]byte(bad))
		assert.ErrorIs(t, err, common.ErrMalformedManifest, bad)
	}
}

func TestAvailableResources(t *testing.T) {
	m := mustParse(t, torrentioJSON)
	assert.Equal(t, []string{"stream", "meta", "catalog", "addon_catalog", "search"}, m.AvailableResources())

	implicit := mustParse(t, `{"resources":["stream"],"catalogs":[{"type":"movie","id":"x"}]}`)
	assert.Equal(t, []string{"stream", "catalog"}, implicit.AvailableResources())
}

func TestMalformedSectionsReadAsEmpty(t *testing.T) {
	m := mustParse(t, `{"id":"x","resources":"stream","catalogs":{"type":"movie"},"addonCatalogs":[1,"a"]}`)
	assert.Empty(t, m.Resources())
	assert.Empty(t, m.Catalogs())
	assert.Empty(t, m.AddonCatalogs())
	assert.Empty(t, m.AvailableResources())
	assert.False(t, m.HasSearch())

	assert.NotPanics(t, func() {
		FilterByResources(m, []string{"stream"})
		FilterByCatalogs(m, nil)
	})
}

func TestCatalogInfos(t *testing.T) {
	m := mustParse(t, torrentioJSON)
	infos := m.CatalogInfos()
	require.Len(t, infos, 3)

	assert.Equal(t, CatalogInfo{Key: CatalogKey{"movie", "top"}, Name: "Top", Search: true}, infos[0])
	assert.Equal(t, CatalogInfo{Key: CatalogKey{"series", "search"}, Name: "Search", Search: true, SearchOnly: true}, infos[1])
	assert.False(t, infos[2].Search)
	assert.Equal(t, "Top (movie)", infos[0].Label())
	assert.Equal(t, "x (tv)", CatalogInfo{Key: CatalogKey{"tv", "x"}}.Label())

	sels := m.CatalogSelections()
	assert.Equal(t, []CatalogSelection{
		{Type: "movie", ID: "top", Search: true},
		{Type: "series", ID: "search", Search: true},
		{Type: "movie", ID: "new", Search: false},
	}, sels)
}

func TestClone_IsDeep(t *testing.T) {
	m := mustParse(t, torrentioJSON)
	c := m.Clone()
	c.Catalogs()[0]["name"] = "changed"
	assert.Equal(t, "Top", m.Catalogs()[0]["name"])
	assert.Nil(t, Manifest(nil).Clone())
}
