package reload

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	m     manifest.Manifest
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (manifest.Manifest, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.m.Clone(), nil
}

func TestReconciler_Reload(t *testing.T) {
	f := &fakeFetcher{m: withResources("A", "B", "C")}
	r := NewReconciler(f, true, logging.Nop{})

	res, err := r.Reload(context.Background(), "https://x.example/manifest.json", withResources("A", "B"), Selection{Resources: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, res.Selection.Resources)
	assert.Equal(t, []string{"https://x.example/manifest.json"}, f.calls)
}

func TestReconciler_SkipsLocal(t *testing.T) {
	f := &fakeFetcher{m: withResources("A")}
	r := NewReconciler(f, true, logging.Nop{})

	for _, u := range []string{
		"http://127.0.0.1:11470/local-addon/manifest.json",
		"http://localhost:11470/manifest.json",
		"http://[::1]/manifest.json",
		"127.0.0.1:11470/manifest.json",
	} {
		_, err := r.Reload(context.Background(), u, nil, Selection{})
		assert.ErrorIs(t, err, ErrLocalAddon, u)
	}
	assert.Empty(t, f.calls)
}

func TestReconciler_FetchFailure(t *testing.T) {
	f := &fakeFetcher{err: common.ErrFetch}
	r := NewReconciler(f, true, logging.Nop{})

	res, err := r.Reload(context.Background(), "https://x.example/manifest.json", nil, Selection{})
	assert.ErrorIs(t, err, common.ErrFetch)
	assert.Nil(t, res)
}

func TestReconciler_Create(t *testing.T) {
	f := &fakeFetcher{m: withResources("stream", "meta")}
	r := NewReconciler(f, false, logging.Nop{})

	res, err := r.Create(context.Background(), "https://x.example/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"stream", "meta"}, res.Selection.Resources)
	assert.Equal(t, []string{"stream", "meta"}, res.Diff.AddedResources)
}

func TestApply(t *testing.T) {
	orig := withResources("stream", "meta")
	orig["catalogs"] = []any{catalog("movie", "top", "Top", true)}

	res, err := Apply(orig, Selection{Resources: []string{"stream", "catalog"},
		Catalogs: []manifest.CatalogSelection{{Type: "movie", ID: "top"}}})
	require.NoError(t, err)
	assert.False(t, res.Filtered.HasSearch())
	assert.True(t, res.Diff.Empty())

	_, err = Apply(orig, Selection{Resources: []string{"subtitles"}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = Apply(orig, Selection{Catalogs: []manifest.CatalogSelection{{Type: "tv", ID: "x"}}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("http://127.0.0.1:11470/manifest.json"))
	assert.True(t, IsLocal("http://LOCALHOST/manifest.json"))
	assert.False(t, IsLocal("https://v3-cinemeta.strem.io/manifest.json"))
	assert.False(t, IsLocal("https://127.0.0.1.example.com/manifest.json"))
}
