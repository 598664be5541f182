package reload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
)

// ErrLocalAddon is returned for add-ons served from the loopback
// interface. They have no remote manifest and are never reloaded.
var ErrLocalAddon = errors.New("local add-on is not reloaded")

// Fetcher retrieves manifests.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (manifest.Manifest, error)
}

// Reconciler fetches fresh manifests and reconciles them.
type Reconciler struct {
	fetcher    Fetcher
	autoSelect bool
	logger     logging.Logger
}

// NewReconciler returns a Reconciler. autoSelect enables selecting newly
// published capabilities.
func NewReconciler(fetcher Fetcher, autoSelect bool, logger logging.Logger) *Reconciler {
	return &Reconciler{fetcher: fetcher, autoSelect: autoSelect, logger: logger.With("module", "reload")}
}

// Reload fetches manifestURL and reconciles it against the previous
// original manifest and selection. Nothing is persisted here; on error the
// caller's stored state stays as it was.
func (r *Reconciler) Reload(ctx context.Context, manifestURL string, previous manifest.Manifest, selected Selection) (*Result, error) {
	if IsLocal(manifestURL) {
		return nil, ErrLocalAddon
	}

	fresh, err := r.fetcher.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	res, err := Reconcile(previous, selected, fresh, r.autoSelect)
	if err != nil {
		return nil, err
	}
	if !res.Diff.Empty() {
		r.logger.Info(ctx, "manifest capabilities changed",
			"added_resources", res.Diff.AddedResources, "removed_resources", res.Diff.RemovedResources,
			"added_catalogs", len(res.Diff.AddedCatalogs), "removed_catalogs", len(res.Diff.RemovedCatalogs))
	}
	return &res, nil
}

// Create fetches manifestURL for a new add-on and selects everything it
// offers.
func (r *Reconciler) Create(ctx context.Context, manifestURL string) (*Result, error) {
	fresh, err := r.fetcher.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	sel := SelectAll(fresh)
	filtered := manifest.Filter(fresh, sel.Resources, sel.Catalogs)
	hash, err := manifest.Hash(filtered)
	if err != nil {
		return nil, err
	}
	return &Result{
		Original:  fresh,
		Filtered:  filtered,
		Hash:      hash,
		Selection: sel,
		Diff:      diff(nil, fresh),
	}, nil
}

// Apply recomputes the filtered manifest for an operator-edited selection.
// Selections the manifest does not offer yield common.ErrInvalidArgument.
func Apply(original manifest.Manifest, sel Selection) (*Result, error) {
	available := original.AvailableResources()
	for _, r := range sel.Resources {
		if !slices.Contains(available, r) {
			return nil, fmt.Errorf("%w: unknown resource %q", common.ErrInvalidArgument, r)
		}
	}
	cats := indexCatalogs(original.CatalogInfos())
	for _, c := range sel.Catalogs {
		if _, ok := cats[c.Key()]; !ok {
			return nil, fmt.Errorf("%w: unknown catalog %s/%s", common.ErrInvalidArgument, c.Type, c.ID)
		}
	}

	filtered := manifest.Filter(original, sel.Resources, sel.Catalogs)
	hash, err := manifest.Hash(filtered)
	if err != nil {
		return nil, err
	}
	return &Result{
		Original:  original,
		Filtered:  filtered,
		Hash:      hash,
		Selection: sel,
		Diff:      diff(original, original),
	}, nil
}

// IsLocal reports whether rawURL points at the loopback interface.
func IsLocal(rawURL string) bool {
	s := rawURL
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == common.LocalAddonHost {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
