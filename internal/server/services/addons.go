package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/archive"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/notify"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"
)

// Reloader produces reconciled manifests. *reload.Reconciler implements it.
type Reloader interface {
	Reload(ctx context.Context, manifestURL string, previous manifest.Manifest, selected reload.Selection) (*reload.Result, error)
	Create(ctx context.Context, manifestURL string) (*reload.Result, error)
}

// AddonService curates add-ons and keeps their manifests current.
type AddonService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *vault.Vault
	reloader    Reloader
	archive     archive.Archive
	notifier    notify.Notifier
	logger      logging.Logger
}

func NewAddonService(db *sql.DB, m repomanager.RepositoryManager, v *vault.Vault, reloader Reloader,
	a archive.Archive, n notify.Notifier, logger logging.Logger) *AddonService {
	return &AddonService{
		db:          db,
		repomanager: m,
		vault:       v,
		reloader:    reloader,
		archive:     a,
		notifier:    n,
		logger:      logger.With("module", "addons"),
	}
}

// CreateAddon fetches manifestURL and stores a new add-on with every
// resource and catalog selected. An empty name takes the manifest's name.
func (s *AddonService) CreateAddon(ctx context.Context, accountID, name, manifestURL string) (*models.Addon, error) {
	manifestURL = strings.TrimSpace(manifestURL)
	if manifestURL == "" {
		return nil, fmt.Errorf("%w: manifest url is required", common.ErrInvalidArgument)
	}

	res, err := s.reloader.Create(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = res.Original.Name()
	}

	addon := &models.Addon{AccountID: accountID, Name: name, IsActive: true}
	if addon.ManifestURL, err = s.vault.EncryptString(accountID, manifestURL); err != nil {
		return nil, err
	}
	if err := s.seal(addon, res); err != nil {
		return nil, err
	}

	created, err := s.repomanager.Addons(s.db).Create(ctx, addon)
	if err != nil {
		return nil, fmt.Errorf("error creating addon: %w", err)
	}
	s.logger.Info(ctx, "addon created", "account_id", accountID, "addon_id", created.ID)
	return created, nil
}

// UpdateSelection applies an operator's resource and catalog selection to
// the add-on's stored original manifest.
func (s *AddonService) UpdateSelection(ctx context.Context, accountID, addonID string, sel reload.Selection) (*models.Addon, error) {
	repo := s.repomanager.Addons(s.db)
	addon, err := repo.GetByID(ctx, accountID, addonID)
	if err != nil {
		return nil, err
	}

	original, err := s.originalManifest(addon)
	if err != nil {
		return nil, err
	}
	res, err := reload.Apply(original, sel)
	if err != nil {
		return nil, err
	}
	if err := s.seal(addon, res); err != nil {
		return nil, err
	}
	if err := repo.UpdateManifest(ctx, addon); err != nil {
		return nil, err
	}
	return addon, nil
}

// DeleteAddon removes the add-on and its group memberships.
func (s *AddonService) DeleteAddon(ctx context.Context, accountID, addonID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Addons(tx).Delete(ctx, accountID, addonID)
	})
}

// ReloadAddon reloads one add-on. Errors are returned to the caller and
// leave the stored add-on unchanged; loopback add-ons yield
// reload.ErrLocalAddon.
func (s *AddonService) ReloadAddon(ctx context.Context, accountID, addonID string) (*reload.Result, error) {
	addon, err := s.repomanager.Addons(s.db).GetByID(ctx, accountID, addonID)
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, addon)
}

// ReloadGroup reloads every active add-on of the group.
func (s *AddonService) ReloadGroup(ctx context.Context, accountID, groupID string) (*BatchResult, error) {
	if _, err := s.repomanager.Groups(s.db).GetByID(ctx, accountID, groupID); err != nil {
		return nil, err
	}
	addons, err := s.repomanager.Addons(s.db).ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.reloadAll(ctx, addons), nil
}

// ReloadAccount reloads every active add-on of the account.
func (s *AddonService) ReloadAccount(ctx context.Context, accountID string) (*BatchResult, error) {
	all, err := s.repomanager.Addons(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	active := make([]*models.Addon, 0, len(all))
	for _, a := range all {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return s.reloadAll(ctx, active), nil
}

func (s *AddonService) reloadAll(ctx context.Context, addons []*models.Addon) *BatchResult {
	batch := &BatchResult{}
	for _, a := range addons {
		ctx := logging.WithAttrs(ctx, "addon_id", a.ID)
		_, err := s.reload(ctx, a)
		switch {
		case err == nil:
			batch.add(succeeded(a.ID, a.Name, "reloaded"))
		case errors.Is(err, reload.ErrLocalAddon):
			batch.add(skipped(a.ID, a.Name, err.Error()))
		default:
			s.logger.Warn(ctx, "addon reload failed", "error", err)
			batch.add(failed(a.ID, a.Name, err))
		}
	}
	return batch
}

func (s *AddonService) reload(ctx context.Context, addon *models.Addon) (*reload.Result, error) {
	manifestURL, err := s.vault.DecryptString(addon.AccountID, addon.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("manifest url: %w", err)
	}
	previous, err := s.originalManifest(addon)
	if err != nil {
		return nil, err
	}

	selected := reload.Selection{Resources: addon.Resources, Catalogs: addon.Catalogs}
	res, err := s.reloader.Reload(ctx, manifestURL, previous, selected)
	if err != nil {
		return nil, err
	}

	updated := *addon
	if err := s.seal(&updated, res); err != nil {
		return nil, err
	}
	if err := s.repomanager.Addons(s.db).UpdateManifest(ctx, &updated); err != nil {
		return nil, err
	}
	*addon = updated

	if err := s.archive.Put(ctx, addon.AccountID, addon.ID, addon.ManifestHash, []byte(addon.OriginalManifest)); err != nil {
		s.logger.Warn(ctx, "manifest archive failed", "addon_id", addon.ID, "error", err)
	}
	s.notifier.ReloadDiff(ctx, addon.Name, res.Diff)
	return res, nil
}

// originalManifest opens the add-on's last fetched manifest. Add-ons
// without one yield nil so every capability counts as new.
func (s *AddonService) originalManifest(addon *models.Addon) (manifest.Manifest, error) {
	if addon.OriginalManifest == "" {
		return nil, nil
	}
	var m manifest.Manifest
	if err := s.vault.DecryptJSON(addon.AccountID, addon.OriginalManifest, &m); err != nil {
		return nil, fmt.Errorf("original manifest: %w", err)
	}
	return m, nil
}

// seal stores res on addon: both manifests as vault blobs, the hash and
// the selection.
func (s *AddonService) seal(addon *models.Addon, res *reload.Result) error {
	original, err := s.vault.EncryptJSON(addon.AccountID, res.Original)
	if err != nil {
		return err
	}
	filtered, err := s.vault.EncryptJSON(addon.AccountID, res.Filtered)
	if err != nil {
		return err
	}
	addon.OriginalManifest = original
	addon.Manifest = filtered
	addon.ManifestHash = res.Hash
	addon.Resources = res.Selection.Resources
	addon.Catalogs = res.Selection.Catalogs
	return nil
}
