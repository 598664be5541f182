package addons

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

// PostgresRepository implements add-on storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const addonColumns = `a.id, a.account_id, a.name, a.manifest_url, a.original_manifest, a.manifest,
		a.manifest_hash, a.resources, a.catalogs, a.is_active, a.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAddon(s scanner) (*models.Addon, error) {
	var (
		a                   models.Addon
		resources, catalogs []byte
	)
	err := s.Scan(&a.ID, &a.AccountID, &a.Name, &a.ManifestURL, &a.OriginalManifest, &a.Manifest,
		&a.ManifestHash, &resources, &catalogs, &a.IsActive, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalSelection(resources, catalogs, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func unmarshalSelection(resources, catalogs []byte, a *models.Addon) error {
	a.Resources = []string{}
	a.Catalogs = []manifest.CatalogSelection{}
	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &a.Resources); err != nil {
			return fmt.Errorf("decode resources: %w", err)
		}
	}
	if len(catalogs) > 0 {
		if err := json.Unmarshal(catalogs, &a.Catalogs); err != nil {
			return fmt.Errorf("decode catalogs: %w", err)
		}
	}
	return nil
}

func marshalSelection(a *models.Addon) (string, string, error) {
	resources := a.Resources
	if resources == nil {
		resources = []string{}
	}
	catalogs := a.Catalogs
	if catalogs == nil {
		catalogs = []manifest.CatalogSelection{}
	}
	r, err := json.Marshal(resources)
	if err != nil {
		return "", "", err
	}
	c, err := json.Marshal(catalogs)
	if err != nil {
		return "", "", err
	}
	return string(r), string(c), nil
}

func (r *PostgresRepository) Create(ctx context.Context, addon *models.Addon) (*models.Addon, error) {
	resources, catalogs, err := marshalSelection(addon)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO addons (account_id, name, manifest_url, original_manifest, manifest, manifest_hash, resources, catalogs, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, updated_at
	`
	err = r.db.QueryRowContext(ctx, query, addon.AccountID, addon.Name, addon.ManifestURL, addon.OriginalManifest,
		addon.Manifest, addon.ManifestHash, resources, catalogs, addon.IsActive).Scan(&addon.ID, &addon.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return addon, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, accountID, id string) (*models.Addon, error) {
	query := `SELECT ` + addonColumns + ` FROM addons a WHERE a.account_id = $1 AND a.id = $2`

	a, err := scanAddon(r.db.QueryRowContext(ctx, query, accountID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Addon, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select addons: %w", err)
	}
	defer rows.Close()

	var result []*models.Addon
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Addon, error) {
	query := `SELECT ` + addonColumns + ` FROM addons a WHERE a.account_id = $1 ORDER BY a.name, a.id`
	return r.list(ctx, query, accountID)
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Addon, error) {
	query := `SELECT ` + addonColumns + `
		FROM group_addons ga
		JOIN addons a ON a.id = ga.addon_id
		WHERE ga.group_id = $1 AND a.is_active
		ORDER BY ga.position`
	return r.list(ctx, query, groupID)
}

func (r *PostgresRepository) UpdateManifest(ctx context.Context, addon *models.Addon) error {
	resources, catalogs, err := marshalSelection(addon)
	if err != nil {
		return err
	}

	query := `
		UPDATE addons SET name = $3, original_manifest = $4, manifest = $5, manifest_hash = $6,
			resources = $7, catalogs = $8, updated_at = now()
		WHERE account_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, addon.AccountID, addon.ID, addon.Name, addon.OriginalManifest,
		addon.Manifest, addon.ManifestHash, resources, catalogs)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// compactPositions renumbers the account's group members to 0..n-1 in
// their current order.
const compactPositions = `
	UPDATE group_addons ga SET position = ranked.pos
	FROM (
		SELECT group_id, addon_id, ROW_NUMBER() OVER (PARTITION BY group_id ORDER BY position) - 1 AS pos
		FROM group_addons
		WHERE group_id IN (SELECT id FROM groups WHERE account_id = $1)
	) ranked
	WHERE ga.group_id = ranked.group_id AND ga.addon_id = ranked.addon_id AND ga.position <> ranked.pos
`

// Delete removes the add-on. Its memberships cascade and the groups it was
// in close up behind it. Callers run it inside a transaction.
func (r *PostgresRepository) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addons WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, compactPositions, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
