package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := `INSERT INTO groups (account_id, name) VALUES ($1, $2) RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, group.AccountID, group.Name).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return group, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, accountID, id string) (*models.Group, error) {
	query := `SELECT id, account_id, name, created_at FROM groups WHERE account_id = $1 AND id = $2`

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, accountID, id).Scan(&g.ID, &g.AccountID, &g.Name, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Group, error) {
	query := `SELECT id, account_id, name, created_at FROM groups WHERE account_id = $1 ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.AccountID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Members(ctx context.Context, groupID string) ([]models.Membership, error) {
	query := `SELECT group_id, addon_id, position FROM group_addons WHERE group_id = $1 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.GroupID, &m.AddonID, &m.Position); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Attach appends the add-on at the end of the group and returns its
// position.
func (r *PostgresRepository) Attach(ctx context.Context, groupID, addonID string) (int, error) {
	query := `
		INSERT INTO group_addons (group_id, addon_id, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM group_addons WHERE group_id = $1
		RETURNING position
	`
	var pos int
	if err := r.db.QueryRowContext(ctx, query, groupID, addonID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return pos, nil
}

// Detach removes the add-on and closes the gap it leaves.
func (r *PostgresRepository) Detach(ctx context.Context, groupID, addonID string) error {
	var pos int
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM group_addons WHERE group_id = $1 AND addon_id = $2 RETURNING position`,
		groupID, addonID).Scan(&pos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE group_addons SET position = position - 1 WHERE group_id = $1 AND position > $2`,
		groupID, pos)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Reorder assigns positions 0..n-1 following addonIDs. Every id must
// already be a member; the position uniqueness check is deferred to commit.
func (r *PostgresRepository) Reorder(ctx context.Context, groupID string, addonIDs []string) error {
	query := `UPDATE group_addons SET position = $3 WHERE group_id = $1 AND addon_id = $2`
	for i, id := range addonIDs {
		res, err := r.db.ExecContext(ctx, query, groupID, id, i)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected error: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("addon %s: %w", id, common.ErrorNotFound)
		}
	}
	return nil
}
