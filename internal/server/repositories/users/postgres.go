package users

import (
	"context"
	"database/sql"
	"encoding/json"
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

const userColumns = `id, account_id, group_id, username, stremio_auth_key, expires_at, excluded_addons, protected_addons, is_active`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u                          models.User
		groupID, authKey, protBlob sql.NullString
		expiresAt                  sql.NullTime
		excluded                   []byte
	)
	err := s.Scan(&u.ID, &u.AccountID, &groupID, &u.Username, &authKey, &expiresAt, &excluded, &protBlob, &u.IsActive)
	if err != nil {
		return nil, err
	}

	u.GroupID = groupID.String
	u.AuthKey = authKey.String
	u.ProtectedAddons = protBlob.String
	if expiresAt.Valid {
		t := expiresAt.Time
		u.ExpiresAt = &t
	}
	u.ExcludedAddons = []string{}
	if len(excluded) > 0 {
		if err := json.Unmarshal(excluded, &u.ExcludedAddons); err != nil {
			return nil, fmt.Errorf("decode excluded addons: %w", err)
		}
	}
	return &u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	excluded, err := marshalIDs(user.ExcludedAddons)
	if err != nil {
		return nil, err
	}

	var expiresAt sql.NullTime
	if user.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *user.ExpiresAt, Valid: true}
	}

	query := `
		INSERT INTO users (account_id, group_id, username, stremio_auth_key, expires_at, excluded_addons, protected_addons, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query, user.AccountID, nullable(user.GroupID), user.Username, nullable(user.AuthKey),
		expiresAt, excluded, nullable(user.ProtectedAddons), user.IsActive).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, accountID, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE account_id = $1 AND id = $2`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, accountID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE group_id = $1 ORDER BY username, id`, groupID)
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE account_id = $1 ORDER BY username, id`, accountID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SetProtected replaces the sealed protected add-on list.
func (r *PostgresRepository) SetProtected(ctx context.Context, accountID, id, blob string) error {
	return r.exec(ctx, `UPDATE users SET protected_addons = $3 WHERE account_id = $1 AND id = $2`,
		accountID, id, nullable(blob))
}

// SetExcluded replaces the excluded add-on ids.
func (r *PostgresRepository) SetExcluded(ctx context.Context, accountID, id string, addonIDs []string) error {
	excluded, err := marshalIDs(addonIDs)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE users SET excluded_addons = $3 WHERE account_id = $1 AND id = $2`,
		accountID, id, excluded)
}
