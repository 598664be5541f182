package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"id", "account_id", "group_id", "username", "stremio_auth_key", "expires_at",
	"excluded_addons", "protected_addons", "is_active"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)INSERT INTO users .* RETURNING id`).
		WithArgs("acc-1", sql.NullString{String: "g-1", Valid: true}, "alice", sql.NullString{String: "key-blob", Valid: true},
			sql.NullTime{Time: exp, Valid: true}, `["x"]`, sql.NullString{}, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))

	u := &models.User{AccountID: "acc-1", GroupID: "g-1", Username: "alice", AuthKey: "key-blob",
		ExpiresAt: &exp, ExcludedAddons: []string{"x"}, IsActive: true}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_NullableColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT id, account_id, group_id, username, stremio_auth_key, expires_at, excluded_addons, protected_addons, is_active FROM users WHERE account_id = \$1 AND id = \$2$`
	mock.ExpectQuery(q).WithArgs("acc-1", "u-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "acc-1", nil, "alice", nil, nil, []byte(`[]`), nil, true))

	got, err := repo.GetByID(context.Background(), "acc-1", "u-1")
	require.NoError(t, err)
	assert.Empty(t, got.GroupID)
	assert.Empty(t, got.AuthKey)
	assert.Nil(t, got.ExpiresAt)
	assert.Equal(t, []string{}, got.ExcludedAddons)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "acc-1", "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestListByGroup(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userCols).
		AddRow("u-1", "acc-1", "g-1", "alice", "k1", exp, []byte(`["x","y"]`), "p1", true).
		AddRow("u-2", "acc-1", "g-1", "bob", nil, nil, []byte(`[]`), nil, false)
	mock.ExpectQuery(`FROM users WHERE group_id = \$1 ORDER BY username, id`).WithArgs("g-1").WillReturnRows(rows)

	got, err := repo.ListByGroup(context.Background(), "g-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"x", "y"}, got[0].ExcludedAddons)
	assert.Equal(t, exp, *got[0].ExpiresAt)
	assert.Equal(t, "p1", got[0].ProtectedAddons)
	assert.False(t, got[1].IsActive)
}

func TestListByAccount_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE account_id = \$1`).WillReturnError(errors.New("db err"))

	_, err := repo.ListByAccount(context.Background(), "acc-1")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestSetProtectedAndExcluded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET protected_addons = \$3 WHERE account_id = \$1 AND id = \$2`).
		WithArgs("acc-1", "u-1", sql.NullString{String: "blob", Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET excluded_addons = \$3 WHERE account_id = \$1 AND id = \$2`).
		WithArgs("acc-1", "u-1", `["x"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET excluded_addons`).
		WithArgs("acc-1", "ghost", `[]`).
		WillReturnResult(driver.RowsAffected(0))

	require.NoError(t, repo.SetProtected(context.Background(), "acc-1", "u-1", "blob"))
	require.NoError(t, repo.SetExcluded(context.Background(), "acc-1", "u-1", []string{"x"}))
	assert.ErrorIs(t, repo.SetExcluded(context.Background(), "acc-1", "ghost", nil), common.ErrorNotFound)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	assert.False(t, (&models.User{}).Expired(now))
	assert.True(t, (&models.User{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&models.User{ExpiresAt: &future}).Expired(now))
}
