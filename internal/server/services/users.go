package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"
)

// UserService manages remote-platform users of an account.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *vault.Vault
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, v *vault.Vault) *UserService {
	return &UserService{db: db, repomanager: m, vault: v}
}

// NewUser describes a user to create. AuthKey and GroupID may be empty.
type NewUser struct {
	Username  string
	GroupID   string
	AuthKey   string
	ExpiresAt *time.Time
}

// CreateUser stores a user, sealing the remote auth key.
func (s *UserService) CreateUser(ctx context.Context, accountID string, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrInvalidArgument)
	}
	if in.GroupID != "" {
		if _, err := s.repomanager.Groups(s.db).GetByID(ctx, accountID, in.GroupID); err != nil {
			return nil, err
		}
	}

	user := &models.User{
		AccountID: accountID,
		GroupID:   in.GroupID,
		Username:  in.Username,
		ExpiresAt: in.ExpiresAt,
		IsActive:  true,
	}
	if in.AuthKey != "" {
		blob, err := s.vault.EncryptString(accountID, in.AuthKey)
		if err != nil {
			return nil, err
		}
		user.AuthKey = blob
	}
	return s.repomanager.Users(s.db).Create(ctx, user)
}

func (s *UserService) ListUsers(ctx context.Context, accountID string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).ListByAccount(ctx, accountID)
}

// SetProtected replaces the user's protected manifest URLs and names. The
// list is sealed as a single blob.
func (s *UserService) SetProtected(ctx context.Context, accountID, userID string, protected []string) error {
	cleaned := make([]string, 0, len(protected))
	for _, p := range protected {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	blob, err := s.vault.EncryptJSON(accountID, cleaned)
	if err != nil {
		return err
	}
	return s.repomanager.Users(s.db).SetProtected(ctx, accountID, userID, blob)
}

// SetExcluded replaces the add-on ids the user opted out of.
func (s *UserService) SetExcluded(ctx context.Context, accountID, userID string, addonIDs []string) error {
	return s.repomanager.Users(s.db).SetExcluded(ctx, accountID, userID, addonIDs)
}
