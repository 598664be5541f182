package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/auth"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"
)

// Subjects is told about every new account so it gets a sync schedule.
type Subjects interface {
	Add(subject string)
}

// SessionService handles operator accounts: registration, login and
// logout. Login makes the account's session key resident in the vault;
// logout drops it.
type SessionService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	vault                       *vault.Vault
	subjects                    Subjects
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
}

// NewSessionService constructs a SessionService. subjects may be nil.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, v *vault.Vault, subjects Subjects,
	jwtSecret string, accessTokenValidity time.Duration, logger logging.Logger) *SessionService {
	return &SessionService{
		db:                          db,
		repomanager:                 m,
		vault:                       v,
		subjects:                    subjects,
		jwtSecret:                   []byte(jwtSecret),
		accessTokenValidityDuration: accessTokenValidity,
		logger:                      logger.With("module", "sessions"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. An email already in use yields
// common.ErrAlreadyExists.
func (s *SessionService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrInvalidArgument)
	}

	repo := s.repomanager.Accounts(s.db)
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error looking up account: %w", err)
	}

	account, err := repo.Create(ctx, &models.Account{Email: email, Verifier: s.vault.Verifier(email, password)})
	if err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	if s.subjects != nil {
		s.subjects.Add(account.ID)
	}
	s.logger.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Login checks the password, unlocks the vault session and returns an
// access token. Unknown emails and wrong passwords both yield
// common.ErrorUnauthorized.
func (s *SessionService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	if err := s.vault.Unlock(account.ID, email, password, account.Verifier); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.logger.Warn(ctx, "login rejected", "account_id", account.ID)
			return "", err
		}
		return "", common.ErrorInternal
	}

	token, err := auth.GenerateToken(account.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Active reports whether the account is logged in.
func (s *SessionService) Active(accountID string) bool {
	return s.vault.HasSession(accountID)
}

// Logout drops the account's session key.
func (s *SessionService) Logout(ctx context.Context, accountID string) {
	s.vault.Clear(accountID)
	s.logger.Info(ctx, "account logged out", "account_id", accountID)
}
