package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/addonkeeper/internal/clock"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/notify"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/addonkeeper/internal/server/syncplan"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"
)

// Remote reads and replaces a user's add-on collection. *remote.Client
// implements it.
type Remote interface {
	GetCollection(ctx context.Context, authKey string) ([]models.RemoteAddon, error)
	SetCollection(ctx context.Context, authKey string, addons []models.RemoteAddon) error
}

// State is what an operator sees for a user.
type State string

const (
	// StateConnect means no remote credential is on file.
	StateConnect State = "connect"
	// StateStale means the user has no group.
	StateStale    State = "stale"
	StateSynced   State = "synced"
	StateUnsynced State = "unsynced"
)

// UserReport is a dry-run comparison for one user. Plan is nil for
// users in StateConnect.
type UserReport struct {
	UserID string
	State  State
	Plan   *syncplan.Plan
}

// SyncService pushes group add-ons to users' remote collections.
//
// Users are processed one at a time: the remote replace call has no
// concurrency guard, so two writers on one collection could lose an
// update.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *vault.Vault
	planner     *syncplan.Planner
	remote      Remote
	notifier    notify.Notifier
	clock       clock.Clock
	logger      logging.Logger
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, v *vault.Vault, planner *syncplan.Planner,
	r Remote, n notify.Notifier, c clock.Clock, logger logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		vault:       v,
		planner:     planner,
		remote:      r,
		notifier:    n,
		clock:       c,
		logger:      logger.With("module", "sync"),
	}
}

// desiredCache holds decrypted group add-ons for the length of a batch.
type desiredCache map[string][]syncplan.Desired

// UserStatus compares the user's remote collection with their desired
// collection without writing anything.
func (s *SyncService) UserStatus(ctx context.Context, accountID, userID string) (*UserReport, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if user.AuthKey == "" {
		return &UserReport{UserID: user.ID, State: StateConnect}, nil
	}

	_, plan, err := s.plan(ctx, user, desiredCache{})
	if err != nil {
		return nil, err
	}
	return &UserReport{UserID: user.ID, State: stateOf(user, plan), Plan: plan}, nil
}

func stateOf(user *models.User, plan *syncplan.Plan) State {
	switch {
	case user.GroupID == "":
		return StateStale
	case plan.Synced:
		return StateSynced
	default:
		return StateUnsynced
	}
}

// SyncUser brings one user's remote collection in line with their group.
// Lookup errors are returned; everything after that is reported in the
// Outcome.
func (s *SyncService) SyncUser(ctx context.Context, accountID, userID string) (Outcome, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, accountID, userID)
	if err != nil {
		return Outcome{}, err
	}
	return s.syncOne(ctx, user, desiredCache{}), nil
}

// SyncGroup syncs every user of the group in turn.
func (s *SyncService) SyncGroup(ctx context.Context, accountID, groupID string) (*BatchResult, error) {
	if _, err := s.repomanager.Groups(s.db).GetByID(ctx, accountID, groupID); err != nil {
		return nil, err
	}
	users, err := s.repomanager.Users(s.db).ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.syncAll(ctx, accountID, "group:"+groupID, users), nil
}

// SyncAccount syncs every user of the account in turn.
func (s *SyncService) SyncAccount(ctx context.Context, accountID string) (*BatchResult, error) {
	users, err := s.repomanager.Users(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.syncAll(ctx, accountID, "account", users), nil
}

func (s *SyncService) syncAll(ctx context.Context, accountID, scope string, users []*models.User) *BatchResult {
	batch := &BatchResult{}
	cache := desiredCache{}
	for _, u := range users {
		batch.add(s.syncOne(ctx, u, cache))
	}

	s.logger.Info(ctx, "sync batch finished", "account_id", accountID, "scope", scope,
		"succeeded", batch.Succeeded, "failed", batch.Failed, "skipped", batch.Skipped, "total", batch.Total)
	s.notifier.SyncSummary(ctx, batch.summary(accountID, scope))
	return batch
}

func (s *SyncService) syncOne(ctx context.Context, user *models.User, cache desiredCache) Outcome {
	ctx = logging.WithAttrs(ctx, "user_id", user.ID)

	switch {
	case !user.IsActive:
		return skipped(user.ID, user.Username, "inactive")
	case user.Expired(s.clock.Now()):
		return skipped(user.ID, user.Username, "expired")
	case user.AuthKey == "":
		return skipped(user.ID, user.Username, string(StateConnect))
	}

	authKey, plan, err := s.plan(ctx, user, cache)
	if err != nil {
		s.logger.Warn(ctx, "sync planning failed", "error", err)
		return failed(user.ID, user.Username, err)
	}
	if plan.Synced {
		return succeeded(user.ID, user.Username, "already synced")
	}

	if err := s.remote.SetCollection(ctx, authKey, plan.Push); err != nil {
		s.logger.Warn(ctx, "collection push failed", "error", err)
		return failed(user.ID, user.Username, err)
	}
	s.logger.Info(ctx, "collection pushed", "addons", len(plan.Push),
		"missing", len(plan.Missing), "extra", len(plan.Extra), "order_matches", plan.OrderMatches)
	return succeeded(user.ID, user.Username, "pushed")
}

// plan opens the user's secrets, reads their remote collection and plans
// against it. It returns the decrypted auth key for the push.
func (s *SyncService) plan(ctx context.Context, user *models.User, cache desiredCache) (string, *syncplan.Plan, error) {
	authKey, err := s.vault.DecryptString(user.AccountID, user.AuthKey)
	if err != nil {
		return "", nil, fmt.Errorf("auth key: %w", err)
	}

	var protected []string
	if user.ProtectedAddons != "" {
		if err := s.vault.DecryptJSON(user.AccountID, user.ProtectedAddons, &protected); err != nil {
			return "", nil, fmt.Errorf("protected addons: %w", err)
		}
	}

	group, err := s.desired(ctx, user, cache)
	if err != nil {
		return "", nil, err
	}

	remote, err := s.remote.GetCollection(ctx, authKey)
	if err != nil {
		return "", nil, err
	}

	plan := s.planner.Plan(syncplan.Input{
		Remote:    remote,
		Group:     group,
		Excluded:  user.ExcludedAddons,
		Protected: protected,
	})
	return authKey, &plan, nil
}

func (s *SyncService) desired(ctx context.Context, user *models.User, cache desiredCache) ([]syncplan.Desired, error) {
	if user.GroupID == "" {
		return nil, nil
	}
	if d, ok := cache[user.GroupID]; ok {
		return d, nil
	}

	addons, err := s.repomanager.Addons(s.db).ListByGroup(ctx, user.GroupID)
	if err != nil {
		return nil, err
	}

	out := make([]syncplan.Desired, 0, len(addons))
	for _, a := range addons {
		remote, err := s.remoteShape(a)
		if err != nil {
			return nil, fmt.Errorf("addon %s: %w", a.ID, err)
		}
		out = append(out, syncplan.Desired{AddonID: a.ID, Addon: remote})
	}
	cache[user.GroupID] = out
	return out, nil
}

// remoteShape turns a stored add-on into the entry pushed to the remote
// platform: its manifest URL and filtered manifest.
func (s *SyncService) remoteShape(a *models.Addon) (models.RemoteAddon, error) {
	url, err := s.vault.DecryptString(a.AccountID, a.ManifestURL)
	if err != nil {
		return models.RemoteAddon{}, fmt.Errorf("manifest url: %w", err)
	}
	var m manifest.Manifest
	if err := s.vault.DecryptJSON(a.AccountID, a.Manifest, &m); err != nil {
		return models.RemoteAddon{}, fmt.Errorf("manifest: %w", err)
	}
	return models.RemoteAddon{TransportURL: url, Manifest: m}, nil
}
