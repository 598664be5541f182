package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
)

// GroupService curates groups and the order of their add-ons. Ordering
// changes run in one transaction so positions stay contiguous.
type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager) *GroupService {
	return &GroupService{db: db, repomanager: m}
}

func (s *GroupService) CreateGroup(ctx context.Context, accountID, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", common.ErrInvalidArgument)
	}
	return s.repomanager.Groups(s.db).Create(ctx, &models.Group{AccountID: accountID, Name: name})
}

func (s *GroupService) ListGroups(ctx context.Context, accountID string) ([]*models.Group, error) {
	return s.repomanager.Groups(s.db).ListByAccount(ctx, accountID)
}

// AttachAddon appends the add-on to the group and returns its position.
func (s *GroupService) AttachAddon(ctx context.Context, accountID, groupID, addonID string) (int, error) {
	var pos int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.owned(ctx, tx, accountID, groupID, addonID); err != nil {
			return err
		}
		members, err := s.repomanager.Groups(tx).Members(ctx, groupID)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(members, func(m models.Membership) bool { return m.AddonID == addonID }) {
			return common.ErrAlreadyExists
		}
		pos, err = s.repomanager.Groups(tx).Attach(ctx, groupID, addonID)
		return err
	})
	return pos, err
}

// DetachAddon removes the add-on from the group.
func (s *GroupService) DetachAddon(ctx context.Context, accountID, groupID, addonID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Groups(tx).GetByID(ctx, accountID, groupID); err != nil {
			return err
		}
		return s.repomanager.Groups(tx).Detach(ctx, groupID, addonID)
	})
}

// Reorder sets the group's order to addonIDs, which must list every
// member exactly once.
func (s *GroupService) Reorder(ctx context.Context, accountID, groupID string, addonIDs []string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Groups(tx)
		if _, err := repo.GetByID(ctx, accountID, groupID); err != nil {
			return err
		}
		members, err := repo.Members(ctx, groupID)
		if err != nil {
			return err
		}
		if !samePermutation(members, addonIDs) {
			return fmt.Errorf("%w: order must list every group add-on once", common.ErrInvalidArgument)
		}
		return repo.Reorder(ctx, groupID, addonIDs)
	})
}

func samePermutation(members []models.Membership, ids []string) bool {
	if len(members) != len(ids) {
		return false
	}
	want := make(map[string]bool, len(members))
	for _, m := range members {
		want[m.AddonID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return true
}

func (s *GroupService) owned(ctx context.Context, tx dbx.DBTX, accountID, groupID, addonID string) error {
	if _, err := s.repomanager.Groups(tx).GetByID(ctx, accountID, groupID); err != nil {
		return err
	}
	_, err := s.repomanager.Addons(tx).GetByID(ctx, accountID, addonID)
	return err
}
