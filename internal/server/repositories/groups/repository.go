package groups

import (
	"context"

	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

// Repository stores groups and their ordered add-on memberships.
//
// Attach, Detach and Reorder leave positions contiguous from 0 once the
// surrounding transaction commits; callers run them inside dbx.WithTx.
type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, accountID, id string) (*models.Group, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Group, error)
	Members(ctx context.Context, groupID string) ([]models.Membership, error)
	Attach(ctx context.Context, groupID, addonID string) (int, error)
	Detach(ctx context.Context, groupID, addonID string) error
	Reorder(ctx context.Context, groupID string, addonIDs []string) error
}
