package users

import (
	"context"

	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, accountID, id string) (*models.User, error)
	ListByGroup(ctx context.Context, groupID string) ([]*models.User, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.User, error)
	SetProtected(ctx context.Context, accountID, id, blob string) error
	SetExcluded(ctx context.Context, accountID, id string, addonIDs []string) error
}
