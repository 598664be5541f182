package addons

import (
	"context"

	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, addon *models.Addon) (*models.Addon, error)
	GetByID(ctx context.Context, accountID, id string) (*models.Addon, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Addon, error)
	// ListByGroup returns the group's active add-ons sorted by position.
	ListByGroup(ctx context.Context, groupID string) ([]*models.Addon, error)
	// UpdateManifest stores the manifests, hash and selection of addon.
	UpdateManifest(ctx context.Context, addon *models.Addon) error
	// Delete removes the add-on together with its group memberships and
	// keeps the remaining positions of each group contiguous.
	Delete(ctx context.Context, accountID, id string) error
}
