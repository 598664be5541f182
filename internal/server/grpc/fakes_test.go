package grpc

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/services"
)

type fakeSessions struct {
	token     string
	loggedOut []string
}

func (f *fakeSessions) Register(_ context.Context, email, password string) (*models.Account, error) {
	if email == "taken@example.com" {
		return nil, common.ErrAlreadyExists
	}
	return &models.Account{ID: "acc-1", Email: email}, nil
}

func (f *fakeSessions) Login(_ context.Context, email, password string) (string, error) {
	if password != "hunter2" {
		return "", common.ErrorUnauthorized
	}
	return f.token, nil
}

func (f *fakeSessions) Logout(_ context.Context, accountID string) {
	f.loggedOut = append(f.loggedOut, accountID)
}

func (f *fakeSessions) Active(accountID string) bool {
	return !slices.Contains(f.loggedOut, accountID)
}

type fakeGroups struct {
	reordered []string
	account   string
}

func (f *fakeGroups) CreateGroup(_ context.Context, accountID, name string) (*models.Group, error) {
	f.account = accountID
	return &models.Group{ID: "group-1", AccountID: accountID, Name: name}, nil
}

func (f *fakeGroups) ListGroups(_ context.Context, accountID string) ([]*models.Group, error) {
	return []*models.Group{{ID: "group-1", Name: "family"}}, nil
}

func (f *fakeGroups) AttachAddon(_ context.Context, accountID, groupID, addonID string) (int, error) {
	return 2, nil
}

func (f *fakeGroups) DetachAddon(_ context.Context, accountID, groupID, addonID string) error {
	return common.ErrorNotFound
}

func (f *fakeGroups) Reorder(_ context.Context, accountID, groupID string, addonIDs []string) error {
	f.reordered = addonIDs
	return nil
}

type fakeAddons struct {
	selection reload.Selection
}

func (f *fakeAddons) CreateAddon(_ context.Context, accountID, name, manifestURL string) (*models.Addon, error) {
	return &models.Addon{ID: "addon-1", Name: name, IsActive: true, Resources: []string{"stream"}}, nil
}

func (f *fakeAddons) UpdateSelection(_ context.Context, accountID, addonID string, sel reload.Selection) (*models.Addon, error) {
	f.selection = sel
	return &models.Addon{ID: addonID, Resources: sel.Resources, Catalogs: sel.Catalogs}, nil
}

func (f *fakeAddons) DeleteAddon(context.Context, string, string) error { return nil }

func (f *fakeAddons) ReloadAddon(_ context.Context, accountID, addonID string) (*reload.Result, error) {
	switch addonID {
	case "local":
		return nil, reload.ErrLocalAddon
	case "broken":
		return nil, context.DeadlineExceeded
	case "weird":
		return nil, errBoom
	}
	return &reload.Result{Hash: "sha256:abc", Diff: reload.Diff{AddedResources: []string{"meta"}}}, nil
}

func (f *fakeAddons) ReloadGroup(context.Context, string, string) (*services.BatchResult, error) {
	return &services.BatchResult{}, nil
}

func (f *fakeAddons) ReloadAccount(context.Context, string) (*services.BatchResult, error) {
	return &services.BatchResult{}, nil
}

type fakeUsers struct{ created services.NewUser }

func (f *fakeUsers) CreateUser(_ context.Context, accountID string, in services.NewUser) (*models.User, error) {
	f.created = in
	return &models.User{ID: "user-1", Username: in.Username, AuthKey: "sealed", ExpiresAt: in.ExpiresAt, IsActive: true}, nil
}

func (f *fakeUsers) ListUsers(context.Context, string) ([]*models.User, error) {
	return []*models.User{{ID: "user-1", Username: "alice"}}, nil
}

func (f *fakeUsers) SetProtected(context.Context, string, string, []string) error { return nil }
func (f *fakeUsers) SetExcluded(context.Context, string, string, []string) error  { return nil }

type fakeSync struct{ accounts []string }

func (f *fakeSync) UserStatus(_ context.Context, accountID, userID string) (*services.UserReport, error) {
	return &services.UserReport{UserID: userID, State: services.StateConnect}, nil
}

func (f *fakeSync) SyncUser(_ context.Context, accountID, userID string) (services.Outcome, error) {
	return services.Outcome{ID: userID, Status: services.StatusSkipped, Reason: "connect"}, nil
}

func (f *fakeSync) SyncGroup(context.Context, string, string) (*services.BatchResult, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeSync) SyncAccount(_ context.Context, accountID string) (*services.BatchResult, error) {
	f.accounts = append(f.accounts, accountID)
	return &services.BatchResult{
		Outcomes:  []services.Outcome{{ID: "user-1", Name: "alice", Status: services.StatusSuccess, Reason: "pushed"}},
		Succeeded: 1,
		Total:     1,
	}, nil
}
