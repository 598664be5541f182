package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/notify"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/addons"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/groups"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"
	"github.com/stretchr/testify/require"
)

// --- in-memory repositories ---

type store struct {
	seq       int
	accounts  map[string]*models.Account
	addons    map[string]*models.Addon
	groups    map[string]*models.Group
	members   map[string][]string
	users     map[string]*models.User
	updateErr error
}

func newStore() *store {
	return &store{
		accounts: map[string]*models.Account{},
		addons:   map[string]*models.Addon{},
		groups:   map[string]*models.Group{},
		members:  map[string][]string{},
		users:    map[string]*models.User{},
	}
}

func (s *store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return &fakeAccounts{m.s} }
func (m *fakeRepoManager) Addons(dbx.DBTX) addons.Repository            { return &fakeAddons{m.s} }
func (m *fakeRepoManager) Groups(dbx.DBTX) groups.Repository            { return &fakeGroups{m.s} }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsers{m.s} }

type fakeAccounts struct{ s *store }

func (r *fakeAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	cp := *a
	cp.ID = r.s.nextID("acc")
	r.s.accounts[cp.ID] = &cp
	return &cp, nil
}

func (r *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	for _, a := range r.s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	if a, ok := r.s.accounts[id]; ok {
		return a, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeAccounts) List(context.Context) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, a)
	}
	return out, nil
}

type fakeAddons struct{ s *store }

func (r *fakeAddons) Create(_ context.Context, a *models.Addon) (*models.Addon, error) {
	cp := *a
	cp.ID = r.s.nextID("addon")
	r.s.addons[cp.ID] = &cp
	return &cp, nil
}

func (r *fakeAddons) GetByID(_ context.Context, accountID, id string) (*models.Addon, error) {
	a, ok := r.s.addons[id]
	if !ok || a.AccountID != accountID {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAddons) ListByAccount(_ context.Context, accountID string) ([]*models.Addon, error) {
	var out []*models.Addon
	for _, a := range r.s.addons {
		if a.AccountID == accountID {
			cp := *a
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Addon) int { return compareStrings(a.ID, b.ID) })
	return out, nil
}

func (r *fakeAddons) ListByGroup(_ context.Context, groupID string) ([]*models.Addon, error) {
	var out []*models.Addon
	for _, id := range r.s.members[groupID] {
		if a := r.s.addons[id]; a != nil && a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAddons) UpdateManifest(_ context.Context, a *models.Addon) error {
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	if _, ok := r.s.addons[a.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *a
	r.s.addons[a.ID] = &cp
	return nil
}

func (r *fakeAddons) Delete(_ context.Context, accountID, id string) error {
	a, ok := r.s.addons[id]
	if !ok || a.AccountID != accountID {
		return common.ErrorNotFound
	}
	delete(r.s.addons, id)
	for g, ids := range r.s.members {
		r.s.members[g] = slices.DeleteFunc(ids, func(x string) bool { return x == id })
	}
	return nil
}

type fakeGroups struct{ s *store }

func (r *fakeGroups) Create(_ context.Context, g *models.Group) (*models.Group, error) {
	cp := *g
	cp.ID = r.s.nextID("group")
	r.s.groups[cp.ID] = &cp
	return &cp, nil
}

func (r *fakeGroups) GetByID(_ context.Context, accountID, id string) (*models.Group, error) {
	g, ok := r.s.groups[id]
	if !ok || g.AccountID != accountID {
		return nil, common.ErrorNotFound
	}
	return g, nil
}

func (r *fakeGroups) ListByAccount(_ context.Context, accountID string) ([]*models.Group, error) {
	var out []*models.Group
	for _, g := range r.s.groups {
		if g.AccountID == accountID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGroups) Members(_ context.Context, groupID string) ([]models.Membership, error) {
	var out []models.Membership
	for i, id := range r.s.members[groupID] {
		out = append(out, models.Membership{GroupID: groupID, AddonID: id, Position: i})
	}
	return out, nil
}

func (r *fakeGroups) Attach(_ context.Context, groupID, addonID string) (int, error) {
	r.s.members[groupID] = append(r.s.members[groupID], addonID)
	return len(r.s.members[groupID]) - 1, nil
}

func (r *fakeGroups) Detach(_ context.Context, groupID, addonID string) error {
	ids := r.s.members[groupID]
	i := slices.Index(ids, addonID)
	if i < 0 {
		return common.ErrorNotFound
	}
	r.s.members[groupID] = slices.Delete(ids, i, i+1)
	return nil
}

func (r *fakeGroups) Reorder(_ context.Context, groupID string, addonIDs []string) error {
	r.s.members[groupID] = slices.Clone(addonIDs)
	return nil
}

type fakeUsers struct{ s *store }

func (r *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	cp := *u
	cp.ID = r.s.nextID("user")
	r.s.users[cp.ID] = &cp
	return &cp, nil
}

func (r *fakeUsers) GetByID(_ context.Context, accountID, id string) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok || u.AccountID != accountID {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsers) list(match func(*models.User) bool) []*models.User {
	var out []*models.User
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int { return compareStrings(a.Username, b.Username) })
	return out
}

func (r *fakeUsers) ListByGroup(_ context.Context, groupID string) ([]*models.User, error) {
	return r.list(func(u *models.User) bool { return u.GroupID == groupID }), nil
}

func (r *fakeUsers) ListByAccount(_ context.Context, accountID string) ([]*models.User, error) {
	return r.list(func(u *models.User) bool { return u.AccountID == accountID }), nil
}

func (r *fakeUsers) SetProtected(_ context.Context, accountID, id, blob string) error {
	u, ok := r.s.users[id]
	if !ok || u.AccountID != accountID {
		return common.ErrorNotFound
	}
	u.ProtectedAddons = blob
	return nil
}

func (r *fakeUsers) SetExcluded(_ context.Context, accountID, id string, addonIDs []string) error {
	u, ok := r.s.users[id]
	if !ok || u.AccountID != accountID {
		return common.ErrorNotFound
	}
	u.ExcludedAddons = slices.Clone(addonIDs)
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// --- collaborators ---

type fakeReloader struct {
	results map[string]*reload.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeReloader) Reload(_ context.Context, url string, _ manifest.Manifest, _ reload.Selection) (*reload.Result, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if r, ok := f.results[url]; ok {
		return r, nil
	}
	return nil, errors.New("unexpected url " + url)
}

func (f *fakeReloader) Create(ctx context.Context, url string) (*reload.Result, error) {
	return f.Reload(ctx, url, nil, reload.Selection{})
}

type fakeRemote struct {
	mu          sync.Mutex
	collections map[string][]models.RemoteAddon
	getErr      error
	sets        map[string][][]models.RemoteAddon
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{collections: map[string][]models.RemoteAddon{}, sets: map[string][][]models.RemoteAddon{}}
}

func (f *fakeRemote) GetCollection(_ context.Context, authKey string) ([]models.RemoteAddon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return slices.Clone(f.collections[authKey]), nil
}

func (f *fakeRemote) SetCollection(_ context.Context, authKey string, list []models.RemoteAddon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[authKey] = slices.Clone(list)
	f.sets[authKey] = append(f.sets[authKey], slices.Clone(list))
	return nil
}

type recordingNotifier struct {
	diffs     map[string]reload.Diff
	summaries []notify.Summary
}

func (n *recordingNotifier) ReloadDiff(_ context.Context, name string, d reload.Diff) {
	if n.diffs == nil {
		n.diffs = map[string]reload.Diff{}
	}
	n.diffs[name] = d
}

func (n *recordingNotifier) SyncSummary(_ context.Context, s notify.Summary) {
	n.summaries = append(n.summaries, s)
}

type recordingArchive struct {
	keys []string
	err  error
}

func (a *recordingArchive) Put(_ context.Context, accountID, addonID, hash string, _ []byte) error {
	a.keys = append(a.keys, accountID+"/"+addonID+"/"+hash)
	return a.err
}

// --- fixtures ---

func hashOf(m manifest.Manifest) string {
	h, err := manifest.Hash(m)
	if err != nil {
		panic(err)
	}
	return h
}

func newTestVault() *vault.Vault {
	return vault.New([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
}

func testManifest(id string, resources ...string) manifest.Manifest {
	res := make([]any, 0, len(resources))
	for _, r := range resources {
		res = append(res, r)
	}
	return manifest.Manifest{"id": id, "name": id, "version": "1.0.0", "resources": res, "catalogs": []any{}}
}

// seedAddon stores an add-on whose secrets are sealed by v.
func seedAddon(t *testing.T, s *store, v *vault.Vault, accountID, name, url string, active bool) *models.Addon {
	t.Helper()
	m := testManifest(name, "stream")
	sealedURL, err := v.EncryptString(accountID, url)
	require.NoError(t, err)
	original, err := v.EncryptJSON(accountID, m)
	require.NoError(t, err)

	a := &models.Addon{
		ID:               s.nextID("addon"),
		AccountID:        accountID,
		Name:             name,
		ManifestURL:      sealedURL,
		OriginalManifest: original,
		Manifest:         original,
		ManifestHash:     hashOf(m),
		Resources:        []string{"stream"},
		IsActive:         active,
	}
	s.addons[a.ID] = a
	return a
}

func seedGroup(s *store, accountID string, addonIDs ...string) *models.Group {
	g := &models.Group{ID: s.nextID("group"), AccountID: accountID, Name: "family"}
	s.groups[g.ID] = g
	s.members[g.ID] = addonIDs
	return g
}

func seedUser(t *testing.T, s *store, v *vault.Vault, accountID, groupID, username, authKey string) *models.User {
	t.Helper()
	u := &models.User{ID: s.nextID("user"), AccountID: accountID, GroupID: groupID, Username: username, IsActive: true}
	if authKey != "" {
		blob, err := v.EncryptString(accountID, authKey)
		require.NoError(t, err)
		u.AuthKey = blob
	}
	s.users[u.ID] = u
	return u
}

func remoteAddon(url, name string) models.RemoteAddon {
	return models.RemoteAddon{TransportURL: url, Manifest: testManifest(name, "stream")}
}
