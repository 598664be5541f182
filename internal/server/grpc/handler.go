package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

type request struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Name        string     `json:"name"`
	GroupID     string     `json:"groupId"`
	AddonID     string     `json:"addonId"`
	AddonIDs    []string   `json:"addonIds"`
	UserID      string     `json:"userId"`
	ManifestURL string     `json:"manifestUrl"`
	Username    string     `json:"username"`
	AuthKey     string     `json:"authKey"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Protected   []string   `json:"protected"`
	reload.Selection
}

type accountView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type groupView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addonView struct {
	ID           string                      `json:"id"`
	Name         string                      `json:"name"`
	ManifestHash string                      `json:"manifestHash"`
	Resources    []string                    `json:"resources"`
	Catalogs     []manifest.CatalogSelection `json:"catalogs"`
	IsActive     bool                        `json:"isActive"`
}

type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	GroupID   string     `json:"groupId,omitempty"`
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Excluded  []string   `json:"excluded"`
	IsActive  bool       `json:"isActive"`
}

type outcomeView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type batchView struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Total     int           `json:"total"`
	Outcomes  []outcomeView `json:"outcomes"`
}

type reportView struct {
	UserID       string   `json:"userId"`
	State        string   `json:"state"`
	Synced       bool     `json:"synced"`
	OrderMatches bool     `json:"orderMatches"`
	Missing      []string `json:"missing"`
	Extra        []string `json:"extra"`
	Push         []string `json:"push"`
}

type reloadView struct {
	Hash string      `json:"hash"`
	Diff reload.Diff `json:"diff"`
}

func viewAddon(a *models.Addon) addonView {
	return addonView{
		ID:           a.ID,
		Name:         a.Name,
		ManifestHash: a.ManifestHash,
		Resources:    a.Resources,
		Catalogs:     a.Catalogs,
		IsActive:     a.IsActive,
	}
}

func viewUser(u *models.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		GroupID:   u.GroupID,
		Connected: u.AuthKey != "",
		ExpiresAt: u.ExpiresAt,
		Excluded:  u.ExcludedAddons,
		IsActive:  u.IsActive,
	}
}

func viewOutcome(o services.Outcome) outcomeView {
	return outcomeView{ID: o.ID, Name: o.Name, Status: string(o.Status), Reason: o.Reason}
}

func viewBatch(b *services.BatchResult) batchView {
	v := batchView{Succeeded: b.Succeeded, Failed: b.Failed, Skipped: b.Skipped, Total: b.Total, Outcomes: []outcomeView{}}
	for _, o := range b.Outcomes {
		v.Outcomes = append(v.Outcomes, viewOutcome(o))
	}
	return v
}

func urls(list []models.RemoteAddon) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.TransportURL)
	}
	return out
}

func viewReport(r *services.UserReport) reportView {
	v := reportView{UserID: r.UserID, State: string(r.State)}
	if r.Plan != nil {
		v.Synced = r.Plan.Synced
		v.OrderMatches = r.Plan.OrderMatches
		v.Missing = urls(r.Plan.Missing)
		v.Extra = urls(r.Plan.Extra)
		v.Push = urls(r.Plan.Push)
	}
	return v
}

// call decodes req, resolves the caller's account and runs fn.
func (s *GRPCServer) call(ctx context.Context, req *structpb.Struct, fn func(accountID string, in request) (any, error)) (*structpb.Struct, error) {
	accountID, err := accountFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in request
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	out, err := fn(accountID, in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(out)
}

type empty struct{}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in request
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	acc, err := s.services.Sessions.Register(ctx, in.Email, in.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "Registered", "account_id", acc.ID)
	return encode(accountView{ID: acc.ID, Email: acc.Email})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in request
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	token, err := s.services.Sessions.Login(ctx, in.Email, in.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(map[string]string{"accessToken": token})
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, _ request) (any, error) {
		s.services.Sessions.Logout(ctx, accountID)
		return empty{}, nil
	})
}

func (s *GRPCServer) CreateGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		g, err := s.services.Groups.CreateGroup(ctx, accountID, in.Name)
		if err != nil {
			return nil, err
		}
		return groupView{ID: g.ID, Name: g.Name}, nil
	})
}

func (s *GRPCServer) ListGroups(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, _ request) (any, error) {
		groups, err := s.services.Groups.ListGroups(ctx, accountID)
		if err != nil {
			return nil, err
		}
		out := make([]groupView, 0, len(groups))
		for _, g := range groups {
			out = append(out, groupView{ID: g.ID, Name: g.Name})
		}
		return map[string]any{"groups": out}, nil
	})
}

func (s *GRPCServer) AttachAddon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"groupId": in.GroupID, "addonId": in.AddonID}); err != nil {
			return nil, err
		}
		pos, err := s.services.Groups.AttachAddon(ctx, accountID, in.GroupID, in.AddonID)
		if err != nil {
			return nil, err
		}
		return map[string]int{"position": pos}, nil
	})
}

func (s *GRPCServer) DetachAddon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"groupId": in.GroupID, "addonId": in.AddonID}); err != nil {
			return nil, err
		}
		return empty{}, s.services.Groups.DetachAddon(ctx, accountID, in.GroupID, in.AddonID)
	})
}

func (s *GRPCServer) ReorderGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"groupId": in.GroupID}); err != nil {
			return nil, err
		}
		return empty{}, s.services.Groups.Reorder(ctx, accountID, in.GroupID, in.AddonIDs)
	})
}

func (s *GRPCServer) CreateAddon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		a, err := s.services.Addons.CreateAddon(ctx, accountID, in.Name, in.ManifestURL)
		if err != nil {
			return nil, err
		}
		return viewAddon(a), nil
	})
}

func (s *GRPCServer) UpdateSelection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"addonId": in.AddonID}); err != nil {
			return nil, err
		}
		a, err := s.services.Addons.UpdateSelection(ctx, accountID, in.AddonID, in.Selection)
		if err != nil {
			return nil, err
		}
		return viewAddon(a), nil
	})
}

func (s *GRPCServer) DeleteAddon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"addonId": in.AddonID}); err != nil {
			return nil, err
		}
		return empty{}, s.services.Addons.DeleteAddon(ctx, accountID, in.AddonID)
	})
}

func (s *GRPCServer) ReloadAddon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"addonId": in.AddonID}); err != nil {
			return nil, err
		}
		res, err := s.services.Addons.ReloadAddon(ctx, accountID, in.AddonID)
		if err != nil {
			return nil, err
		}
		return reloadView{Hash: res.Hash, Diff: res.Diff}, nil
	})
}

func (s *GRPCServer) ReloadGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"groupId": in.GroupID}); err != nil {
			return nil, err
		}
		b, err := s.services.Addons.ReloadGroup(ctx, accountID, in.GroupID)
		if err != nil {
			return nil, err
		}
		return viewBatch(b), nil
	})
}

func (s *GRPCServer) ReloadAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, _ request) (any, error) {
		b, err := s.services.Addons.ReloadAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return viewBatch(b), nil
	})
}

func (s *GRPCServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		u, err := s.services.Users.CreateUser(ctx, accountID, services.NewUser{
			Username:  in.Username,
			GroupID:   in.GroupID,
			AuthKey:   in.AuthKey,
			ExpiresAt: in.ExpiresAt,
		})
		if err != nil {
			return nil, err
		}
		return viewUser(u), nil
	})
}

func (s *GRPCServer) ListUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, _ request) (any, error) {
		users, err := s.services.Users.ListUsers(ctx, accountID)
		if err != nil {
			return nil, err
		}
		out := make([]userView, 0, len(users))
		for _, u := range users {
			out = append(out, viewUser(u))
		}
		return map[string]any{"users": out}, nil
	})
}

func (s *GRPCServer) SetProtected(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"userId": in.UserID}); err != nil {
			return nil, err
		}
		return empty{}, s.services.Users.SetProtected(ctx, accountID, in.UserID, in.Protected)
	})
}

func (s *GRPCServer) SetExcluded(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"userId": in.UserID}); err != nil {
			return nil, err
		}
		return empty{}, s.services.Users.SetExcluded(ctx, accountID, in.UserID, in.AddonIDs)
	})
}

func (s *GRPCServer) UserStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"userId": in.UserID}); err != nil {
			return nil, err
		}
		r, err := s.services.Sync.UserStatus(ctx, accountID, in.UserID)
		if err != nil {
			return nil, err
		}
		return viewReport(r), nil
	})
}

func (s *GRPCServer) SyncUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"userId": in.UserID}); err != nil {
			return nil, err
		}
		o, err := s.services.Sync.SyncUser(ctx, accountID, in.UserID)
		if err != nil {
			return nil, err
		}
		return viewOutcome(o), nil
	})
}

func (s *GRPCServer) SyncGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, in request) (any, error) {
		if err := required(map[string]string{"groupId": in.GroupID}); err != nil {
			return nil, err
		}
		b, err := s.services.Sync.SyncGroup(ctx, accountID, in.GroupID)
		if err != nil {
			return nil, err
		}
		return viewBatch(b), nil
	})
}

func (s *GRPCServer) SyncAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, req, func(accountID string, _ request) (any, error) {
		b, err := s.services.Sync.SyncAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return viewBatch(b), nil
	})
}
