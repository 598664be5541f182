// Package grpc exposes the control plane: account sessions, curation,
// reloads and syncs. Messages are structpb.Struct values; control calls
// other than Register and Login carry an access_token metadata entry.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Sessions interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, accountID string)
	Active(accountID string) bool
}

type Groups interface {
	CreateGroup(ctx context.Context, accountID, name string) (*models.Group, error)
	ListGroups(ctx context.Context, accountID string) ([]*models.Group, error)
	AttachAddon(ctx context.Context, accountID, groupID, addonID string) (int, error)
	DetachAddon(ctx context.Context, accountID, groupID, addonID string) error
	Reorder(ctx context.Context, accountID, groupID string, addonIDs []string) error
}

type Addons interface {
	CreateAddon(ctx context.Context, accountID, name, manifestURL string) (*models.Addon, error)
	UpdateSelection(ctx context.Context, accountID, addonID string, sel reload.Selection) (*models.Addon, error)
	DeleteAddon(ctx context.Context, accountID, addonID string) error
	ReloadAddon(ctx context.Context, accountID, addonID string) (*reload.Result, error)
	ReloadGroup(ctx context.Context, accountID, groupID string) (*services.BatchResult, error)
	ReloadAccount(ctx context.Context, accountID string) (*services.BatchResult, error)
}

type Users interface {
	CreateUser(ctx context.Context, accountID string, in services.NewUser) (*models.User, error)
	ListUsers(ctx context.Context, accountID string) ([]*models.User, error)
	SetProtected(ctx context.Context, accountID, userID string, protected []string) error
	SetExcluded(ctx context.Context, accountID, userID string, addonIDs []string) error
}

type Syncer interface {
	UserStatus(ctx context.Context, accountID, userID string) (*services.UserReport, error)
	SyncUser(ctx context.Context, accountID, userID string) (services.Outcome, error)
	SyncGroup(ctx context.Context, accountID, groupID string) (*services.BatchResult, error)
	SyncAccount(ctx context.Context, accountID string) (*services.BatchResult, error)
}

// Services bundles the business logic the control plane calls into.
type Services struct {
	Sessions Sessions
	Groups   Groups
	Addons   Addons
	Users    Users
	Sync     Syncer
}

type GRPCServer struct {
	address   string
	services  Services
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

func NewGRPCServer(address string, l logging.Logger, svc Services, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		services:  svc,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&ControlServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	return srv.Serve(lis)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "request failed", "method", info.FullMethod, "error", err, "elapsed", time.Since(start).String())
	} else {
		s.logger.Debug(ctx, "request served", "method", info.FullMethod, "elapsed", time.Since(start).String())
	}
	return resp, err
}
