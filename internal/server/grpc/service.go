package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the control service.
const ServiceName = "addonkeeper.v1.Control"

// FullMethod returns the gRPC path of a control method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ControlServer is implemented by *GRPCServer. Every method takes and
// returns a structpb.Struct.
type ControlServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGroups(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AttachAddon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetachAddon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReorderGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateAddon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSelection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAddon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadAddon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetProtected(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetExcluded(context.Context, *structpb.Struct) (*structpb.Struct, error)

	UserStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type methodFunc func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn methodFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(ControlServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ControlServiceDesc describes the control service for grpc.Server.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ControlServer.Register),
		unary("Login", ControlServer.Login),
		unary("Logout", ControlServer.Logout),
		unary("CreateGroup", ControlServer.CreateGroup),
		unary("ListGroups", ControlServer.ListGroups),
		unary("AttachAddon", ControlServer.AttachAddon),
		unary("DetachAddon", ControlServer.DetachAddon),
		unary("ReorderGroup", ControlServer.ReorderGroup),
		unary("CreateAddon", ControlServer.CreateAddon),
		unary("UpdateSelection", ControlServer.UpdateSelection),
		unary("DeleteAddon", ControlServer.DeleteAddon),
		unary("ReloadAddon", ControlServer.ReloadAddon),
		unary("ReloadGroup", ControlServer.ReloadGroup),
		unary("ReloadAccount", ControlServer.ReloadAccount),
		unary("CreateUser", ControlServer.CreateUser),
		unary("ListUsers", ControlServer.ListUsers),
		unary("SetProtected", ControlServer.SetProtected),
		unary("SetExcluded", ControlServer.SetExcluded),
		unary("UserStatus", ControlServer.UserStatus),
		unary("SyncUser", ControlServer.SyncUser),
		unary("SyncGroup", ControlServer.SyncGroup),
		unary("SyncAccount", ControlServer.SyncAccount),
	},
	Streams: []grpc.StreamDesc{},
}

// Invoke calls a control method over conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
