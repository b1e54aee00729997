package httpapi

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"condominio.app/internal/auth"
	"condominio.app/internal/obs"
)

// HealthServer implements grpc.health.v1 on top of the readiness probe.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer

	readiness readinessChecker
}

func NewHealthServer(r readinessChecker) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	return &HealthServer{readiness: r}
}

// Check reports SERVING when the readiness probe passes. Only the empty
// service name and serviceName are known.
func (s *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.From(ctx).Warn("grpc readiness check failed", zap.Error(err))
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	obs.SetReady(true)
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

// UnaryAuthInterceptor resolves the "authorization" metadata to the current
// identity. Methods under a public prefix skip authentication.
func UnaryAuthInterceptor(svc *auth.Service, public ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		for _, p := range public {
			if strings.HasPrefix(info.FullMethod, p) {
				return handler(ctx, req)
			}
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				header = v[0]
			}
		}
		token, err := extractBearerToken(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		ident, err := svc.Authenticate(ctx, token)
		if err != nil {
			return nil, grpcError(ctx, err)
		}
		ctx = auth.ContextWithIdentity(ctx, ident)
		ctx = auth.ContextWithToken(ctx, token)
		ctx = obs.WithLogger(ctx, obs.From(ctx).With(obs.UserID(ident.ID)))
		return handler(ctx, req)
	}
}

func grpcError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "could not validate credentials")
	case errors.Is(err, auth.ErrInactiveAccount):
		return status.Error(codes.PermissionDenied, "account is disabled")
	case errors.Is(err, auth.ErrRoleNotPermitted), errors.Is(err, auth.ErrNotOwner):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, auth.ErrUnavailable):
		obs.From(ctx).Error("identity store unavailable", zap.Error(err))
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		obs.From(ctx).Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// NewGRPCServer builds a server exposing the health service. Every other
// unary method requires a bearer token.
func NewGRPCServer(r readinessChecker, svc *auth.Service, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(svc, "/grpc.health.v1.Health/")))
	srv := grpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(srv, NewHealthServer(r))
	return srv
}
