// Package grpc exposes UserService as the gophauth.v1.AuthService gRPC
// service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

// UserService is what the handlers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, username, password string, tier kdf.Tier) (int64, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

type GRPCServer struct {
	address string
	users   UserService
	logger  logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, us UserService) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		users:   us,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.sessionInterceptor))
	pb.RegisterAuthServiceServer(srv, &handler{users: s.users, logger: s.logger})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
