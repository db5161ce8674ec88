// Package client talks to the gophauth gRPC API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SignupResult is the outcome of a signup. Warning is set when the server
// created the account but could not save it durably.
type SignupResult struct {
	UserID  int64
	Warning string
}

// Identity describes a logged-in user.
type Identity struct {
	UserID    int64
	UserName  string
	ExpiresAt time.Time
}

// LoginResult carries the access token and who it belongs to.
type LoginResult struct {
	Identity
	AccessToken string
}

type GRPCClient struct {
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// NewGRPCClient connects lazily to endpoint. Extra dial options are
// appended after the insecure transport credentials.
func NewGRPCClient(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn, client: pb.NewAuthServiceClient(conn)}, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SetAccessToken sets the token sent with Logout and WhoAmI.
func (s *GRPCClient) SetAccessToken(token string) {
	s.accessToken = token
}

func (s *GRPCClient) Signup(ctx context.Context, userName string, password []byte, tier string) (*SignupResult, error) {
	resp, err := s.client.Signup(ctx, pb.NewMessage(map[string]any{
		pb.FieldUserName: userName,
		pb.FieldPassword: string(password),
		pb.FieldTier:     tier,
	}))
	if err != nil {
		return nil, s.mapError(err)
	}
	return &SignupResult{
		UserID:  pb.Int64(resp, pb.FieldUserID),
		Warning: pb.String(resp, pb.FieldWarning),
	}, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, password []byte) (*LoginResult, error) {
	resp, err := s.client.Login(ctx, pb.NewMessage(map[string]any{
		pb.FieldUserName: userName,
		pb.FieldPassword: string(password),
	}))
	if err != nil {
		return nil, s.mapError(err)
	}

	res := &LoginResult{
		Identity:    identityFrom(resp),
		AccessToken: pb.String(resp, pb.FieldAccessToken),
	}
	s.accessToken = res.AccessToken
	return res, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	_, err := s.client.Logout(withAccessToken(ctx, s.accessToken), &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}
	s.accessToken = ""
	return nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*Identity, error) {
	resp, err := s.client.WhoAmI(withAccessToken(ctx, s.accessToken), &structpb.Struct{})
	if err != nil {
		return nil, s.mapError(err)
	}
	id := identityFrom(resp)
	return &id, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx, &structpb.Struct{})
	return s.mapError(err)
}

func identityFrom(resp *structpb.Struct) Identity {
	return Identity{
		UserID:    pb.Int64(resp, pb.FieldUserID),
		UserName:  pb.String(resp, pb.FieldUserName),
		ExpiresAt: pb.Time(resp, pb.FieldExpiresAt),
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return common.ErrUsernameTaken
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
