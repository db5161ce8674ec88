package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type handler struct {
	users  UserService
	logger logging.Logger
}

var _ pb.AuthServiceServer = (*handler)(nil)

func (h *handler) Signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tier := kdf.TierFast
	if name := pb.String(req, pb.FieldTier); name != "" {
		t, err := kdf.ParseTier(name)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "unknown tier")
		}
		tier = t
	}

	username := pb.String(req, pb.FieldUserName)
	id, err := h.users.Register(ctx, username, pb.String(req, pb.FieldPassword), tier)

	out := map[string]any{pb.FieldUserID: id}
	switch {
	case errors.Is(err, common.ErrPersistenceWarning):
		out[pb.FieldWarning] = common.ErrPersistenceWarning.Error()
	case err != nil:
		return nil, h.toStatus(ctx, err)
	}

	return pb.NewMessage(out), nil
}

func (h *handler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := h.users.Login(ctx, pb.String(req, pb.FieldUserName), pb.String(req, pb.FieldPassword))
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	return pb.NewMessage(map[string]any{
		pb.FieldUserID:      res.UserID,
		pb.FieldUserName:    res.UserName,
		pb.FieldAccessToken: res.AccessToken,
		pb.FieldExpiresAt:   pb.FormatTime(res.ExpiresAt),
	}), nil
}

func (h *handler) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := h.users.Logout(ctx, accessTokenFromContext(ctx)); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &structpb.Struct{}, nil
}

func (h *handler) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess, ok := sessionFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	return pb.NewMessage(map[string]any{
		pb.FieldUserID:    sess.UserID,
		pb.FieldUserName:  sess.UserName,
		pb.FieldExpiresAt: pb.FormatTime(sess.ExpiresAt),
	}), nil
}

func (h *handler) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return pb.NewMessage(map[string]any{pb.FieldStatus: "OK"}), nil
}

// toStatus maps service errors to gRPC statuses. Internal detail is logged
// and never sent to the client.
func (h *handler) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, "username and password are required")
	case errors.Is(err, common.ErrUnknownTier):
		return status.Error(codes.InvalidArgument, "unknown tier")
	case errors.Is(err, common.ErrUsernameTaken):
		return status.Error(codes.AlreadyExists, "username taken")
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrInvalidSession):
		return status.Error(codes.Unauthenticated, "unauthorized")
	}

	h.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
