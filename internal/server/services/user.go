// Package services contains server-side business logic shared by the gRPC
// and HTTP transports. UserService composes the authenticator, the session
// manager and the access token envelope.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Authenticator checks and creates credentials.
type Authenticator interface {
	Signup(ctx context.Context, username, password string, tier kdf.Tier) (int64, error)
	Login(ctx context.Context, username, password string) (int64, error)
}

// SessionManager owns session lifetime.
type SessionManager interface {
	Create(userID int64, userName string) (*models.Session, error)
	Resolve(id string) (*models.Session, error)
	Destroy(id string)
}

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	UserID      int64
	UserName    string
	SessionID   string
	AccessToken string
	// ExpiresAt is zero when sessions do not expire.
	ExpiresAt time.Time
}

// UserService provides the user-facing operations:
// - Register: create an account on a cost tier
// - Login: verify a password and start a session
// - Logout: end the session behind a token
// - Authenticate: resolve a token to its live session
type UserService struct {
	authn     Authenticator
	sessions  SessionManager
	jwtSecret []byte
	log       logging.Logger
}

func NewUserService(a Authenticator, s SessionManager, secretKey string, log logging.Logger) *UserService {
	return &UserService{
		authn:     a,
		sessions:  s,
		jwtSecret: []byte(secretKey),
		log:       log.With("module", "users"),
	}
}

// Register creates an account and returns its id. A non-zero id together
// with an error wrapping common.ErrPersistenceWarning means the account
// exists but was not durably saved.
func (s *UserService) Register(ctx context.Context, username, password string, tier kdf.Tier) (int64, error) {
	id, err := s.authn.Signup(ctx, username, password, tier)
	if err != nil && !errors.Is(err, common.ErrPersistenceWarning) {
		return 0, err
	}
	return id, err
}

// Login verifies the password and starts a session for the user.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	id, err := s.authn.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(id, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	token, err := auth.GenerateToken(sess, s.jwtSecret)
	if err != nil {
		s.sessions.Destroy(sess.ID)
		return nil, fmt.Errorf("%w: sign token: %w", common.ErrorInternal, err)
	}

	s.log.Info(ctx, "user logged in", "user_id", id)
	return &LoginResult{
		UserID:      id,
		UserName:    username,
		SessionID:   sess.ID,
		AccessToken: token,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

// Logout ends the session named by token. Unknown, expired and malformed
// tokens are ignored.
func (s *UserService) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil
	}
	s.sessions.Destroy(claims.SessionID)
	s.log.Debug(ctx, "session ended")
	return nil
}

// Authenticate returns the live session behind token. Any failure yields an
// error wrapping common.ErrInvalidSession.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, common.ErrInvalidSession
	}

	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidSession, err)
	}

	sess, err := s.sessions.Resolve(claims.SessionID)
	if err != nil {
		return nil, err
	}

	uid, err := claims.UserID()
	if err != nil || uid != sess.UserID {
		return nil, common.ErrInvalidSession
	}
	return sess, nil
}
