// Package web serves the browser-facing pages: signup and login forms, the
// private welcome page and logout. The session travels in an HttpOnly
// cookie holding the same access token the gRPC API hands out.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserService is what the page handlers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, username, password string, tier kdf.Tier) (int64, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

type Server struct {
	address string
	users   UserService
	logger  logging.Logger
	engine  *gin.Engine
}

func NewServer(address string, l logging.Logger, us UserService) *Server {
	s := &Server{
		address: address,
		users:   us,
		logger:  l.With("module", "http_server"),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), s.recovery())
	r.SetHTMLTemplate(pages)

	r.GET("/healthz", handleHealth)

	r.GET("/signup", s.signupPage)
	r.GET("/login", s.loginPage)
	r.POST("/signup/fast", s.signup(kdf.TierFast))
	r.POST("/signup/slow", s.signup(kdf.TierSlow))
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)
	r.POST("/logout", s.logout)
	r.GET("/", s.home)

	return r
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
