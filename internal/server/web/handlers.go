package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/gin-gonic/gin"
)

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gophauth",
	})
}

func (s *Server) signupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup", nil)
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login", nil)
}

func (s *Server) signup(tier kdf.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username := c.PostForm("username")

		_, err := s.users.Register(ctx, username, c.PostForm("password"), tier)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrPersistenceWarning):
			s.logger.Warn(ctx, "signup not persisted", "error", err)
		case errors.Is(err, common.ErrUsernameTaken):
			c.String(http.StatusBadRequest, "Username already exists.")
			return
		case errors.Is(err, common.ErrValidation):
			c.String(http.StatusBadRequest, "Username and password are required.")
			return
		default:
			s.logger.Error(ctx, "signup failed", "error", err)
			c.String(http.StatusInternalServerError, "Error creating user.")
			return
		}

		c.Redirect(http.StatusFound, "/login")
	}
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()

	res, err := s.users.Login(ctx, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.Redirect(http.StatusFound, "/login")
			return
		}
		s.logger.Error(ctx, "login failed", "error", err)
		c.String(http.StatusInternalServerError, "Something broke!")
		return
	}

	maxAge := 0
	if !res.ExpiresAt.IsZero() {
		maxAge = int(time.Until(res.ExpiresAt).Seconds())
	}
	setSessionCookie(c, res.AccessToken, maxAge)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(common.SessionCookieName); err == nil {
		_ = s.users.Logout(c.Request.Context(), token)
	}
	setSessionCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) home(c *gin.Context) {
	token, err := c.Cookie(common.SessionCookieName)
	if err != nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	sess, err := s.users.Authenticate(c.Request.Context(), token)
	if err != nil {
		setSessionCookie(c, "", -1)
		c.Redirect(http.StatusFound, "/login")
		return
	}

	c.HTML(http.StatusOK, "home", gin.H{"UserName": sess.UserName})
}

// setSessionCookie writes the session cookie. maxAge 0 makes it a browser
// session cookie; a negative maxAge deletes it.
func setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.SessionCookieName, value, maxAge, "/", "", gin.Mode() == gin.ReleaseMode, true)
}
