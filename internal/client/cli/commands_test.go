package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	signupErr error
	loginErr  error
	logoutErr error
	whoamiErr error
	warning   string

	gotUser     string
	gotPassword string
	gotTier     string
	token       string
	loggedOut   bool
	closed      bool
}

func (f *fakeService) Signup(ctx context.Context, userName string, password []byte, tier string) (*client.SignupResult, error) {
	f.gotUser, f.gotPassword, f.gotTier = userName, string(password), tier
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &client.SignupResult{UserID: 7, Warning: f.warning}, nil
}

func (f *fakeService) Login(ctx context.Context, userName string, password []byte) (*client.LoginResult, error) {
	f.gotUser, f.gotPassword = userName, string(password)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &client.LoginResult{
		Identity:    client.Identity{UserID: 7, UserName: userName},
		AccessToken: "tok-" + userName,
	}, nil
}

func (f *fakeService) Logout(ctx context.Context) error {
	f.loggedOut = true
	return f.logoutErr
}

func (f *fakeService) WhoAmI(ctx context.Context) (*client.Identity, error) {
	if f.whoamiErr != nil {
		return nil, f.whoamiErr
	}
	return &client.Identity{UserID: 7, UserName: "alice", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeService) SetAccessToken(token string) { f.token = token }
func (f *fakeService) Close() error                { f.closed = true; return nil }

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func() ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func run(t *testing.T, svc *fakeService, dir, stdin string, args ...string) (string, error) {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.TokenDir = dir

	app := NewApp(cfg, strings.NewReader(stdin))
	app.newService = func(*config.Config) (Service, error) { return svc, nil }

	root := app.RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestSignup(t *testing.T) {
	stubPassword(t, "secret")

	t.Run("fast by default", func(t *testing.T) {
		svc := &fakeService{}
		out, err := run(t, svc, t.TempDir(), "", "signup", "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", svc.gotUser)
		assert.Equal(t, "secret", svc.gotPassword)
		assert.Equal(t, "fast", svc.gotTier)
		assert.Contains(t, out, "Account created, id 7")
		assert.True(t, svc.closed)
	})

	t.Run("slow flag and prompted username", func(t *testing.T) {
		svc := &fakeService{}
		out, err := run(t, svc, t.TempDir(), "bob\n", "signup", "--slow")
		require.NoError(t, err)
		assert.Equal(t, "bob", svc.gotUser)
		assert.Equal(t, "slow", svc.gotTier)
		assert.Contains(t, out, "Enter username")
	})

	t.Run("warning is shown", func(t *testing.T) {
		svc := &fakeService{warning: "account was not saved"}
		out, err := run(t, svc, t.TempDir(), "", "signup", "alice")
		require.NoError(t, err)
		assert.Contains(t, out, "Warning: account was not saved")
	})

	t.Run("taken", func(t *testing.T) {
		svc := &fakeService{signupErr: common.ErrUsernameTaken}
		_, err := run(t, svc, t.TempDir(), "", "signup", "alice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already taken")
	})
}

func TestLogin_CachesToken(t *testing.T) {
	stubPassword(t, "secret")
	dir := t.TempDir()

	svc := &fakeService{}
	out, err := run(t, svc, dir, "", "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	tok, err := tokens.NewStore(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", tok)
}

func TestLogin_Rejected(t *testing.T) {
	stubPassword(t, "wrong")
	dir := t.TempDir()

	svc := &fakeService{loginErr: client.ErrUnauthorized}
	_, err := run(t, svc, dir, "", "login", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid username or password")

	tok, err := tokens.NewStore(dir).Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestWhoAmI(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		svc := &fakeService{}
		out, err := run(t, svc, t.TempDir(), "", "whoami")
		require.NoError(t, err)
		assert.Contains(t, out, "Not logged in")
		assert.Empty(t, svc.token)
	})

	t.Run("logged in", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, tokens.NewStore(dir).Save("tok"))

		svc := &fakeService{}
		out, err := run(t, svc, dir, "", "whoami")
		require.NoError(t, err)
		assert.Equal(t, "tok", svc.token)
		assert.Contains(t, out, "alice (id 7)")
	})

	t.Run("stale token is cleared", func(t *testing.T) {
		dir := t.TempDir()
		store := tokens.NewStore(dir)
		require.NoError(t, store.Save("tok"))

		svc := &fakeService{whoamiErr: client.ErrUnauthorized}
		out, err := run(t, svc, dir, "", "whoami")
		require.NoError(t, err)
		assert.Contains(t, out, "Not logged in")

		tok, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("transport error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, tokens.NewStore(dir).Save("tok"))

		svc := &fakeService{whoamiErr: client.ErrUnavailable}
		_, err := run(t, svc, dir, "", "whoami")
		require.ErrorIs(t, err, client.ErrUnavailable)
	})
}

func TestLogout(t *testing.T) {
	t.Run("clears token", func(t *testing.T) {
		dir := t.TempDir()
		store := tokens.NewStore(dir)
		require.NoError(t, store.Save("tok"))

		svc := &fakeService{}
		out, err := run(t, svc, dir, "", "logout")
		require.NoError(t, err)
		assert.True(t, svc.loggedOut)
		assert.Equal(t, "tok", svc.token)
		assert.Contains(t, out, "Logged out")

		tok, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("not logged in", func(t *testing.T) {
		svc := &fakeService{}
		out, err := run(t, svc, t.TempDir(), "", "logout")
		require.NoError(t, err)
		assert.False(t, svc.loggedOut)
		assert.Contains(t, out, "Not logged in")
	})

	t.Run("server error keeps token", func(t *testing.T) {
		dir := t.TempDir()
		store := tokens.NewStore(dir)
		require.NoError(t, store.Save("tok"))

		svc := &fakeService{logoutErr: errors.New("boom")}
		_, err := run(t, svc, dir, "", "logout")
		require.Error(t, err)

		tok, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	})
}

func TestRootFlags(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	app := NewApp(cfg, strings.NewReader(""))
	var got *config.Config
	app.newService = func(c *config.Config) (Service, error) { got = c; return &fakeService{}, nil }

	root := app.RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--addr", "example:9000", "--timeout", "5s", "--token-dir", t.TempDir(), "whoami"})
	require.NoError(t, root.Execute())

	require.NotNil(t, got)
	assert.Equal(t, "example:9000", got.ServerEndpointAddr)
	assert.Equal(t, 5*time.Second, got.RequestTimeout)
}
