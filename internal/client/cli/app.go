// Package cli implements the gophauth command-line client: signup, login,
// logout and whoami against the gRPC API, with the access token cached on
// disk between invocations.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/tokens"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/spf13/cobra"
)

// Service is the part of the gRPC client the commands use.
type Service interface {
	Signup(ctx context.Context, userName string, password []byte, tier string) (*client.SignupResult, error)
	Login(ctx context.Context, userName string, password []byte) (*client.LoginResult, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*client.Identity, error)
	SetAccessToken(token string)
	Close() error
}

type App struct {
	config     *config.Config
	reader     *bufio.Reader
	newService func(cfg *config.Config) (Service, error)

	service Service
	tokens  *tokens.Store
}

func NewApp(cfg *config.Config, in io.Reader) *App {
	return &App{
		config: cfg,
		reader: bufio.NewReader(in),
		newService: func(cfg *config.Config) (Service, error) {
			return client.NewGRPCClient(cfg.ServerEndpointAddr)
		},
	}
}

// Execute loads the client config and runs the command named by os.Args.
// The JSON file given with -c/--config is applied before flags are parsed,
// so flags win over the file.
func Execute() error {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	if path := flagx.JSONConfigPath(os.Args[1:]); path != "" {
		if err := cfg.LoadJSON(path); err != nil {
			return err
		}
	}

	return NewApp(cfg, os.Stdin).RootCmd().Execute()
}

// RootCmd builds the command tree.
func (a *App) RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gophauth",
		Short:         "Sign up, log in and check your session on a gophauth server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(a.config)
			if err != nil {
				return err
			}
			a.service = svc
			a.tokens = tokens.NewStore(a.config.TokenDir)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.service == nil {
				return nil
			}
			return a.service.Close()
		},
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVarP(&a.config.ServerEndpointAddr, "addr", "a", a.config.ServerEndpointAddr, "server gRPC address")
	root.PersistentFlags().StringVar(&a.config.TokenDir, "token-dir", a.config.TokenDir, "directory for the cached access token")
	root.PersistentFlags().DurationVar(&a.config.RequestTimeout, "timeout", a.config.RequestTimeout, "per-request timeout")

	root.AddCommand(a.signupCmd(), a.loginCmd(), a.logoutCmd(), a.whoamiCmd())
	return root
}

func (a *App) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
