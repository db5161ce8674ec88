package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/spf13/cobra"
)

// credentials reads the username (from args or a prompt) and the password.
func (a *App) credentials(args []string, w io.Writer) (string, []byte, error) {
	var userName string
	if len(args) > 0 {
		userName = args[0]
	} else {
		var err error
		if userName, err = GetSimpleText(a.reader, "Enter username", w); err != nil {
			return "", nil, err
		}
	}

	password, err := GetPassword(w)
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

func (a *App) signupCmd() *cobra.Command {
	var slow bool

	cmd := &cobra.Command{
		Use:   "signup [username]",
		Short: "Create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			userName, password, err := a.credentials(args, out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			tier := "fast"
			if slow {
				tier = "slow"
			}

			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			res, err := a.service.Signup(ctx, userName, password, tier)
			if err != nil {
				if errors.Is(err, common.ErrUsernameTaken) {
					return fmt.Errorf("username %q is already taken", userName)
				}
				return err
			}

			fmt.Fprintf(out, "Account created, id %d\n", res.UserID)
			if res.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&slow, "slow", false, "use the slow (more parallel) key derivation tier")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and cache the access token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			userName, password, err := a.credentials(args, out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			res, err := a.service.Login(ctx, userName, password)
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					return errors.New("invalid username or password")
				}
				return err
			}

			if err := a.tokens.Save(res.AccessToken); err != nil {
				return fmt.Errorf("cache token: %w", err)
			}
			fmt.Fprintf(out, "Logged in as %s\n", res.UserName)
			return nil
		},
	}
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			token, err := a.tokens.Load()
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			a.service.SetAccessToken(token)
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			if err := a.service.Logout(ctx); err != nil && !errors.Is(err, client.ErrUnauthorized) {
				return err
			}
			if err := a.tokens.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Logged out")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			token, err := a.tokens.Load()
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			a.service.SetAccessToken(token)
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			id, err := a.service.WhoAmI(ctx)
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					// session is gone server-side
					_ = a.tokens.Clear()
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				return err
			}

			fmt.Fprintf(out, "%s (id %d)\n", id.UserName, id.UserID)
			if !id.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Session expires %s\n", id.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
