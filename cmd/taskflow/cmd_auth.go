package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errAuthNotConfigured = errors.New("sign-in needs auth.client_id, auth.auth_url and auth.token_url in the config file")

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Long: `Sign in through the hosted identity provider.

A local callback listener is started on auth.redirect_port and the sign-in URL
is printed. Tokens are stored in the token file and refreshed on demand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.oauth == nil {
				return errAuthNotConfigured
			}
			err := a.oauth.Login(cmd.Context(), a.cfg.Auth.RedirectPort, func(url string) {
				fmt.Fprintf(a.out, "Open this URL in your browser to sign in:\n\n  %s\n\n", url)
			})
			if err != nil {
				return err
			}
			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", sess.Claims.Email, sess.Role)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if a.oauth == nil {
				return errAuthNotConfigured
			}
			if err := a.oauth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Email:    %s\n", sess.Claims.Email)
			fmt.Fprintf(a.out, "Username: %s\n", sess.Claims.Username)
			fmt.Fprintf(a.out, "Role:     %s\n", sess.Role)
			if !sess.Claims.Expiry.IsZero() {
				fmt.Fprintf(a.out, "Expires:  %s\n", sess.Claims.Expiry.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}
