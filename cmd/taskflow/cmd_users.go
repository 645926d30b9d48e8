package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/taskflow/internal/directory"
	"github.com/Joseda-hg/taskflow/internal/model"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and invite users (admins only)",
	}
	cmd.AddCommand(newUsersListCmd(a), newUsersInviteCmd(a))
	return cmd
}

func (a *app) openDirectory(cmd *cobra.Command) (*directory.Directory, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	sess, err := a.session(cmd.Context())
	if err != nil {
		return nil, err
	}
	notes := consoleNotifier{out: a.out, errOut: a.errOut}
	return directory.New(client, notes, sess.Role, a.logger), nil
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			if !dir.Allowed() {
				fmt.Fprintln(a.errOut, directory.DeniedMessage)
				return reportedError{directory.ErrAccessDenied}
			}
			users, err := dir.List(cmd.Context())
			if err != nil {
				return reportedError{err}
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tEMAIL\tSTATUS")
			for _, user := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", user.Username, user.Email, user.Status)
			}
			return tw.Flush()
		},
	}
}

func newUsersInviteCmd(a *app) *cobra.Command {
	var inv model.Invitation
	var role string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite a user with a temporary password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := model.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrInvalid, err)
			}
			inv.Role = parsed

			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			if err := dir.Invite(cmd.Context(), inv); err != nil {
				return reportedError{err}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&inv.Username, "username", "", "login name")
	flags.StringVar(&inv.Email, "email", "", "email address")
	flags.StringVar(&role, "role", string(model.RoleRegular), "role: regular or admin")
	flags.StringVar(&inv.Password, "password", "", "temporary password the user must change on first sign-in")
	return cmd
}
