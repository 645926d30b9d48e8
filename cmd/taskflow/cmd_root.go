package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Terminal client for the team task backend",
		Long: `taskflow lists, creates and completes team tasks from the terminal.

Run it without a subcommand to open the interactive UI. Admins can also
manage users and see every task; regular users see the tasks assigned to them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
		RunE:              a.runTUI,
		Args:              cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file path (default: <user config dir>/taskflow/config.yaml)")
	flags.StringVar(&a.token, "token", "", "id token to use instead of the stored login (or set TASKFLOW_ID_TOKEN)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newTUICmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newTasksCmd(a),
		newUsersCmd(a),
		newViewsCmd(a),
		newActivityCmd(a),
	)
	return root
}
