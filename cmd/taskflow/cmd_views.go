package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/taskflow/internal/model"
)

func newViewsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved list views",
		Long: `Saved views are named filter and sort combinations kept in the local
database. Save one with "tasks list --save-view" or the w key in the UI.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved views",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				views, err := store.ListViews(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tFILTER\tSORT\tUPDATED")
				for _, view := range views {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", view.Name, view.Filter, view.Sort, view.UpdatedAt.Local().Format(model.DeadlineLayout))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:     "delete <name>",
			Aliases: []string{"rm"},
			Short:   "Delete a saved view",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				if err := store.DeleteView(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted view %q\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newActivityCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show task changes made from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			entries, err := store.ListActivity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tACTION\tTASK\tOUTCOME\tMESSAGE")
			for _, entry := range entries {
				subject := entry.TaskName
				if subject == "" {
					subject = entry.TaskID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", entry.CreatedAt.Local().Format(model.DeadlineLayout), entry.Action, subject, entry.Outcome, entry.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
