package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/dispatch"
	"github.com/Joseda-hg/taskflow/internal/list"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/session"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and change tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(a),
		newTasksAddCmd(a),
		newTasksUpdateCmd(a),
		newTasksCompleteCmd(a),
		newTasksDeleteCmd(a),
	)
	return cmd
}

// dispatcher records activity in the local store when it can be opened.
func (a *app) dispatcher(client *api.Client, refresher dispatch.Refresher, notes dispatch.Notifier, sess session.Session) *dispatch.Dispatcher {
	opts := []dispatch.Option{dispatch.WithLogger(a.logger)}
	if store, err := a.openStore(); err == nil {
		opts = append(opts, dispatch.WithRecorder(store))
	} else {
		a.logger.Warn("activity log unavailable", zap.Error(err))
	}
	return dispatch.New(client, refresher, notes, sess.Role, sess.Claims.Email, opts...)
}

func newTasksListCmd(a *app) *cobra.Command {
	var (
		status, name, responsibility string
		sortValue, viewName, saveAs  string
		allPages                     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible to you",
		Long: `List tasks. Admins see every task, regular users see the tasks they are
responsible for. Filters and sort run on the backend; --all follows the
pagination cursor until the last page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter := model.Filter{}
			directive := model.DefaultSort

			if viewName != "" {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				view, err := store.GetViewByName(ctx, viewName)
				if err != nil {
					return err
				}
				filter = view.Filter.Clone()
				directive = view.Sort
			}
			if status != "" {
				if !model.Status(status).Valid() {
					return fmt.Errorf("%w: unknown status %q", model.ErrInvalid, status)
				}
				filter = filter.With(model.FilterStatus, status)
			}
			if cmd.Flags().Changed("name") {
				filter = filter.With(model.FilterName, name)
			}
			if cmd.Flags().Changed("responsibility") {
				filter = filter.With(model.FilterResponsibility, responsibility)
			}
			if cmd.Flags().Changed("sort") {
				parsed, err := model.ParseSort(sortValue)
				if err != nil {
					return err
				}
				directive = parsed
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}

			notes := consoleNotifier{out: a.out, errOut: a.errOut}
			coordinator := list.New(client, notes,
				list.WithLogger(a.logger),
				list.WithBackendScoped(a.cfg.BackendScoped),
				list.WithCriteria(filter, directive),
			)
			defer coordinator.Close()

			coordinator.LoadInitial(sess.Role)
			coordinator.Wait()
			state := coordinator.Snapshot()
			for allPages && state.Err == nil && state.HasMore() {
				if err := coordinator.LoadMore(); err != nil {
					break
				}
				coordinator.Wait()
				state = coordinator.Snapshot()
			}
			if state.Err != nil {
				return reportedError{state.Err}
			}

			writeTasks(a.out, state.Tasks)
			if state.HasMore() {
				fmt.Fprintln(a.errOut, "More tasks available, pass --all to load every page")
			}

			if saveAs != "" {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				saved, err := store.SaveView(ctx, model.View{Name: saveAs, Filter: state.Filter, Sort: state.Sort})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "Saved view %q\n", saved.Name)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&status, "status", "", "only tasks with this status (open, completed, expired)")
	flags.StringVar(&name, "name", "", "only tasks whose name contains this text")
	flags.StringVar(&responsibility, "responsibility", "", "only tasks assigned to this email")
	flags.StringVar(&sortValue, "sort", model.DefaultSort.String(), "sort as field:direction, e.g. name:asc or deadline:desc")
	flags.BoolVar(&allPages, "all", false, "load every page")
	flags.StringVar(&viewName, "view", "", "start from a saved view")
	flags.StringVar(&saveAs, "save-view", "", "save the filter and sort under this name")
	return cmd
}

func writeTasks(w io.Writer, tasks []model.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tRESPONSIBLE\tDEADLINE")
	for _, task := range tasks {
		deadline := "n/a"
		if !task.Deadline.IsZero() {
			deadline = task.Deadline.Local().Format(model.DeadlineLayout)
		}
		status := task.Status
		if status == "" {
			status = model.StatusOpen
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Name, status, task.Responsibility, deadline)
	}
	_ = tw.Flush()
}

type taskFields struct {
	name, description, responsibility, deadline, comment, status string
}

func (f *taskFields) bind(cmd *cobra.Command, withStatus bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "task name")
	flags.StringVar(&f.description, "description", "", "task description")
	flags.StringVar(&f.responsibility, "responsibility", "", "email of the responsible user")
	flags.StringVar(&f.deadline, "deadline", "", `deadline as "YYYY-MM-DD HH:MM" or "YYYY-MM-DD"`)
	flags.StringVar(&f.comment, "comment", "", "free-form comment")
	if withStatus {
		flags.StringVar(&f.status, "status", "", "task status (open, completed, expired)")
	}
}

func newTasksAddCmd(a *app) *cobra.Command {
	var fields taskFields
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task (admins only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deadline, err := model.ParseDeadline(fields.deadline, time.Local)
			if err != nil {
				return err
			}
			input := model.TaskInput{
				Name:           fields.name,
				Description:    fields.description,
				Responsibility: fields.responsibility,
				Deadline:       deadline,
				Comment:        fields.comment,
			}

			d, err := a.taskDispatcher(cmd.Context())
			if err != nil {
				return err
			}
			task, err := d.Add(cmd.Context(), input)
			if err != nil {
				return reportedError{err}
			}
			if task.ID != "" {
				fmt.Fprintf(a.out, "ID: %s\n", task.ID)
			}
			return nil
		},
	}
	fields.bind(cmd, false)
	return cmd
}

func newTasksUpdateCmd(a *app) *cobra.Command {
	var fields taskFields
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task (admins only)",
		Long:  "Change fields of a task. Only the flags given are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			task, err := a.findTask(ctx, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				task.Name = strings.TrimSpace(fields.name)
			}
			if flags.Changed("description") {
				task.Description = strings.TrimSpace(fields.description)
			}
			if flags.Changed("responsibility") {
				task.Responsibility = strings.TrimSpace(fields.responsibility)
			}
			if flags.Changed("comment") {
				task.Comment = strings.TrimSpace(fields.comment)
			}
			if flags.Changed("status") {
				task.Status = model.Status(strings.TrimSpace(fields.status))
			}
			if flags.Changed("deadline") {
				deadline, err := model.ParseDeadline(fields.deadline, time.Local)
				if err != nil {
					return err
				}
				task.Deadline = deadline.UTC()
			}

			d, err := a.taskDispatcher(ctx)
			if err != nil {
				return err
			}
			if err := d.Update(ctx, task); err != nil {
				return reportedError{err}
			}
			return nil
		},
	}
	fields.bind(cmd, true)
	return cmd
}

func newTasksCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task completed",
		Long:  "Mark a task completed. Admins can complete any task, other users only their own.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			task, err := a.findTask(ctx, args[0])
			if err != nil {
				return err
			}
			d, err := a.taskDispatcher(ctx)
			if err != nil {
				return err
			}
			if err := d.Complete(ctx, task); err != nil {
				return reportedError{err}
			}
			return nil
		},
	}
}

func newTasksDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task (admins only)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.taskDispatcher(cmd.Context())
			if err != nil {
				return err
			}
			if err := d.Remove(cmd.Context(), args[0]); err != nil {
				return reportedError{err}
			}
			return nil
		},
	}
}

func (a *app) taskDispatcher(ctx context.Context) (*dispatch.Dispatcher, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	notes := consoleNotifier{out: a.out, errOut: a.errOut}
	return a.dispatcher(client, skipRefresh{}, notes, sess), nil
}

// findTask walks the pages visible to the caller until it meets id.
func (a *app) findTask(ctx context.Context, id string) (model.Task, error) {
	client, err := a.client()
	if err != nil {
		return model.Task{}, err
	}
	sess, err := a.session(ctx)
	if err != nil {
		return model.Task{}, err
	}

	scope := list.ScopeFor(sess.Role, a.cfg.BackendScoped)
	query := api.Query{Sort: model.DefaultSort}
	for {
		page, err := client.ListTasks(ctx, scope, query)
		if err != nil {
			return model.Task{}, err
		}
		for _, task := range page.Items {
			if task.ID == id {
				return task, nil
			}
		}
		if page.NextToken == nil || (query.NextToken != nil && *page.NextToken == *query.NextToken) {
			return model.Task{}, fmt.Errorf("task %s not found", id)
		}
		query.NextToken = page.NextToken
	}
}
