package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/directory"
	"github.com/Joseda-hg/taskflow/internal/list"
	"github.com/Joseda-hg/taskflow/internal/notify"
	"github.com/Joseda-hg/taskflow/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive UI (the default command)",
		Args:  cobra.NoArgs,
		RunE:  a.runTUI,
	}
}

func (a *app) runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	client, err := a.client()
	if err != nil {
		return err
	}
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("local store unavailable, saved views and activity disabled", zap.Error(err))
		store = nil
	}

	notes := notify.New(a.cfg.NotificationDuration)
	coordinator := list.New(client, notes,
		list.WithLogger(a.logger),
		list.WithBackendScoped(a.cfg.BackendScoped),
	)
	defer coordinator.Close()

	a.logger.Info("starting ui",
		zap.String("email", sess.Claims.Email),
		zap.String("role", string(sess.Role)),
		zap.String("api", a.cfg.APIBaseURL),
	)
	return tui.Run(ctx, tui.Deps{
		Session:    sess,
		List:       coordinator,
		Dispatcher: a.dispatcher(client, coordinator, notes, sess),
		Directory:  directory.New(client, notes, sess.Role, a.logger),
		Notes:      notes,
		Store:      store,
		Logger:     a.logger,
	})
}
