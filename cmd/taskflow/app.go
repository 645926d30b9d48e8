package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/config"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/logging"
	"github.com/Joseda-hg/taskflow/internal/session"
)

// reportedError marks a failure the user has already been told about through
// a notification, so main exits without printing it again.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

// app carries the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	token      string
	verbose    bool

	out    io.Writer
	errOut io.Writer

	cfg      config.Config
	logger   *zap.Logger
	provider session.Provider
	oauth    *session.OAuthProvider

	store *db.Store
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.Resolve(path)
	if a.verbose {
		cfg.Log.Output = "stderr"
		cfg.Log.Format = "console"
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	token := strings.TrimSpace(a.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(config.EnvIDToken))
	}
	switch {
	case token != "":
		a.provider = session.StaticProvider{Token: token}
	case cfg.AuthConfigured():
		a.oauth = session.NewOAuthProvider(cfg.Auth, cfg.TokenPath, logger.Named("auth"))
		a.provider = a.oauth
	default:
		a.provider = session.StaticProvider{}
	}
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) {
	if a.store != nil {
		_ = a.store.DB.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) session(ctx context.Context) (session.Session, error) {
	s, err := a.provider.Session(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return session.Session{}, fmt.Errorf("%w: run `taskflow login` or pass --token", err)
	}
	return s, err
}

func (a *app) client() (*api.Client, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: a.cfg.RequestTimeout}
	return api.NewClient(a.cfg.APIBaseURL, httpClient, a.provider, a.logger), nil
}

func (a *app) openStore() (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg.DBPath != ":memory:" {
		if err := config.EnsureDir(a.cfg.DBPath); err != nil {
			return nil, err
		}
	}
	sqlDB, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.store = db.NewStore(sqlDB)
	return a.store, nil
}

// consoleNotifier prints notifications as lines: successes to out and errors
// to errOut.
type consoleNotifier struct {
	out    io.Writer
	errOut io.Writer
}

func (n consoleNotifier) Success(message string) {
	fmt.Fprintln(n.out, message)
}

func (n consoleNotifier) Error(message string) {
	fmt.Fprintln(n.errOut, message)
}

// skipRefresh stands in for the task list when a command mutates a task and
// exits without showing the collection again.
type skipRefresh struct{}

func (skipRefresh) Refresh() {}
