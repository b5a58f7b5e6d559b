package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"memosync/internal/config"
	"memosync/internal/local"
	"memosync/internal/logging"
	"memosync/internal/remote"
	"memosync/internal/repository"
	"memosync/internal/session"
	"memosync/internal/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// annotationInteractive marks commands that wait on the user and so run
// without the command timeout.
const annotationInteractive = "interactive"

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg      config.Client
	logger   *zap.Logger
	state    *local.SQLite
	backend  *backend
	bridge   *session.Bridge
	repo     *repository.Repository
	syncer   *syncer.Orchestrator
	out      io.Writer
	closeFns []func() error
}

func (a *app) close() {
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		if err := a.closeFns[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// principal returns the signed-in user, refreshing an expired token first.
func (a *app) principal(ctx context.Context) (session.Principal, error) {
	p, ok := a.bridge.Current()
	if !ok {
		return session.Principal{}, errors.New("not signed in, run `memosync login` first")
	}
	if !a.bridge.Valid() {
		a.logger.Info("session expired, refreshing")
		return a.bridge.Refresh(ctx)
	}
	return p, nil
}

// execute runs one CLI invocation and releases what it opened.
func execute(args []string, out io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	err := root.Execute()
	a.close()
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "memosync",
		Short:         "Sync memos and settings with a remote record store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	config.ClientFlags(root.PersistentFlags())

	root.AddGroup(
		&cobra.Group{ID: "auth", Title: "Account:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "local", Title: "Device state:"},
	)
	root.AddCommand(
		newLoginCmd(a), newLogoutCmd(a), newWhoamiCmd(a), newRegisterCmd(a),
		newPushCmd(a), newPullCmd(a),
		newMemoCmd(a), newSettingsCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	if cmd.Annotations[annotationInteractive] == "" && cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		cmd.SetContext(ctx)
		a.closeFns = append(a.closeFns, func() error { cancel(); return nil })
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Development: cfg.LogFile == ""})
	if err != nil {
		return err
	}
	a.logger = logger

	ctx := cmd.Context()
	state, err := local.OpenSQLite(ctx, cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	a.state = state
	a.closeFns = append(a.closeFns, state.Close)

	b, err := openBackend(ctx, cfg, state, logger)
	if err != nil {
		return err
	}
	a.backend = b
	a.closeFns = append(a.closeFns, b.close)

	a.bridge = session.NewBridge(b.provider, state, logger)
	if b.setToken != nil {
		a.bridge.Subscribe(b.setToken)
	}
	restored, err := a.bridge.Restore(ctx)
	if err != nil {
		logger.Warn("ignoring unreadable saved session", zap.Error(err))
	}
	if restored && b.setToken != nil {
		b.setToken(a.bridge.Token())
	}

	var store remote.Store = b.store
	a.repo = repository.New(store, logger)
	a.syncer = syncer.New(a.repo, state, logger)
	return nil
}
