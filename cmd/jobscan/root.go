package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/domains"
	"github.com/GriffinCanCode/jobscan/internal/history"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/config"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/storage"
)

// app carries configuration and shared components between commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	logLevel   string
	dev        bool
	dbPath     string
	heuristics string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "jobscan",
		Short:         "Scan job-application pages and track application sessions",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")
	flags.BoolVar(&a.dev, "dev", false, "Development logging (console encoder, debug level)")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database for sessions and history (default: JOBSCAN_DB, in-memory when empty)")
	flags.StringVar(&a.heuristics, "heuristics", "", "YAML file overriding listing heuristics (default: JOBSCAN_HEURISTICS)")

	root.AddCommand(
		newScanCmd(a),
		newFetchCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if a.dev {
		cfg.Logging.Development = true
	}
	if a.dbPath != "" {
		cfg.Storage.Path = a.dbPath
	}
	if a.heuristics != "" {
		cfg.Scanner.HeuristicsFile = a.heuristics
	}

	logger, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore returns the configured record store and its closer.
func (a *app) openStore() (storage.Store, func() error, error) {
	if a.cfg.Storage.Path == "" {
		return storage.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := storage.OpenSQLite(a.cfg.Storage.Path, storage.WithMkdirAll())
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("opened store", zap.String("path", a.cfg.Storage.Path))
	return store, store.Close, nil
}

func (a *app) newScanner(metrics *monitoring.Metrics) (*scanner.Scanner, error) {
	opts, err := a.cfg.ScannerOptions()
	if err != nil {
		return nil, err
	}
	return scanner.New(opts, a.logger, metrics), nil
}

func (a *app) newPolicy() (*domains.Policy, error) {
	policy, err := domains.NewPolicy(a.cfg.Domains.Allow, a.cfg.Domains.Deny)
	if err != nil {
		return nil, fmt.Errorf("domain rules: %w", err)
	}
	return policy, nil
}

func (a *app) newSessions(store storage.Store, policy *domains.Policy, metrics *monitoring.Metrics) *session.Manager {
	return session.NewManager(store, a.cfg.SessionManagerConfig(), a.logger,
		session.WithPolicy(policy),
		session.WithMetrics(metrics))
}

func (a *app) newHistory(store storage.Store) *history.History {
	return history.New(store, a.logger)
}

// tracker bundles the store-backed correlator used by the page commands.
type tracker struct {
	sessions *session.Manager
	close    func() error
}

func (a *app) newTracker() (*tracker, error) {
	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	policy, err := a.newPolicy()
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	return &tracker{sessions: a.newSessions(store, policy, nil), close: closeStore}, nil
}

// writeJSON prints v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
