package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/store"
)

// session is an open database and the engine over it, for one command.
type session struct {
	store  *store.Store
	engine *engine.Engine
	config *Config
	logger *slog.Logger
}

// newLogger writes text logs to w; --verbose enables debug output, which
// includes rejected operations.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// loadConfig loads --config if set. Without one the config is empty.
func loadConfig(opts *RootOptions) (*Config, error) {
	if opts.Config == "" {
		return &Config{}, nil
	}
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// databasePath resolves the database: --db, then the config, then the default.
func databasePath(opts *RootOptions, cfg *Config) string {
	if opts.Database != "" {
		return opts.Database
	}
	if cfg.Database != "" {
		return cfg.Database
	}
	return DefaultDatabase
}

// openSession loads the config, opens the database and resumes the engine
// clock from the event log.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := newLogger(opts, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	path := databasePath(opts, cfg)
	logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	// Create engine with flow generator (default to UUIDv7)
	flowGen := opts.FlowGenerator
	if flowGen == nil {
		flowGen = engine.UUIDv7Generator{}
	}
	eng, err := engine.Open(ctx, st, flowGen, engine.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	return &session{
		store:  st,
		engine: eng,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the database, logging any error.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background if unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
