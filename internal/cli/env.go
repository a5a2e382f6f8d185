package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/config"
	"github.com/ist-dresden/composum-platform-sub002/internal/logging"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// env is what a command works with once config, logging, the type
// registry and the store are set up.
type env struct {
	cfg   *config.Config
	types *typesys.Registry
	store *store.Store
	out   *OutputFormatter
}

func (e *env) Close() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openEnv loads the configuration and opens the store. Failures are
// reported through the formatter and come back as ExitCommandError.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	e, err := loadEnv(opts, cmd)
	if err != nil {
		return nil, err
	}
	slog.Debug("opening database", "path", e.cfg.DB.Path)
	e.store, err = store.Open(e.cfg.DB.Path, store.WithTypes(e.types))
	if err != nil {
		return nil, e.out.FailCode(ErrCodeStore, ExitCommandError, "failed to open database", err)
	}
	return e, nil
}

// loadEnv is openEnv without the store.
func loadEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.DB.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logging.Init(cfg.Log, cmd.ErrOrStderr())

	types := typesys.Default()
	if cfg.Types.File != "" {
		if types, err = typesys.LoadCUEFile(cfg.Types.File); err != nil {
			return nil, out.Fail(ExitCommandError, "failed to load node types", err)
		}
	}
	return &env{cfg: cfg, types: types, out: out}, nil
}
