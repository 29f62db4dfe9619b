// Package cmd implements the halflife command line.
package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/config"
	"github.com/adalundhe/halflife/core/query"
	"github.com/adalundhe/halflife/core/storage"
)

// app carries the global flags and the state every subcommand shares.
type app struct {
	configFile string
	dir        string
	logLevel   string
	logFormat  string
	workers    int

	dirs   *storage.Dirs
	config *config.Config
	logger *slog.Logger
}

// Execute runs the root command until it completes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "halflife",
		Short: "Radioactive decay chain calculator",
		Long: `halflife loads per-nuclide decay datasheets, builds decay chains and
evaluates activities and emission spectra with the Bateman equations.

Time arguments accept seconds, Go durations (90m, 36h) and the suffixes
d (days) and a or y (Julian years of 365.25 d).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (YAML), applied after the project and user files")
	flags.StringVarP(&a.dir, "dir", "D", "", "Datasheet directory (default: datasheet.dir from config)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.IntVar(&a.workers, "workers", 0, "Workers for batch evaluation (default GOMAXPROCS)")

	rootCmd.AddCommand(
		newCatalogCommand(a),
		newChainCommand(a),
		newActivityCommand(a),
		newSpectrumCommand(a),
		newHalfLifeCommand(a),
		newIdentifyCommand(a),
	)
	return rootCmd
}

// setup loads the layered config, applies flag overrides and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.dirs = storage.ResolveDirs()

	var opts []config.ManagerOption
	if a.configFile != "" {
		opts = append(opts, config.WithFile(a.configFile))
	}
	m := config.NewManager(a.dirs, opts...)
	if err := m.Load(); err != nil {
		return err
	}

	overrides := &config.Config{
		Log: config.LogConfig{
			Level:  strings.ToLower(a.logLevel),
			Format: strings.ToLower(a.logFormat),
		},
		Datasheet: config.DatasheetConfig{Dir: a.dir},
		Query:     query.Config{Workers: a.workers},
	}
	if err := m.Apply(overrides); err != nil {
		return err
	}

	a.config = m.Get()
	a.logger = newLogger(cmd.ErrOrStderr(), a.config.Log.Format, a.config.SlogLevel())
	return nil
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
