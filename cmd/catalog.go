package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/datasheet"
	"github.com/adalundhe/halflife/core/nuclide"
)

func newCatalogCommand(a *app) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect a datasheet directory",
	}
	catalogCmd.AddCommand(newCatalogValidateCommand(a), newCatalogWatchCommand(a))
	return catalogCmd
}

// =============================================================================
// catalog validate
// =============================================================================

func newCatalogValidateCommand(a *app) *cobra.Command {
	var list bool

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse every datasheet and report rejected files",
		Long: `Parse every datasheet in the directory and report rejected files and
consistency warnings. Fails only when no nuclide could be loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.datasheetDir()
			if err != nil {
				return err
			}
			loader, err := a.newLoader()
			if err != nil {
				return err
			}
			res, err := loader.LoadDir(cmd.Context(), dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			writeLoadReport(out, dir, res)
			if list {
				fmt.Fprintln(out)
				if err := writeNuclides(out, res.Catalog); err != nil {
					return err
				}
			}
			if res.Catalog.Len() == 0 {
				return fmt.Errorf("%w from %s", ErrEmptyCatalog, dir)
			}
			return nil
		},
	}
	validateCmd.Flags().BoolVarP(&list, "list", "l", false, "List the loaded nuclides")
	return validateCmd
}

func writeLoadReport(w io.Writer, dir string, res *datasheet.LoadResult) {
	heading(w, "Datasheets "+dir)
	fmt.Fprintf(w, "files: %d  nuclides: %d  rejected: %d  warnings: %d\n",
		res.Files, res.Catalog.Len(), len(res.Failures), len(res.Warnings))
	for _, f := range res.Failures {
		fmt.Fprintf(w, "rejected: %s\n", f.Error())
	}
	for _, wn := range res.Warnings {
		warning(w, wn.String())
	}
}

func writeNuclides(w io.Writer, cat *nuclide.Catalog) error {
	t := newTable(w, "NUCLIDE", "ELEMENT", "Z", "HALF-LIFE", "DECAYS", "LINES")
	for _, n := range cat.Nuclides() {
		t.row(n.ID(), n.Element(), n.Z(), formatHalfLife(n), formatDecays(n.Daughters()), n.LineCount())
	}
	return t.flush()
}

func formatHalfLife(n *nuclide.Nuclide) string {
	if n == nil {
		return "missing"
	}
	if n.IsStable() {
		return "stable"
	}
	hl := n.HalfLife()
	if !hl.Known {
		return "unknown"
	}
	return formatSeconds(hl.Value)
}

func formatDecays(modes []nuclide.DecayMode) string {
	if len(modes) == 0 {
		return "-"
	}
	parts := make([]string, len(modes))
	for i, m := range modes {
		branch := "?"
		if m.Branching.Known {
			branch = formatPercent(m.Branching.Value * 100)
		}
		parts[i] = fmt.Sprintf("%s->%s %s", m.Type, m.Daughter, branch)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// catalog watch
// =============================================================================

func newCatalogWatchCommand(a *app) *cobra.Command {
	var metricsAddr string

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the datasheet directory whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.config.Metrics.Addr
			}
			return a.runWatch(cmd.Context(), cmd.OutOrStdout(), metricsAddr)
		},
	}
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	return watchCmd
}

func (a *app) runWatch(ctx context.Context, out io.Writer, metricsAddr string) error {
	dir, err := a.datasheetDir()
	if err != nil {
		return err
	}
	loader, err := a.newLoader()
	if err != nil {
		return err
	}

	watcher, err := datasheet.NewWatcher(datasheet.WatchConfig{
		Dir:      dir,
		Loader:   loader,
		Debounce: a.config.Datasheet.Debounce,
		OnReload: func(res *datasheet.LoadResult) {
			writeLoadReport(out, dir, res)
		},
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := registerWatchMetrics(reg, watcher); err != nil {
			return err
		}
		stop, err := a.serveMetrics(metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics serves reg on addr under /metrics until the returned stop
// function is called.
func (a *app) serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
