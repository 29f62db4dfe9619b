package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/query"
)

func newActivityCommand(a *app) *cobra.Command {
	var (
		roots       []string
		at          []string
		uncertainty bool
	)

	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Evaluate activities of a decaying inventory",
		Long: `Evaluate the activity of every nuclide in the chain of an initial
inventory. Each --root is NUCLIDE=ATOMS or NUCLIDE=ACTIVITYBq. Several --at
times are evaluated in parallel. --uncertainty propagates the reported
half-life uncertainties to one standard deviation per nuclide.`,
		Example: `  halflife activity --root Eu-155=1e15 --at 4.753a
  halflife activity --root Sr-90=1e6Bq --at 0 --at 30d --at 10a
  halflife activity --root Eu-155=1e15 --at 1a --uncertainty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			times, err := parseTimes(at)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, ch, inv, err := a.prepare(ctx, roots)
			if err != nil {
				return err
			}
			defer eng.Close()

			out := cmd.OutOrStdout()
			if uncertainty {
				return a.runUncertainty(ctx, out, eng, ch, inv, times)
			}
			return a.runActivity(ctx, out, eng, ch, inv, times)
		},
	}

	flags := activityCmd.Flags()
	flags.StringArrayVarP(&roots, "root", "r", nil, "Initial inventory NUCLIDE=AMOUNT (repeatable)")
	flags.StringArrayVarP(&at, "at", "t", []string{"0"}, "Evaluation time (repeatable)")
	flags.BoolVar(&uncertainty, "uncertainty", false, "Propagate half-life uncertainties")
	_ = activityCmd.MarkFlagRequired("root")
	return activityCmd
}

func (a *app) runActivity(ctx context.Context, out io.Writer, eng *query.Engine, ch *chain.Chain, inv bateman.Inventory, times []float64) error {
	var (
		results []*query.ActivityResult
		err     error
	)
	if len(times) == 1 {
		var res *query.ActivityResult
		res, err = eng.ActivityAt(ctx, ch, inv, times[0])
		results = []*query.ActivityResult{res}
	} else {
		results, err = eng.ActivityBatch(ctx, ch, inv, times)
	}
	if err != nil {
		return err
	}
	if len(results) > 0 {
		a.logWarnings(results[0].Warnings)
	}

	t := newTable(out, "TIME", "NUCLIDE", "ACTIVITY_BQ")
	for _, res := range results {
		for _, id := range res.IDs() {
			t.row(formatSeconds(res.Time), id, formatFloat(res.Activities[id]))
		}
		t.row(formatSeconds(res.Time), "total", formatFloat(res.Total()))
	}
	return t.flush()
}

func (a *app) runUncertainty(ctx context.Context, out io.Writer, eng *query.Engine, ch *chain.Chain, inv bateman.Inventory, times []float64) error {
	t := newTable(out, "TIME", "NUCLIDE", "ACTIVITY_BQ", "SIGMA_BQ", "RELATIVE")
	for i, at := range times {
		res, err := eng.ActivityUncertainty(ctx, ch, inv, at)
		if err != nil {
			return err
		}
		if i == 0 {
			a.logWarnings(res.Warnings)
		}
		for _, id := range res.IDs() {
			t.row(formatSeconds(at), id,
				formatFloat(res.Activities[id]),
				formatFloat(res.Sigma[id]),
				fmt.Sprintf("%.3g%%", res.Relative(id)*100))
		}
	}
	return t.flush()
}
