package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/emission"
)

func newSpectrumCommand(a *app) *cobra.Command {
	var (
		roots []string
		from  string
		to    string
		bins  int
		types []string
		top   int
	)

	spectrumCmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Expected emission counts over a time window",
		Long: `Integrate the emissions of an initial inventory and its chain over
[--from, --to]. --to accepts inf for complete decay. Without --bins every
line is listed by energy; with --bins the counts are histogrammed into
equal-width energy bins.`,
		Example: `  halflife spectrum --root Eu-155=1e15 --to 1d
  halflife spectrum --root Bi-212=1e9 --to inf --type gamma --top 5
  halflife spectrum --root Eu-155=1e15 --from 1a --to 2a --bins 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t0, err := parseTime(from)
			if err != nil {
				return err
			}
			t1, err := parseTime(to)
			if err != nil {
				return err
			}
			radiation, err := parseRadiationTypes(types)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, ch, inv, err := a.prepare(ctx, roots)
			if err != nil {
				return err
			}
			defer eng.Close()

			sp, err := eng.SpectrumOver(ctx, ch, inv, t0, t1)
			if err != nil {
				return err
			}
			if len(radiation) > 0 {
				sp = sp.Filter(radiation...)
			}

			out := cmd.OutOrStdout()
			heading(out, fmt.Sprintf("Window %s to %s", formatSeconds(t0), formatSeconds(t1)))
			if bins > 0 {
				if err := writeHistogram(out, sp, bins); err != nil {
					return err
				}
			} else if err := writeLines(out, sp, top); err != nil {
				return err
			}
			fmt.Fprintf(out, "total emissions: %s  total decays: %s\n",
				formatFloat(sp.Total()), formatFloat(sp.TotalDecays()))
			return nil
		},
	}

	flags := spectrumCmd.Flags()
	flags.StringArrayVarP(&roots, "root", "r", nil, "Initial inventory NUCLIDE=AMOUNT (repeatable)")
	flags.StringVar(&from, "from", "0", "Window start")
	flags.StringVar(&to, "to", "inf", "Window end")
	flags.IntVar(&bins, "bins", 0, "Histogram into this many energy bins")
	flags.StringSliceVar(&types, "type", nil, "Radiation types to keep (gamma, xk, xl, ce, auger, betaminus, betaplus, alpha)")
	flags.IntVar(&top, "top", 0, "List only the strongest lines")
	_ = spectrumCmd.MarkFlagRequired("root")
	return spectrumCmd
}

func writeLines(w io.Writer, sp *emission.Spectrum, top int) error {
	lines := sp.Lines
	if top > 0 {
		lines = sp.Strongest(top)
	}

	t := newTable(w, "ENERGY_KEV", "TYPE", "NUCLIDE", "INTENSITY", "COUNTS")
	for _, lc := range lines {
		t.row(formatFloat(lc.Energy()), lc.Line.Type, lc.Line.Nuclide,
			formatPercent(lc.Line.Intensity.Value), formatFloat(lc.Count))
	}
	return t.flush()
}

func writeHistogram(w io.Writer, sp *emission.Spectrum, bins int) error {
	if sp.Len() == 0 {
		return nil
	}
	dividers, err := sp.AutoDividers(bins)
	if err != nil {
		return err
	}
	counts, err := sp.Histogram(dividers)
	if err != nil {
		return err
	}

	t := newTable(w, "LOW_KEV", "HIGH_KEV", "COUNTS")
	for i, c := range counts {
		t.row(formatFloat(dividers[i]), formatFloat(dividers[i+1]), formatFloat(c))
	}
	return t.flush()
}
