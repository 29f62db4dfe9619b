package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/lineindex"
)

func newIdentifyCommand(a *app) *cobra.Command {
	var (
		tolerance float64
		types     []string
		limit     int
	)

	identifyCmd := &cobra.Command{
		Use:   "identify <energy-keV>...",
		Short: "List catalog lines near observed peak energies",
		Example: `  halflife identify 59.5
  halflife identify 86.5 105.3 --tolerance 0.5 --type gamma`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			energies := make([]float64, len(args))
			for i, arg := range args {
				e, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("%w: %q", lineindex.ErrInvalidEnergy, arg)
				}
				energies[i] = e
			}
			radiation, err := parseRadiationTypes(types)
			if err != nil {
				return err
			}

			res, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			idx, err := lineindex.Build(res.Catalog)
			if err != nil {
				return err
			}
			defer idx.Close()

			t := newTable(cmd.OutOrStdout(), "PEAK_KEV", "LINE_KEV", "DELTA_KEV", "NUCLIDE", "TYPE", "INTENSITY")
			for _, e := range energies {
				matches, err := idx.Identify(e, tolerance, radiation...)
				if err != nil {
					return err
				}
				if limit > 0 && len(matches) > limit {
					matches = matches[:limit]
				}
				if len(matches) == 0 {
					t.row(formatFloat(e), "-", "-", "-", "-", "-")
				}
				for _, m := range matches {
					t.row(formatFloat(e), formatFloat(m.Line.Energy.Value), fmt.Sprintf("%+.4g", m.Delta),
						m.Line.Nuclide, m.Line.Type, formatPercent(m.Line.Intensity.Value))
				}
			}
			return t.flush()
		},
	}

	flags := identifyCmd.Flags()
	flags.Float64Var(&tolerance, "tolerance", 1, "Search half-width in keV")
	flags.StringSliceVar(&types, "type", nil, "Radiation types to consider")
	flags.IntVar(&limit, "limit", 0, "Maximum candidates per peak")
	return identifyCmd
}
