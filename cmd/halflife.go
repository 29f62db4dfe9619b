package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/nuclide"
	"github.com/adalundhe/halflife/core/query"
)

func newHalfLifeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "halflife <nuclide>...",
		Short: "Print half-lives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			t := newTable(cmd.OutOrStdout(), "NUCLIDE", "SECONDS", "HALF-LIFE", "DURATION")
			for _, arg := range args {
				id, err := nuclide.ParseID(arg)
				if err != nil {
					return err
				}
				s, err := eng.HalfLifeSeconds(id)
				switch {
				case errors.Is(err, query.ErrStable):
					t.row(id, "-", "stable", "-")
				case errors.Is(err, query.ErrUnknownHalfLife):
					t.row(id, "-", "unknown", "-")
				case err != nil:
					return err
				default:
					t.row(id, formatFloat(s), formatSeconds(s), query.SecondsToDuration(s))
				}
			}
			return t.flush()
		},
	}
}
