package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

func newChainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <nuclide>...",
		Short: "Print the decay chain of one or more nuclides",
		Long: `Build the decay chain below the given nuclides and print it one
generation per layer. Daughters missing from the catalog are shown as
"missing" and reported as warnings.`,
		Example: `  halflife chain Eu-155
  halflife chain -D ./datasheets Bi-212 Pb-212`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := make([]nuclide.ID, 0, len(args))
			for _, arg := range args {
				id, err := nuclide.ParseID(arg)
				if err != nil {
					return err
				}
				roots = append(roots, id)
			}

			eng, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			ch, err := a.buildChain(eng, roots)
			if err != nil {
				return err
			}
			return writeChain(cmd.OutOrStdout(), ch)
		},
	}
}

func writeChain(w io.Writer, ch *chain.Chain) error {
	t := newTable(w, "LAYER", "NUCLIDE", "HALF-LIFE", "DECAYS")
	for depth, layer := range ch.Layers() {
		for _, id := range layer {
			node, _ := ch.Lookup(id)
			decays := "-"
			if node.Nuclide != nil {
				decays = formatDecays(node.Nuclide.Daughters())
			}
			t.row(depth, id, formatHalfLife(node.Nuclide), decays)
		}
	}
	if err := t.flush(); err != nil {
		return err
	}

	for _, id := range ch.Missing() {
		warning(w, fmt.Sprintf("%s is not in the catalog; treated as stable", id))
	}
	for _, wn := range ch.Warnings() {
		warning(w, wn.Error())
	}
	return nil
}
