package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newIngestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <referendum>",
		Short: "Import an OpenGov referendum and record its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("bad referendum index %q: %w", args[0], err)
			}
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.connectChain(); err != nil {
				return err
			}

			p, err := a.newIngester(a.newOracle()).Ingest(ctx, uint32(index))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "referendum #%d stored as proposal %d (%s, score %d): %s\n",
				p.ChainID, p.ID, p.Status, p.Score, p.Title)
			return nil
		},
	}
}
