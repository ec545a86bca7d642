package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stake-plus/govagent/src/vote"
)

func newChainCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chain [referendum]",
		Short: "Show relay chain health, the voting account and optionally a referendum",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var index uint64
			if len(args) == 1 {
				var err error
				if index, err = strconv.ParseUint(args[0], 10, 32); err != nil {
					return fmt.Errorf("bad referendum index %q: %w", args[0], err)
				}
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
			if a.chain == nil {
				return fmt.Errorf("CHAIN_RPC_URL is not set")
			}
			out := cmd.OutOrStdout()

			h, err := a.chain.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "connected: %v, peers: %d, syncing: %v, latency: %s\n", h.Connected, h.Peers, h.IsSyncing, h.Latency)

			if addr := a.chain.Address(); addr != "" {
				bal, err := a.chain.FreeBalance(ctx, addr)
				if err != nil {
					return err
				}
				stake := "none (insufficient balance)"
				if s, err := vote.Stake(bal); err == nil {
					stake = vote.FormatAmount(s, a.cfg.TokenDecimals, a.cfg.TokenSymbol)
				}
				fmt.Fprintf(out, "account %s: free %s, next stake %s\n", addr,
					vote.FormatAmount(bal, a.cfg.TokenDecimals, a.cfg.TokenSymbol), stake)
			}

			if len(args) == 1 {
				info, err := a.chain.ReferendumInfo(ctx, uint32(index))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "referendum #%d: %s", info.Index, info.Status)
				if info.Ongoing() {
					fmt.Fprintf(out, ", track %d, submitted at block %d", info.Track, info.Submitted)
					if info.Tally != nil {
						fmt.Fprintf(out, ", ayes %s, nays %s",
							vote.FormatAmount(info.Tally.Ayes, a.cfg.TokenDecimals, a.cfg.TokenSymbol),
							vote.FormatAmount(info.Tally.Nays, a.cfg.TokenDecimals, a.cfg.TokenSymbol))
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
