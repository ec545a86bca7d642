package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/oracle"
)

const smokeTitle = "Treasury Spend for Public Infrastructure"

const smokeContent = `Allocate 500k DOT to upgrade regional validator hardware.
Milestones are reported quarterly; unspent funds return to the treasury.`

const smokeQuestion = "What are the main risks here, and how would you vote?"

type smokeMode int

const (
	smokeAnalyze smokeMode = 1 << iota
	smokeDeliberate
)

// newSmokeCmd checks the configured model end to end without touching the
// chain.
func newSmokeCmd(flags *globalFlags) *cobra.Command {
	var (
		mode     string
		question string
		timeout  time.Duration
		maxBytes int
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a sample analysis and deliberation against the configured model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseSmokeMode(mode)
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()
			if !a.cfg.OracleConfigured() {
				return errors.New("no API key configured for AI_PROVIDER " + a.cfg.AIProvider)
			}
			a.cfg.OracleTimeout = timeout
			return runSmoke(cmd.Context(), cmd.OutOrStdout(), a.newOracle(), m, question, maxBytes)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "both", "analyze|deliberate|both")
	cmd.Flags().StringVar(&question, "question", smokeQuestion, "user message for deliberate mode")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "per-call timeout")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 1200, "maximum bytes of output to print per response (0=unlimited)")
	return cmd
}

func runSmoke(ctx context.Context, out io.Writer, o *oracle.Oracle, mode smokeMode, question string, maxBytes int) error {
	p := &gov.Proposal{ID: 1, ChainID: 1, Title: smokeTitle, Description: smokeContent, Proposer: "smoke", Status: gov.StatusPending}

	if mode&smokeAnalyze != 0 {
		start := time.Now()
		raw, err := json.Marshal(o.Analyze(ctx, p))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "analyze (%.1fs)\n%s\n", time.Since(start).Seconds(), truncate(string(raw), maxBytes))
	}
	if mode&smokeDeliberate != 0 {
		start := time.Now()
		history := []gov.ChatMessage{{ProposalID: 1, Sender: gov.SenderUser, Content: question, Timestamp: time.Now()}}
		d := o.Deliberate(ctx, p, history)
		fmt.Fprintf(out, "deliberate (%.1fs)\n%s\n", time.Since(start).Seconds(), truncate(d.ResponseText, maxBytes))
		if d.Intent != nil {
			fmt.Fprintf(out, "vote intent: %s\n", strings.ToUpper(string(d.Intent.Vote)))
		}
	}
	return nil
}

func parseSmokeMode(input string) (smokeMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "analyze":
		return smokeAnalyze, nil
	case "deliberate":
		return smokeDeliberate, nil
	case "both", "":
		return smokeAnalyze | smokeDeliberate, nil
	default:
		return 0, fmt.Errorf("invalid mode %q: expected analyze, deliberate, or both", input)
	}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(gov.Truncate(text, limit)) + "...(truncated)"
}
