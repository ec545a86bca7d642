package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/stake-plus/govagent/src/ai/anthropic"
	_ "github.com/stake-plus/govagent/src/ai/openai"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type globalFlags struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "govagent",
		Short:         "Governance deliberation agent",
		Long:          "govagent discusses OpenGov referenda with the community and casts one conviction vote per referendum.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newIngestCmd(flags))
	cmd.AddCommand(newSmokeCmd(flags))
	cmd.AddCommand(newChainCmd(flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "govagent %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
