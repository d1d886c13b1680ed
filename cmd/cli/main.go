package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "splitledger",
		Short:         "SplitLedger CLI tool",
		Long:          `A command line interface for group balances, debts and cross-chain settlements.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the SplitLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(
		ledgerCmd(opts),
		balancesCmd(opts),
		debtsCmd(opts),
		settlementsCmd(opts),
		expenseCmd(opts),
		settleCmd(opts),
		attemptCmd(opts),
		explorerURLCmd(),
		migrateCmd(),
	)

	return rootCmd
}

type options struct {
	baseURL string
	timeout time.Duration
	jsonOut bool
}

func (o *options) client() *apiClient {
	return newAPIClient(o.baseURL, o.timeout)
}
