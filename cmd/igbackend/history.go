package main

import (
	"errors"

	"github.com/spf13/cobra"

	"igbackend/internal/diagnose"
)

var (
	historyUser  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent download runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyUser, "username", "u", "", "only runs for this account")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "number of runs (default 20)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	runs, err := newClient().History(cmd.Context(), historyUser, historyLimit)
	if errors.Is(err, diagnose.ErrHistoryDisabled) {
		p.Warning("Run history is disabled on the backend")
		p.Dim("   Start it with --history file or --history postgres")
		return errReported
	}
	if err != nil {
		reportCallError(p, err)
		return errReported
	}
	diagnose.WriteHistory(p, runs)
	return nil
}
