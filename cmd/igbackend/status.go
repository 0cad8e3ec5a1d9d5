package main

import (
	"github.com/spf13/cobra"

	"igbackend/internal/diagnose"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the login state of a running backend",
	Long: `Ask a running backend whether its Instagram session is still valid.

The backend verifies the session with Instagram, so an expired or
challenged session shows up here even if the last login succeeded.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	st, err := newClient().Status(cmd.Context())
	if err != nil {
		reportCallError(p, err)
		return errReported
	}
	diagnose.WriteStatus(p, st)
	return nil
}
