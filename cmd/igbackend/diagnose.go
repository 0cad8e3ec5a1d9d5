package main

import (
	"github.com/spf13/cobra"

	"igbackend/internal/diagnose"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <username>",
	Short: "Probe why posts of an account do not download",
	Long: `Check the backend's session, download two items of the account and
explain the result: whether Instagram is blocking enumeration, the profile
has no posts, or downloads work.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	if _, err := diagnose.Run(cmd.Context(), newClient(), newPrinter(cmd), args[0]); err != nil {
		return errReported
	}
	return nil
}
