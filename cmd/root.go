package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "club-dues",
	Short: "Club membership dues service",
	Long:  "A club membership dues service: member registry, monthly dues lifecycle, reminders, and payment gateway reconciliation.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
