package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "setback",
	Short: "Exceptional event tracking for habit-coaching agents",
	Long: "Setback tracks temporary life disruptions (injury, illness, travel, stress), " +
		"decays their impact over time, and serves the coaching agent a ranked view of " +
		"what still matters. Events fade out on their own — no manual cleanup.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(contextCmd)
}
