package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridecoach/setback/internal/client"
)

var contextCmd = &cobra.Command{
	Use:   "context <subject-id>",
	Short: "Print the active-events context text for a subject",
	Long: "Fetches the splice-ready context block from a running setback server " +
		"(SETBACK_URL, default http://127.0.0.1:37791). This is the same text the " +
		"coaching agent injects into its instructions.",
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	c := client.New()
	if !c.Healthy() {
		return fmt.Errorf("setback server not reachable (is `setback serve` running?)")
	}

	text, err := c.Context(args[0])
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Println("no active events")
		return nil
	}
	fmt.Print(text)
	return nil
}
