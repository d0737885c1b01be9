package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridecoach/setback/internal/config"
	"github.com/stridecoach/setback/internal/engine"
	"github.com/stridecoach/setback/internal/store"
)

var sweepConfigPath string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one lifecycle sweep over all non-resolved events",
	Long: "Evaluates decay for every non-resolved event and applies any status " +
		"transitions (active → improving → resolved). Idempotent; the server also " +
		"does this lazily on context reads and on its own timer.",
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", "", "path to YAML config file")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(sweepConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, nil, log)
	n, err := eng.Sweep()
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("sweep complete: %d transition(s) applied\n", n)
	return nil
}
