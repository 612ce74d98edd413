package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/config"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sundial",
	Short: "Sundial - lifecycle tooling for the property valuation cluster",
	Long: `Sundial keeps the property valuation service cluster fresh and
reachable: it periodically tears down, rebuilds and restarts the replica
set, load-balances client traffic across healthy replicas during that
churn, and smoke-tests the cluster afterwards.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		metrics.Register()
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Sundial version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
}
