package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent restart cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cycleStore, err := store.NewBoltStore(cfg.Cluster.StoreDir)
		if err != nil {
			return fmt.Errorf("failed to open cycle history: %w", err)
		}
		defer cycleStore.Close()

		cycles, err := cycleStore.RecentCycles(historyLimit)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("no cycles recorded")
			return nil
		}

		for _, c := range cycles {
			fmt.Printf("%s  %-7s  %s", c.StartTime.Format(time.RFC3339), c.Status,
				c.EndTime.Sub(c.StartTime).Round(time.Second))
			for _, s := range c.Steps {
				if s.Ok() {
					fmt.Printf("  %s✓", s.Step)
				} else {
					fmt.Printf("  %s✗(%s)", s.Step, s.Error)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of cycles to show")
}
