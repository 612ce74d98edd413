package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/audit"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/orchestrator"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/runtime"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/scheduler"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/store"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the restart scheduler daemon",
	Long: `Fire one restart cycle per configured interval (default 6h).

A trigger arriving while a cycle is still running is skipped and logged;
a missed fire is resolved by the next scheduled tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := runtime.NewComposeRuntime(cfg.Cluster.ProjectDir)
		if err != nil {
			return fmt.Errorf("precondition failed: %w", err)
		}

		auditLog := audit.New(audit.Options{
			Path:           cfg.Audit.Path,
			MaxGenerations: cfg.Audit.MaxGenerations,
		})
		defer auditLog.Close()

		cycleStore, err := store.NewBoltStore(cfg.Cluster.StoreDir)
		if err != nil {
			log.Errorf("cycle history unavailable", err)
			cycleStore = nil
		} else {
			defer cycleStore.Close()
		}

		orch := orchestrator.New(rt, auditLog, storeOrNil(cycleStore), orchestrator.Config{
			Replicas:     cfg.Cluster.Replicas,
			StopTimeout:  cfg.Cluster.StopTimeout,
			BuildTimeout: cfg.Cluster.BuildTimeout,
			ReadyTimeout: cfg.Cluster.ReadyTimeout,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Info("received shutdown signal")
			cancel()
		}()

		scheduler.New(orch, cfg.Scheduler.Interval).Run(ctx)
		return nil
	},
}
