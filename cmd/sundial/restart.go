package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/audit"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/orchestrator"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/runtime"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/store"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Run one restart cycle against the replica cluster",
	Long: `Tear down, rebuild and restart the replica cluster once.

The cycle runs stop → clean → build → start → verify; the first failing
step aborts the cycle and the command exits non-zero. All output is
duplicated to the audit log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Missing cluster definition aborts before any mutation
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

		_, err = orch.Run(context.Background())
		return err
	},
}

// storeOrNil avoids a typed-nil interface when the store failed to open
func storeOrNil(s *store.BoltStore) orchestrator.CycleStore {
	if s == nil {
		return nil
	}
	return s
}
