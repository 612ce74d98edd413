package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/pool"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/probe"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the load-balancing upstream pool",
	Long: `Front the replica cluster with a load-balancing reverse proxy.

Traffic is distributed round-robin across healthy replicas. A replica that
fails max_fails consecutive attempts within fail_timeout is excluded from
selection until it answers a probe again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pool.New(probe.Policy{
			MaxFails:    cfg.Pool.MaxFails,
			FailTimeout: cfg.Pool.FailTimeout,
		}, cfg.ReplicaAddresses())

		prober := pool.NewProber(p, cfg.Pool.ProbeInterval, cfg.Pool.LivenessTimeout)
		prober.Start()
		defer prober.Stop()

		server := pool.NewServer(p, pool.ServerConfig{
			ListenAddr:      cfg.Pool.ListenAddr,
			LivenessTimeout: cfg.Pool.LivenessTimeout,
			GeneralTimeout:  cfg.Pool.GeneralTimeout,
			MaxBodyBytes:    cfg.Pool.MaxBodyBytes,
			RateLimit:       cfg.Pool.RateLimit,
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

		return server.Start(ctx)
	},
}
