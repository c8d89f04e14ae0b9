// Command namenode runs the Coordinator: the Metadata Store, Cluster
// View, Heartbeat Monitor, Replication Maintainer, and the Coordinator
// HTTP API, wired together and run until a shutdown signal arrives.
//
// Grounded in the teacher's cmd/gui/main.go initialization sequence
// (config load, storage/metadata bring-up, server start, graceful
// shutdown path), generalized to the Coordinator's own components.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfscore/dfscore/config"
	"github.com/dfscore/dfscore/internal/cluster"
	"github.com/dfscore/dfscore/internal/coordinatorapi"
	"github.com/dfscore/dfscore/internal/datanodeclient"
	"github.com/dfscore/dfscore/internal/heartbeat"
	"github.com/dfscore/dfscore/internal/metadata"
	"github.com/dfscore/dfscore/internal/replication"
	"github.com/dfscore/dfscore/pkg/env"
	"github.com/dfscore/dfscore/pkg/logging"
)

func main() {
	env.LoadEnv()
	logging.InitLogger(os.Getenv("DEBUG") == "true")
	log := logging.Log

	cfg, err := config.Load(".")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	metaStore, err := metadata.Open(cfg.MetadataPath, cfg.ChunkSize, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open metadata store")
	}
	defer metaStore.Close()

	view := cluster.New(log)
	client := datanodeclient.NewHTTPClient(cfg.APITimeout, cfg.ExistsCheckTimeout)
	maintainer := replication.New(view, metaStore, client, cfg.ReplicationWorkers, 10000, log)
	monitor := heartbeat.New(view, maintainer, time.Second, cfg.HeartbeatTimeout, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Run(ctx)
	go maintainer.Run(ctx, cfg.SweepInterval, cfg.ShutdownGrace)

	api := coordinatorapi.New(metaStore, view, maintainer, cfg.ReplicationFactor, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.NameNodeHost, cfg.NameNodeAPIPort),
		Handler: api.Router(),
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("coordinator API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("coordinator API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, draining")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("coordinator API did not shut down cleanly")
	}

	time.Sleep(100 * time.Millisecond)
	log.Info("coordinator stopped")
}
