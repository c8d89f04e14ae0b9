// Command datanode runs a single Storage Worker plus its DataNode HTTP
// API and registers itself with the Coordinator, then sends heartbeats
// on the configured interval until a shutdown signal arrives.
//
// Grounded the same way as cmd/namenode: teacher's cmd/gui/main.go
// bring-up/shutdown shape, generalized to the DataNode side.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/config"
	"github.com/dfscore/dfscore/internal/datanodeapi"
	"github.com/dfscore/dfscore/internal/datanodeclient"
	"github.com/dfscore/dfscore/internal/storageworker"
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

	nodeID := cfg.DataNodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	peerClient := datanodeclient.NewHTTPClient(cfg.APITimeout, cfg.ExistsCheckTimeout)
	worker, err := storageworker.New(cfg.StoragePath, peerClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.RunReplicationWorker(ctx)

	api := datanodeapi.New(worker, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.DataNodeHost, cfg.DataNodeAPIPort),
		Handler: api.Router(),
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("datanode API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("datanode API server failed")
		}
	}()

	coordinatorURL := fmt.Sprintf("http://%s:%d", cfg.NameNodeHost, cfg.NameNodeAPIPort)
	if err := registerWithCoordinator(coordinatorURL, nodeID, cfg.DataNodeHost, cfg.DataNodeAPIPort); err != nil {
		log.WithError(err).Warn("failed to register with coordinator, will retry on next heartbeat")
		go func() {
			ticker := time.NewTicker(cfg.HeartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := registerWithCoordinator(coordinatorURL, nodeID, cfg.DataNodeHost, cfg.DataNodeAPIPort); err == nil {
						log.Info("registered with coordinator")
						return
					}
				}
			}
		}()
	}

	go runHeartbeatLoop(ctx, log, coordinatorURL, nodeID, worker, cfg.HeartbeatInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, draining")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("datanode API did not shut down cleanly")
	}
	log.Info("datanode stopped")
}

func registerWithCoordinator(coordinatorURL, nodeID, host string, apiPort int) error {
	body, err := json.Marshal(map[string]interface{}{
		"node_id": nodeID,
		"host":    host,
		"port":    apiPort,
	})
	if err != nil {
		return err
	}
	resp, err := http.Post(coordinatorURL+"/datanodes/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register failed: %s", resp.Status)
	}
	return nil
}

// runHeartbeatLoop implements spec.md §4.6's heartbeat_tick: computes
// stats and ships them to the coordinator on the heartbeat schedule.
func runHeartbeatLoop(ctx context.Context, log *logrus.Logger, coordinatorURL, nodeID string, worker *storageworker.Worker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat(coordinatorURL, nodeID, worker, log)
		}
	}
}

func sendHeartbeat(coordinatorURL, nodeID string, worker *storageworker.Worker, log *logrus.Logger) {
	available, used, chunkCount, err := worker.Stats()
	if err != nil {
		log.WithError(err).Warn("failed to compute storage stats for heartbeat")
		return
	}
	body, _ := json.Marshal(map[string]interface{}{
		"node_id":         nodeID,
		"available_space": available,
		"used_space":      used,
		"chunk_count":     chunkCount,
		"timestamp":       time.Now().Unix(),
	})
	resp, err := http.Post(coordinatorURL+"/heartbeat", "application/json", bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("heartbeat send failed")
		return
	}
	resp.Body.Close()
}
