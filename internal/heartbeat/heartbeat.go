// Package heartbeat implements the Heartbeat Monitor (spec.md §4.4): a
// background loop that watches the Cluster View for nodes whose last
// heartbeat has gone stale, marks them dead, and forwards the affected
// chunk IDs to the Replication Maintainer.
//
// Grounded in the teacher's internal/p2p/network.go heartbeatMonitor/
// checkPeerHealth ticker loop and internal/dfs/dfs_core.go's
// heartbeatTicker, and the original_source Python reference's
// namenode/heartbeat_monitor.py _monitor_loop.
package heartbeat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/cluster"
)

// FailureSink receives the chunk IDs affected when a node is marked
// dead — implemented by the Replication Maintainer's Enqueue method.
type FailureSink interface {
	Enqueue(chunkIDs []string)
}

// Monitor is the Heartbeat Monitor. It owns no state beyond the ticker
// itself; all liveness state lives in the Cluster View.
type Monitor struct {
	view     *cluster.View
	sink     FailureSink
	timeout  time.Duration
	interval time.Duration
	log      *logrus.Logger
}

// New builds a Heartbeat Monitor. interval is the poll period (spec.md
// §4.4 requires ≥ 1 Hz, i.e. interval ≤ 1s); timeout is HEARTBEAT_TIMEOUT.
func New(view *cluster.View, sink FailureSink, interval, timeout time.Duration, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.New()
	}
	return &Monitor{view: view, sink: sink, timeout: timeout, interval: interval, log: log}
}

// Run blocks, ticking at m.interval until ctx is cancelled. It is a
// pure consumer of the Cluster View: it never mutates chunk metadata
// directly, only calls MarkDead and forwards the result. Cancellation
// drains no queue and releases no resource beyond the Cluster View
// lock, which is held only briefly per tick (spec.md §4.4).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("heartbeat monitor stopping")
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	for _, nodeID := range m.view.TimedOutNodes(m.timeout) {
		affected := m.view.MarkDead(nodeID)
		if len(affected) == 0 {
			continue
		}
		m.log.WithFields(logrus.Fields{"node_id": nodeID, "chunks": len(affected)}).Warn("node timed out, enqueuing affected chunks")
		if m.sink != nil {
			m.sink.Enqueue(affected)
		}
	}
}
