// Package replication implements the Replication Maintainer (spec.md
// §4.5): a FIFO queue of under-replicated chunk IDs, de-duplicated, and
// a small fixed worker pool that restores each chunk to its target
// replication factor using the Placement Policy and a DataNode
// replication client.
//
// Grounded in the teacher's internal/dfs/chunk_distributor.go (worker
// pool shape) and golang.org/x/sync/errgroup as used in the
// kluzzebass-gastrolog pack repo for its bounded worker pool.
package replication

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dfscore/dfscore/internal/cluster"
	"github.com/dfscore/dfscore/internal/datanodeclient"
	"github.com/dfscore/dfscore/internal/metadata"
	"github.com/dfscore/dfscore/internal/model"
	"github.com/dfscore/dfscore/internal/placement"
)

const maxAttempts = 3

// Maintainer is the Replication Maintainer. It owns a bounded,
// de-duplicating FIFO queue and a fixed worker pool draining it.
type Maintainer struct {
	view    *cluster.View
	meta    *metadata.Store
	client  datanodeclient.Client
	workers int
	cap     int
	log     *logrus.Logger

	mu      sync.Mutex
	queued  map[string]bool
	pending []string
	notify  chan struct{}

	dropped int
}

// New builds a Replication Maintainer. workers is the fixed pool size
// (spec.md §5 default 4); capacity bounds the queue (spec.md §5
// "e.g. 10,000"); overflow drops the oldest entry and counts it.
func New(view *cluster.View, meta *metadata.Store, client datanodeclient.Client, workers, capacity int, log *logrus.Logger) *Maintainer {
	if log == nil {
		log = logrus.New()
	}
	if workers <= 0 {
		workers = 4
	}
	if capacity <= 0 {
		capacity = 10000
	}
	return &Maintainer{
		view:    view,
		meta:    meta,
		client:  client,
		workers: workers,
		cap:     capacity,
		log:     log,
		queued:  make(map[string]bool),
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue adds chunk IDs to the queue, skipping any already queued
// (spec.md §4.5's de-duplication requirement). Implements
// heartbeat.FailureSink.
func (m *Maintainer) Enqueue(chunkIDs []string) {
	m.mu.Lock()
	for _, id := range chunkIDs {
		m.enqueueLocked(id)
	}
	m.mu.Unlock()
	m.wake()
}

func (m *Maintainer) enqueueLocked(id string) {
	if m.queued[id] {
		return
	}
	if len(m.pending) >= m.cap {
		oldest := m.pending[0]
		m.pending = m.pending[1:]
		delete(m.queued, oldest)
		m.dropped++
		m.log.WithField("dropped_chunk", oldest).Warn("replication queue full, dropping oldest entry")
	}
	m.queued[id] = true
	m.pending = append(m.pending, id)
}

func (m *Maintainer) dequeue() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return "", false
	}
	id := m.pending[0]
	m.pending = m.pending[1:]
	delete(m.queued, id)
	return id, true
}

func (m *Maintainer) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Dropped reports how many queue entries have been discarded due to
// overflow since the Maintainer started.
func (m *Maintainer) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Run starts the fixed worker pool and the periodic sweep; it blocks
// until ctx is cancelled, then drains remaining queued work up to
// grace before returning (spec.md §5 shutdown drain).
func (m *Maintainer) Run(ctx context.Context, sweepInterval time.Duration, grace time.Duration) {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < m.workers; i++ {
		g.Go(func() error {
			m.workerLoop(gctx)
			return nil
		})
	}

	g.Go(func() error {
		m.sweepLoop(gctx, sweepInterval)
		return nil
	})

	<-ctx.Done()
	m.log.Info("replication maintainer draining queue")

	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	m.drain(drainCtx)

	_ = g.Wait()
}

func (m *Maintainer) workerLoop(ctx context.Context) {
	for {
		id, ok := m.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.notify:
				continue
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}
		m.reconcile(ctx, id)
	}
}

func (m *Maintainer) sweepLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep implements spec.md §4.5's periodic re-enqueue: scan all chunks
// and queue any whose live replica count is below its recorded
// replication factor.
func (m *Maintainer) sweep() {
	for _, chunkID := range m.view.AllChunkIDs() {
		info, err := m.meta.GetChunk(chunkID)
		if err != nil {
			continue
		}
		if m.view.AliveReplicaCount(chunkID) < info.Replication {
			m.Enqueue([]string{chunkID})
		}
	}
}

func (m *Maintainer) drain(ctx context.Context) {
	for {
		id, ok := m.dequeue()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
			m.reconcile(ctx, id)
		}
	}
}

// reconcile implements spec.md §4.5's per-chunk steps 1-5.
func (m *Maintainer) reconcile(ctx context.Context, chunkID string) {
	info, err := m.meta.GetChunk(chunkID)
	if err != nil {
		return
	}

	liveNodes := m.view.AliveReplicaNodes(chunkID)
	if len(liveNodes) >= info.Replication {
		return
	}

	if len(liveNodes) == 0 {
		m.log.WithField("chunk_id", chunkID).Error("chunk has zero live replicas, data loss")
		return
	}

	needed := info.Replication - len(liveNodes)
	held := make(map[string]bool, len(liveNodes))
	for _, n := range liveNodes {
		held[n.ID] = true
	}

	targets := placement.SelectExcluding(m.view.AliveNodes(), info.Size, needed, held)
	if len(targets) == 0 {
		return
	}

	source := liveNodes[0]
	for _, target := range targets {
		if m.pushOne(ctx, source, target, chunkID) {
			m.view.RecordReplica(chunkID, target.ID)
		} else {
			m.Enqueue([]string{chunkID})
		}
	}
}

// pushOne commands source (via the peer DataNode replication interface,
// spec.md §4.6) to push chunkID directly to target, rather than pulling
// the bytes through the Maintainer's own process.
func (m *Maintainer) pushOne(ctx context.Context, source, target model.NodeInfo, chunkID string) bool {
	sourceTarget := model.TargetNode{NodeID: source.ID, Host: source.Host, APIPort: source.Port}
	destTarget := model.TargetNode{NodeID: target.ID, Host: target.Host, APIPort: target.Port}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := m.client.Replicate(ctx, sourceTarget, chunkID, []model.TargetNode{destTarget}); err != nil {
			lastErr = err
			continue
		}
		return true
	}
	m.log.WithFields(logrus.Fields{"chunk_id": chunkID, "target": target.ID, "error": lastErr}).Warn("replication push failed after retries")
	return false
}
