// Package cluster implements the Cluster View (spec.md §4.2): the
// liveness and capacity of every registered DataNode, plus the
// bidirectional chunk↔node index. It owns the Node table and the index
// exclusively; every other component only reads through these methods.
//
// Grounded in the teacher's internal/p2p/network.go (Peers map,
// RegisterPeer/UpdatePeerStatus) and internal/dfs/dfs_core.go's
// nodeHealth map, generalized into the chunk↔node bidirectional index
// the original_source Python reference keeps in chunk_manager.py
// (chunk_to_nodes / node_to_chunks).
package cluster

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/model"
)

// View is the Cluster View. A single re-entrant-by-convention exclusive
// lock guards the Node table and both directions of the chunk↔node
// index (spec.md §4.2): operations never call each other while holding
// it, so a plain sync.Mutex suffices.
type View struct {
	mu sync.Mutex

	nodes        map[string]*model.NodeInfo
	chunkToNodes map[string]map[string]bool
	nodeToChunks map[string]map[string]bool

	lostChunks map[string]bool

	log *logrus.Logger
}

// New creates an empty Cluster View.
func New(log *logrus.Logger) *View {
	if log == nil {
		log = logrus.New()
	}
	return &View{
		nodes:        make(map[string]*model.NodeInfo),
		chunkToNodes: make(map[string]map[string]bool),
		nodeToChunks: make(map[string]map[string]bool),
		lostChunks:   make(map[string]bool),
		log:          log,
	}
}

// Register implements spec.md §4.2 register: idempotent, a second
// registration with the same node_id resets the record.
func (v *View) Register(nodeID, host string, port int) model.NodeInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	node := &model.NodeInfo{
		ID:            nodeID,
		Host:          host,
		Port:          port,
		LastHeartbeat: time.Now(),
		Alive:         true,
	}
	v.nodes[nodeID] = node
	if _, ok := v.nodeToChunks[nodeID]; !ok {
		v.nodeToChunks[nodeID] = make(map[string]bool)
	}
	v.log.WithFields(logrus.Fields{"node_id": nodeID, "host": host, "port": port}).Info("datanode registered")
	return *node
}

// UpdateStats implements spec.md §4.2 update_stats: a no-op for unknown
// nodes; bumps last-heartbeat and clears alive=false on known ones.
func (v *View) UpdateStats(nodeID string, available, used int64, chunkCount int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, ok := v.nodes[nodeID]
	if !ok {
		return
	}
	node.Available = available
	node.Used = used
	node.ChunkCount = chunkCount
	node.LastHeartbeat = time.Now()
	node.Alive = true
}

// RecordReplica implements spec.md §4.2 record_replica: idempotent,
// updates both directions of the index.
func (v *View) RecordReplica(chunkID, nodeID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recordReplicaLocked(chunkID, nodeID)
}

func (v *View) recordReplicaLocked(chunkID, nodeID string) {
	if v.chunkToNodes[chunkID] == nil {
		v.chunkToNodes[chunkID] = make(map[string]bool)
	}
	v.chunkToNodes[chunkID][nodeID] = true

	if v.nodeToChunks[nodeID] == nil {
		v.nodeToChunks[nodeID] = make(map[string]bool)
	}
	v.nodeToChunks[nodeID][chunkID] = true

	delete(v.lostChunks, chunkID)
}

// ForgetReplica implements spec.md §4.2 forget_replica: idempotent,
// removes from both directions.
func (v *View) ForgetReplica(chunkID, nodeID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if nodes, ok := v.chunkToNodes[chunkID]; ok {
		delete(nodes, nodeID)
		if len(nodes) == 0 {
			delete(v.chunkToNodes, chunkID)
		}
	}
	if chunks, ok := v.nodeToChunks[nodeID]; ok {
		delete(chunks, chunkID)
	}
}

// Locations implements spec.md §4.2 locations: a value-copy snapshot
// read.
func (v *View) Locations(chunkID string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return setToSlice(v.chunkToNodes[chunkID])
}

// MarkDead implements spec.md §4.2 mark_dead: sets alive=false, empties
// node_to_chunks[node_id], and removes the node from chunk_to_nodes for
// every chunk it hosted. Returns the affected chunk IDs so the
// Replication Maintainer can enqueue them.
func (v *View) MarkDead(nodeID string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, ok := v.nodes[nodeID]
	if !ok {
		return nil
	}
	node.Alive = false

	affected := setToSlice(v.nodeToChunks[nodeID])
	for _, chunkID := range affected {
		if nodes, ok := v.chunkToNodes[chunkID]; ok {
			delete(nodes, nodeID)
			if len(nodes) == 0 {
				delete(v.chunkToNodes, chunkID)
				v.lostChunks[chunkID] = true
			}
		}
	}
	v.nodeToChunks[nodeID] = make(map[string]bool)

	v.log.WithFields(logrus.Fields{"node_id": nodeID, "affected_chunks": len(affected)}).Warn("datanode marked dead")
	return affected
}

// AliveReplicaCount returns how many of a chunk's recorded replicas sit
// on currently-alive nodes — the quantity spec.md §4.5 step 1/2 checks
// against the replication factor.
func (v *View) AliveReplicaCount(chunkID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	count := 0
	for nodeID := range v.chunkToNodes[chunkID] {
		if node, ok := v.nodes[nodeID]; ok && node.Alive {
			count++
		}
	}
	return count
}

// AliveReplicaNodes returns the alive nodes currently holding a chunk.
func (v *View) AliveReplicaNodes(chunkID string) []model.NodeInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []model.NodeInfo
	for nodeID := range v.chunkToNodes[chunkID] {
		if node, ok := v.nodes[nodeID]; ok && node.Alive {
			out = append(out, *node)
		}
	}
	return out
}

// AliveNodes returns a snapshot of every currently-alive node.
func (v *View) AliveNodes() []model.NodeInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []model.NodeInfo
	for _, node := range v.nodes {
		if node.Alive {
			out = append(out, *node)
		}
	}
	return out
}

// AllNodes returns a snapshot of every known node, alive or dead.
func (v *View) AllNodes() []model.NodeInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]model.NodeInfo, 0, len(v.nodes))
	for _, node := range v.nodes {
		out = append(out, *node)
	}
	return out
}

// Node returns a node's record, if known.
func (v *View) Node(nodeID string) (model.NodeInfo, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	node, ok := v.nodes[nodeID]
	if !ok {
		return model.NodeInfo{}, false
	}
	return *node, true
}

// TimedOutNodes returns the IDs of every node currently marked alive
// whose last heartbeat is older than timeout — consumed by the
// Heartbeat Monitor (spec.md §4.4).
func (v *View) TimedOutNodes(timeout time.Duration) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	var ids []string
	for id, node := range v.nodes {
		if node.Alive && now.Sub(node.LastHeartbeat) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// AllChunkIDs returns every chunk ID currently present in the index —
// used by the Replication Maintainer's periodic sweep (spec.md §4.5).
func (v *View) AllChunkIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.chunkToNodes))
	for id := range v.chunkToNodes {
		ids = append(ids, id)
	}
	return ids
}

// Rediscover reconciles a resurrected node's on-disk chunk listing
// against the index, re-linking any chunk the Cluster View had
// forgotten about (SPEC_FULL.md "Supplemented features": spec.md §8
// scenario (e) and §9's garbage-collection open question).
func (v *View) Rediscover(nodeID string, onDiskChunks []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.nodes[nodeID]; !ok {
		return
	}
	for _, chunkID := range onDiskChunks {
		v.recordReplicaLocked(chunkID, nodeID)
	}
}

// Stats implements spec.md §4.2 stats.
func (v *View) Stats() model.ClusterStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := model.ClusterStats{
		TotalChunks: len(v.chunkToNodes),
		LostChunks:  len(v.lostChunks),
	}
	for _, node := range v.nodes {
		stats.TotalNodes++
		stats.TotalSpace += node.Available + node.Used
		stats.UsedSpace += node.Used
		if node.Alive {
			stats.AliveNodes++
		} else {
			stats.DeadNodes++
		}
	}
	stats.AvailableSpace = stats.TotalSpace - stats.UsedSpace
	if stats.TotalSpace > 0 {
		stats.UsagePercentage = float64(stats.UsedSpace) / float64(stats.TotalSpace) * 100
	}
	return stats
}

func setToSlice(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
