// Package placement implements the Placement Policy (spec.md §4.3): a
// stateless function over a Cluster View snapshot that selects up to R
// nodes for a new chunk. It is deliberately a pure function of its
// inputs so node selection stays deterministic and testable.
//
// Grounded in the teacher's internal/dfs/chunk_distributor.go
// (NodeScore, DistributionStrategy, scoreNodes) — the Strategy and
// Candidate types keep that scoring vocabulary, but nothing in the
// repository reads them; Select and SelectExcluding always apply
// spec.md's deterministic greedy rule since spec.md §8 treats its
// determinism as a tested invariant.
package placement

import (
	"sort"

	"github.com/dfscore/dfscore/internal/model"
)

// Strategy names a node-scoring approach. Select takes no Strategy; its
// fixed rule corresponds to StrategyBalanced: free-space descending,
// node ID ascending tie-break.
type Strategy string

const (
	StrategyBalanced    Strategy = "balanced"
	StrategyCapacity    Strategy = "capacity"
	StrategyReliability Strategy = "reliability"
)

// Candidate is a node under consideration. It carries only the node
// record; the size it must have room for is not part of it.
type Candidate struct {
	Node model.NodeInfo
}

// Select implements spec.md §4.3's algorithm: filter nodes by
// alive ∧ available ≥ s, sort by available descending (ties by node ID
// ascending), take the first R. If fewer than R qualify, it returns
// what exists — the caller is responsible for surfacing the
// under-replication warning (spec.md §4.3 "Rationale").
func Select(nodes []model.NodeInfo, size int64, r int) []model.NodeInfo {
	var qualified []model.NodeInfo
	for _, n := range nodes {
		if n.Alive && n.Available >= size {
			qualified = append(qualified, n)
		}
	}

	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].Available != qualified[j].Available {
			return qualified[i].Available > qualified[j].Available
		}
		return qualified[i].ID < qualified[j].ID
	})

	if len(qualified) > r {
		qualified = qualified[:r]
	}
	return qualified
}

// SelectExcluding runs Select over nodes, dropping any node ID present
// in exclude — used by the Replication Maintainer (spec.md §4.5 step 3)
// to pick additional targets that don't already hold the chunk.
func SelectExcluding(nodes []model.NodeInfo, size int64, r int, exclude map[string]bool) []model.NodeInfo {
	var filtered []model.NodeInfo
	for _, n := range nodes {
		if !exclude[n.ID] {
			filtered = append(filtered, n)
		}
	}
	return Select(filtered, size, r)
}
