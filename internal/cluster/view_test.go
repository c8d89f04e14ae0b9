package cluster

import "testing"

func TestRegisterIsIdempotent(t *testing.T) {
	v := New(nil)
	v.Register("n1", "host1", 9000)
	info := v.Register("n1", "host2", 9001)

	if info.Host != "host2" || info.Port != 9001 {
		t.Fatalf("expected updated host/port, got %+v", info)
	}
	if len(v.AllNodes()) != 1 {
		t.Fatalf("expected a single node record, got %d", len(v.AllNodes()))
	}
}

func TestRecordAndForgetReplicaIndexConsistency(t *testing.T) {
	v := New(nil)
	v.Register("n1", "h", 1)
	v.Register("n2", "h", 2)

	v.RecordReplica("c1", "n1")
	v.RecordReplica("c1", "n2")
	v.RecordReplica("c1", "n1") // idempotent

	locs := v.Locations("c1")
	if len(locs) != 2 {
		t.Fatalf("expected 2 locations, got %v", locs)
	}

	v.ForgetReplica("c1", "n1")
	locs = v.Locations("c1")
	if len(locs) != 1 || locs[0] != "n2" {
		t.Fatalf("expected only n2 left, got %v", locs)
	}

	v.ForgetReplica("c1", "n1") // idempotent, no-op
}

func TestMarkDeadEmptiesIndexBothDirections(t *testing.T) {
	v := New(nil)
	v.Register("n1", "h", 1)
	v.Register("n2", "h", 2)
	v.RecordReplica("c1", "n1")
	v.RecordReplica("c1", "n2")
	v.RecordReplica("c2", "n1")

	affected := v.MarkDead("n1")
	if len(affected) != 2 {
		t.Fatalf("expected 2 affected chunks, got %v", affected)
	}

	locs := v.Locations("c1")
	if len(locs) != 1 || locs[0] != "n2" {
		t.Fatalf("expected n1 removed from c1 locations, got %v", locs)
	}

	locsC2 := v.Locations("c2")
	if len(locsC2) != 0 {
		t.Fatalf("expected c2 to have zero live replicas, got %v", locsC2)
	}

	node, _ := v.Node("n1")
	if node.Alive {
		t.Fatalf("expected n1 to be dead")
	}
}

func TestUpdateStatsResurrectsDeadNode(t *testing.T) {
	v := New(nil)
	v.Register("n1", "h", 1)
	v.MarkDead("n1")

	node, _ := v.Node("n1")
	if node.Alive {
		t.Fatalf("expected node to be dead before update_stats")
	}

	v.UpdateStats("n1", 100, 10, 2)
	node, _ = v.Node("n1")
	if !node.Alive {
		t.Fatalf("expected update_stats to resurrect the node")
	}
}

func TestUpdateStatsNoopForUnknownNode(t *testing.T) {
	v := New(nil)
	v.UpdateStats("ghost", 1, 1, 1)
	if _, ok := v.Node("ghost"); ok {
		t.Fatalf("expected unknown node to remain unregistered")
	}
}

func TestStatsTracksLostChunks(t *testing.T) {
	v := New(nil)
	v.Register("n1", "h", 1)
	v.RecordReplica("c1", "n1")

	v.MarkDead("n1")

	stats := v.Stats()
	if stats.LostChunks != 1 {
		t.Fatalf("expected 1 lost chunk, got %d", stats.LostChunks)
	}

	v.UpdateStats("n1", 50, 50, 1)
	v.RecordReplica("c1", "n1")
	stats = v.Stats()
	if stats.LostChunks != 0 {
		t.Fatalf("expected lost chunk to clear once re-recorded, got %d", stats.LostChunks)
	}
}

func TestRediscoverRelinksOnDiskChunks(t *testing.T) {
	v := New(nil)
	v.Register("n1", "h", 1)
	v.Rediscover("n1", []string{"c1", "c2"})

	if len(v.Locations("c1")) != 1 || len(v.Locations("c2")) != 1 {
		t.Fatalf("expected rediscovered chunks to be linked to n1")
	}
}
