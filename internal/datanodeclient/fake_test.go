package datanodeclient

import (
	"context"
	"errors"
	"testing"

	"github.com/dfscore/dfscore/internal/model"
)

func TestFakePutGetDeleteRoundTrip(t *testing.T) {
	c := NewFake()
	target := model.TargetNode{NodeID: "n1", Host: "h", APIPort: 1}

	if _, err := c.Put(context.Background(), target, "c1", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := c.Exists(context.Background(), target, "c1")
	if err != nil || !ok {
		t.Fatalf("expected chunk to exist, got ok=%v err=%v", ok, err)
	}

	data, err := c.Get(context.Background(), target, "c1")
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected get result: %q %v", data, err)
	}

	if err := c.Delete(context.Background(), target, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(context.Background(), target, "c1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFakeReplicatePushesToEachTarget(t *testing.T) {
	c := NewFake()
	source := model.TargetNode{NodeID: "n1", Host: "h", APIPort: 1}
	t1 := model.TargetNode{NodeID: "n2", Host: "h", APIPort: 2}
	t2 := model.TargetNode{NodeID: "n3", Host: "h", APIPort: 3}

	if _, err := c.Put(context.Background(), source, "c1", []byte("hello")); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := c.Replicate(context.Background(), source, "c1", []model.TargetNode{t1, t2}); err != nil {
		t.Fatalf("replicate: %v", err)
	}
	if !c.HasChunk("n2", "c1") || !c.HasChunk("n3", "c1") {
		t.Fatalf("expected both targets to receive the chunk")
	}
}

func TestFakeReplicateMissingSourceChunkReturnsNotFound(t *testing.T) {
	c := NewFake()
	source := model.TargetNode{NodeID: "n1", Host: "h", APIPort: 1}
	target := model.TargetNode{NodeID: "n2", Host: "h", APIPort: 2}

	err := c.Replicate(context.Background(), source, "missing", []model.TargetNode{target})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFakeFailingNodeReturnsNodeUnavailable(t *testing.T) {
	c := NewFake()
	c.FailNodes["down"] = true
	target := model.TargetNode{NodeID: "down", Host: "h", APIPort: 1}

	if _, err := c.Put(context.Background(), target, "c1", []byte("x")); !errors.Is(err, model.ErrNodeUnavailable) {
		t.Fatalf("expected ErrNodeUnavailable, got %v", err)
	}
}
