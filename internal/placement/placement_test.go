package placement

import "github.com/dfscore/dfscore/internal/model"
import "testing"

func node(id string, available int64, alive bool) model.NodeInfo {
	return model.NodeInfo{ID: id, Available: available, Alive: alive}
}

func TestSelectFiltersDeadAndUndersizedNodes(t *testing.T) {
	nodes := []model.NodeInfo{
		node("a", 1000, true),
		node("b", 500, false),
		node("c", 10, true),
	}
	selected := Select(nodes, 100, 3)
	if len(selected) != 1 || selected[0].ID != "a" {
		t.Fatalf("expected only node a to qualify, got %+v", selected)
	}
}

func TestSelectSortsByAvailableDescendingThenIDAscending(t *testing.T) {
	nodes := []model.NodeInfo{
		node("z", 500, true),
		node("a", 500, true),
		node("m", 1000, true),
	}
	selected := Select(nodes, 0, 3)
	want := []string{"m", "a", "z"}
	for i, w := range want {
		if selected[i].ID != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, selected[i].ID)
		}
	}
}

func TestSelectReturnsFewerThanRWhenUndersupplied(t *testing.T) {
	nodes := []model.NodeInfo{node("a", 1000, true), node("b", 1000, true)}
	selected := Select(nodes, 0, 3)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected nodes, got %d", len(selected))
	}
}

func TestSelectExcludingDropsExistingHolders(t *testing.T) {
	nodes := []model.NodeInfo{node("a", 1000, true), node("b", 1000, true), node("c", 1000, true)}
	selected := SelectExcluding(nodes, 0, 3, map[string]bool{"a": true})
	if len(selected) != 2 {
		t.Fatalf("expected 2 nodes after exclusion, got %d", len(selected))
	}
	for _, s := range selected {
		if s.ID == "a" {
			t.Fatalf("excluded node a reappeared in selection")
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	nodes := []model.NodeInfo{node("a", 100, true), node("b", 100, true), node("c", 200, true)}
	first := Select(nodes, 0, 2)
	second := Select(nodes, 0, 2)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("expected deterministic selection across calls")
		}
	}
}
