package badge

import (
	"slices"
	"testing"
)

func TestPlansOfSorted(t *testing.T) {
	m := NewManager()
	m.AddToPlan("alice", 3)
	m.AddToPlan("alice", 1)
	m.AddToPlan("alice", 2)

	got := m.PlansOf("alice")
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("PlansOf = %v, want [1 2 3]", got)
	}
}

func TestRemoveFromPlan(t *testing.T) {
	m := NewManager()
	m.AddToPlan("alice", 1)
	m.AddToPlan("alice", 2)
	m.RemoveFromPlan("alice", 1)

	got := m.PlansOf("alice")
	if !slices.Equal(got, []int{2}) {
		t.Errorf("PlansOf after remove = %v, want [2]", got)
	}

	// Removing from a plan the user never held is a no-op.
	m.RemoveFromPlan("bob", 5)
	if len(m.PlansOf("bob")) != 0 {
		t.Errorf("PlansOf(bob) = %v, want empty", m.PlansOf("bob"))
	}
}
