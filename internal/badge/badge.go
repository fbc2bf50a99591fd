// Package badge tracks membership-tier (plan) assignments. The vault reads a
// caller's plans to resolve preferential swap fees; who assigns plans and why
// is outside the engine's concern.
package badge

import (
	"sort"
	"sync"
)

// PlanSource lists the membership plans a user currently holds.
type PlanSource interface {
	PlansOf(user string) []int
}

// Manager is an in-memory plan membership registry.
type Manager struct {
	mu    sync.RWMutex
	plans map[string]map[int]bool
}

// NewManager creates an empty membership manager.
func NewManager() *Manager {
	return &Manager{plans: make(map[string]map[int]bool)}
}

// AddToPlan enrolls user in plan.
func (m *Manager) AddToPlan(user string, plan int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plans[user] == nil {
		m.plans[user] = make(map[int]bool)
	}
	m.plans[user][plan] = true
}

// RemoveFromPlan removes user from plan.
func (m *Manager) RemoveFromPlan(user string, plan int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans[user], plan)
}

// PlansOf returns the user's plans in ascending order.
func (m *Manager) PlansOf(user string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.plans[user]))
	for id := range m.plans[user] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
