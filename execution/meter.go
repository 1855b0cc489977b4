package execution

import (
	"sync"

	"github.com/trust-net/go-forkstate/statedberr"
)

// ResourceMeter debits compute_bandwidth ticks against a session budget.
// Running below zero raises OutOfResources and aborts the current
// transaction but not the block application (§5).
type ResourceMeter struct {
	mu      sync.Mutex
	budget  int64
	debited int64
}

func NewResourceMeter(initial int64) *ResourceMeter {
	return &ResourceMeter{budget: initial}
}

// Debit consumes amount ticks from the remaining budget. amount is the
// compute_bandwidth tick count published for the syscall being entered,
// looked up by the caller from the compute_bandwidth_registry object.
func (m *ResourceMeter) Debit(amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget -= amount
	m.debited += amount
	if m.budget < 0 {
		return statedberr.New(statedberr.OutOfResources, "resource meter underflow")
	}
	return nil
}

func (m *ResourceMeter) Remaining() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

func (m *ResourceMeter) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debited
}
