package txflow

import (
	"sync"

	"fxhedge/src/model"

	"github.com/ethereum/go-ethereum/common"
)

type guardKey struct {
	owner  common.Address
	action model.Action
}

// InFlight allows at most one call per (owner, action).
type InFlight struct {
	mu     sync.Mutex
	active map[guardKey]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{active: map[guardKey]struct{}{}}
}

// TryAcquire reserves the slot; ok is false when a call is already running.
func (g *InFlight) TryAcquire(owner common.Address, action model.Action) (release func(), ok bool) {
	k := guardKey{owner: owner, action: action}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[k]; busy {
		return nil, false
	}
	g.active[k] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, k)
		g.mu.Unlock()
	}, true
}

func (g *InFlight) Busy(owner common.Address, action model.Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[guardKey{owner: owner, action: action}]
	return busy
}

// ResetTracker remembers the last failed attempt per (owner, action) until it
// is explicitly cleared.
type ResetTracker struct {
	mu     sync.Mutex
	failed map[guardKey]error
}

func NewResetTracker() *ResetTracker {
	return &ResetTracker{failed: map[guardKey]error{}}
}

func (r *ResetTracker) Fail(owner common.Address, action model.Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[guardKey{owner: owner, action: action}] = err
}

// Pending returns the stored failure, or nil.
func (r *ResetTracker) Pending(owner common.Address, action model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[guardKey{owner: owner, action: action}]
}

func (r *ResetTracker) Reset(owner common.Address, action model.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed, guardKey{owner: owner, action: action})
}
