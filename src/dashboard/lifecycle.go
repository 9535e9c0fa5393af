package dashboard

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fxhedge/src/model"

	"github.com/ethereum/go-ethereum/common"
)

// Stage is the position lifecycle as observed by the monitor.
type Stage string

const (
	StageNoPosition Stage = "no_position"
	StageActive     Stage = "active"
	StageReducing   Stage = "reducing"
	StageClosing    Stage = "closing"
	StageSettling   Stage = "settling"
	StageClosed     Stage = "closed"
)

var (
	ErrInvalidTransition = errors.New("action is not available in the current position stage")
	// ErrDebtOutstanding blocks close and settle. The way forward is a reduce to zero principal.
	ErrDebtOutstanding = errors.New("principal debt must be repaid before the position can be closed or settled")
)

// ShowsPosition reports whether position figures may be displayed in this stage.
func (s Stage) ShowsPosition() bool {
	switch s {
	case StageActive, StageReducing, StageClosing, StageSettling:
		return true
	}
	return false
}

var transitional = map[model.Action]Stage{
	model.ActionReduce: StageReducing,
	model.ActionClose:  StageClosing,
	model.ActionSettle: StageSettling,
}

// Lifecycle tracks one position through
// NoPosition -> Active -> {Reducing -> Active, Closing -> Closed, Settling -> Closed} -> NoPosition.
type Lifecycle struct {
	mu    sync.Mutex
	stage Stage

	// identity of the tracked position; a closed one is only left for a different one
	addr    common.Address
	created time.Time
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{stage: StageNoPosition}
}

func (l *Lifecycle) Stage() Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stage
}

// CanBegin checks whether action may start given the last principal debt read.
// A nil principal means the debt is unknown and is treated as outstanding.
func (l *Lifecycle) CanBegin(action model.Action, principal *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canBegin(action, principal)
}

func (l *Lifecycle) canBegin(action model.Action, principal *big.Int) error {
	switch action {
	case model.ActionActivate:
		if l.stage != StageNoPosition && l.stage != StageClosed {
			return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, l.stage)
		}
		return nil
	case model.ActionReduce, model.ActionClose, model.ActionSettle:
		if l.stage != StageActive {
			return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, l.stage)
		}
		if action != model.ActionReduce && (principal == nil || principal.Sign() > 0) {
			return ErrDebtOutstanding
		}
		return nil
	}
	// approvals and pool deposits do not touch the position
	return nil
}

// Begin moves an active position into the transitional stage of action.
// It is called once the transaction has been submitted.
func (l *Lifecycle) Begin(action model.Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, ok := transitional[action]
	if !ok {
		return nil
	}
	if l.stage != StageActive {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, l.stage)
	}
	l.stage = next
	return nil
}

// Finish applies the end of a write attempt.
func (l *Lifecycle) Finish(action model.Action, status model.TxStatus) Stage {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch action {
	case model.ActionActivate:
		if status == model.TxStatusConfirmed {
			l.stage = StageActive
		}
	case model.ActionReduce:
		if l.stage == StageReducing {
			l.stage = StageActive
		}
	case model.ActionClose, model.ActionSettle:
		if l.stage != transitional[action] {
			break
		}
		if status == model.TxStatusConfirmed {
			l.stage = StageClosed
		} else {
			// an unconfirmed close that lands later is picked up by Observe
			l.stage = StageActive
		}
	}
	return l.stage
}

// Observe folds one poll result into the stage. hasPosition is the router's
// answer and pos the position read, nil when unavailable.
func (l *Lifecycle) Observe(hasPosition bool, pos *model.Position) Stage {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.stage {
	case StageClosed:
		// old non-zero reads of a closed position are never shown again
		switch {
		case !hasPosition:
			l.stage = StageNoPosition
		case pos != nil && pos.IsActive && l.isNewPosition(pos):
			l.track(pos)
			l.stage = StageActive
		}
	case StageNoPosition:
		if hasPosition && pos != nil {
			l.track(pos)
			if pos.IsActive {
				l.stage = StageActive
			} else {
				l.stage = StageClosed
			}
		}
	default:
		switch {
		case !hasPosition:
			l.stage = StageNoPosition
		case pos != nil && !pos.IsActive:
			l.stage = StageClosed
		case pos != nil:
			l.track(pos)
		}
	}
	return l.stage
}

func (l *Lifecycle) track(pos *model.Position) {
	l.addr = pos.Address
	if !pos.CreatedAt.IsZero() {
		l.created = pos.CreatedAt
	}
}

func (l *Lifecycle) isNewPosition(pos *model.Position) bool {
	if l.addr == (common.Address{}) {
		return false
	}
	if pos.Address != l.addr {
		return true
	}
	return !l.created.IsZero() && pos.CreatedAt.After(l.created)
}

// Reset returns to NoPosition, used when the watched account changes.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stage = StageNoPosition
	l.addr = common.Address{}
	l.created = time.Time{}
}
