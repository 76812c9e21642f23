// Package historyview 协调历史面板的生命周期：Detached → Attached → Active → Detached。
// 账本在 Attached→Active 时构建，离开时取消所有非主表达式的后台求值。
package historyview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"calc-cli/internal/history"
	"calc-cli/internal/logger"
)

var ErrInvalidTransition = errors.New("invalid lifecycle transition")

type State int

const (
	StateDetached State = iota
	StateAttached
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttached:
		return "attached"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source 是协调器依赖的评估器能力。
type Source interface {
	history.Loader
	HasMainExpression() bool
	IsResultDisplayed() bool
	PastResultCount() int
	MaxIndex() int64
	CopyMainToHistory() history.Representation
	CancelBackgroundWork(excludingPrimary bool)
	ClearHistory() error
}

// Coordinator owns the ledger for one attachment. Readers always get a complete snapshot.
type Coordinator struct {
	mu    sync.Mutex
	state State
	src   Source

	// 附着时的显示状态快照，整个附着期间保持不变。
	displayEmpty bool
	resultLayout bool

	ledger       history.Ledger
	epoch        uint64
	clearEnabled bool
	icon         history.IconState
	clearPending bool

	log *logger.LogEntry
}

func New() *Coordinator {
	return &Coordinator{log: logger.Named("historyview"), icon: history.IconDisabled}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attach snapshots the evaluator display state.
func (c *Coordinator) Attach(src Source) error {
	if src == nil {
		return errors.New("historyview: nil source")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDetached {
		return c.invalid("attach")
	}
	c.src = src
	c.displayEmpty = !src.HasMainExpression()
	c.resultLayout = src.IsResultDisplayed()
	c.state = StateAttached
	c.log.WithField("event", "attach").
		WithField("display_empty", c.displayEmpty).
		WithField("result_layout", c.resultLayout).
		Debug("attached")
	return nil
}

// Activate 构建账本并刷新清空菜单状态。
func (c *Coordinator) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAttached {
		return c.invalid("activate")
	}
	c.rebuildLocked()
	c.state = StateActive
	c.log.WithField("event", "activate").WithField("slots", c.ledger.Len()).Debug("ledger built")
	return nil
}

// Resume recomputes the clear-menu state from the current ledger.
func (c *Coordinator) Resume() (bool, history.IconState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return false, history.IconDisabled, c.invalid("resume")
	}
	c.refreshMenuLocked()
	return c.clearEnabled, c.icon, nil
}

// Rebuild discards the ledger and builds a fresh one from the evaluator.
func (c *Coordinator) Rebuild() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return c.invalid("rebuild")
	}
	c.rebuildLocked()
	return nil
}

// Detach 取消非主表达式的后台求值并丢弃账本。
func (c *Coordinator) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDetached {
		return c.invalid("detach")
	}
	c.src.CancelBackgroundWork(true)
	c.src = nil
	c.ledger = history.Ledger{}
	c.epoch++
	c.clearPending = false
	c.clearEnabled = false
	c.icon = history.IconDisabled
	c.state = StateDetached
	c.log.WithField("event", "detach").Debug("detached")
	return nil
}

func (c *Coordinator) Ledger() history.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger
}

func (c *Coordinator) Slots() []history.Slot {
	return c.Ledger().Slots()
}

func (c *Coordinator) ClearAction() (bool, history.IconState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearEnabled, c.icon
}

// DisplayEmpty reports the main-expression snapshot taken at Attach.
func (c *Coordinator) DisplayEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayEmpty
}

// Materialize 物化 position 处的槽位。遇到 ErrStaleIndex 时整体重建账本，不做局部修补。
func (c *Coordinator) Materialize(ctx context.Context, position int) (history.Slot, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return history.Slot{}, c.invalid("materialize")
	}
	slot, ok := c.ledger.At(position)
	if !ok {
		c.mu.Unlock()
		return history.Slot{}, fmt.Errorf("position %d out of range", position)
	}
	if slot.Kind != history.KindUnloaded {
		c.mu.Unlock()
		return slot, nil
	}
	src, epoch := c.src, c.epoch
	c.mu.Unlock()

	loaded, err := history.Materialize(ctx, slot, src)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if errors.Is(err, history.ErrStaleIndex) && c.state == StateActive && c.epoch == epoch {
			c.log.WithField("event", "stale").WithField("index", slot.Index).Info("stale index, rebuilding ledger")
			c.rebuildLocked()
		}
		return slot, err
	}
	if c.epoch != epoch {
		cur, ok := c.ledger.At(position)
		if !ok || cur.Kind != history.KindUnloaded || cur.Index != slot.Index {
			return slot, fmt.Errorf("ledger replaced during load: %w", history.ErrStaleIndex)
		}
	}
	c.ledger = c.ledger.Replace(position, loaded)
	return loaded, nil
}

// RequestClear opens the confirmation step; it is refused while the action is disabled.
func (c *Coordinator) RequestClear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || !c.clearEnabled {
		return false
	}
	c.clearPending = true
	return true
}

func (c *Coordinator) ClearPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearPending
}

func (c *Coordinator) CancelClear() {
	c.mu.Lock()
	c.clearPending = false
	c.mu.Unlock()
}

// ConfirmClear 清空评估器历史并重建账本。
func (c *Coordinator) ConfirmClear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || !c.clearPending {
		return c.invalid("confirm clear")
	}
	c.clearPending = false
	err := c.src.ClearHistory()
	c.rebuildLocked()
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (c *Coordinator) rebuildLocked() {
	ledger := history.Build(!c.displayEmpty, c.resultLayout, c.src.PastResultCount(), c.src.MaxIndex())
	if ledger.HasCurrent() {
		ledger = ledger.WithCurrent(c.src.CopyMainToHistory())
	}
	c.ledger = ledger
	c.epoch++
	c.refreshMenuLocked()
}

func (c *Coordinator) refreshMenuLocked() {
	c.clearEnabled, c.icon = history.ClearActionEnabled(c.ledger)
}

func (c *Coordinator) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, c.state, ErrInvalidTransition)
}
