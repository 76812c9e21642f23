package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStaleIndex 表示物化目标在评估器中已失效（如历史被并发清空）。
// 调用方必须丢弃整个 Ledger 并重新 Build。
var ErrStaleIndex = errors.New("stale history index")

const (
	// NoIndex is carried by the empty placeholder.
	NoIndex int64 = -1
	// CurrentIndex marks the in-progress expression row.
	CurrentIndex int64 = -2
)

type SlotKind int

const (
	KindUnloaded SlotKind = iota
	KindCurrentExpression
	KindPastResult
	KindEmptyPlaceholder
)

func (k SlotKind) String() string {
	switch k {
	case KindUnloaded:
		return "unloaded"
	case KindCurrentExpression:
		return "current"
	case KindPastResult:
		return "past"
	case KindEmptyPlaceholder:
		return "empty"
	default:
		return fmt.Sprintf("SlotKind(%d)", int(k))
	}
}

// Representation 是一行历史的可展示内容。
type Representation struct {
	Expr      string
	Result    string
	Timestamp time.Time
}

// Slot 是历史列表中的一行。
type Slot struct {
	Kind      SlotKind
	Index     int64
	Timestamp time.Time
	Repr      *Representation
}

// Loaded reports whether the slot carries displayable content.
func (s Slot) Loaded() bool {
	return s.Repr != nil
}

// Loader 由评估器实现，按索引加载展示内容。
type Loader interface {
	LoadDisplayRepresentation(ctx context.Context, index int64) (Representation, error)
}

// Ledger 是不可变的槽位快照，下标 0 为最新。
type Ledger struct {
	slots []Slot
}

// Build 根据评估器的显示状态生成新的 Ledger。
// maxIndex 是最新历史条目的索引，Unloaded 槽位从它开始递减编号。
func Build(hasCurrentExpression, isResultDisplayed bool, pastResultCount int, maxIndex int64) Ledger {
	if pastResultCount < 0 {
		panic(fmt.Sprintf("history: negative past result count %d", pastResultCount))
	}
	slots := make([]Slot, 0, pastResultCount+1)
	if hasCurrentExpression && !isResultDisplayed {
		slots = append(slots, Slot{Kind: KindCurrentExpression, Index: CurrentIndex})
	}
	for i := 0; i < pastResultCount; i++ {
		slots = append(slots, Slot{Kind: KindUnloaded, Index: maxIndex - int64(i)})
	}
	if len(slots) == 0 {
		slots = append(slots, Slot{Kind: KindEmptyPlaceholder, Index: NoIndex})
	}
	return Ledger{slots: slots}
}

// Len returns the number of slots.
func (l Ledger) Len() int {
	return len(l.slots)
}

// At returns the slot at position i.
func (l Ledger) At(i int) (Slot, bool) {
	if i < 0 || i >= len(l.slots) {
		return Slot{}, false
	}
	return l.slots[i], true
}

// Slots returns a copy of the slot sequence.
func (l Ledger) Slots() []Slot {
	return append([]Slot(nil), l.slots...)
}

// IsZero reports whether the ledger was never built.
func (l Ledger) IsZero() bool {
	return l.slots == nil
}

// HasCurrent reports whether position 0 holds the in-progress expression.
func (l Ledger) HasCurrent() bool {
	return len(l.slots) > 0 && l.slots[0].Kind == KindCurrentExpression
}

// WithCurrent 返回当前表达式槽位附带 repr 的副本；没有该槽位时原样返回。
func (l Ledger) WithCurrent(repr Representation) Ledger {
	if !l.HasCurrent() {
		return l
	}
	out := l.Slots()
	out[0].Repr = &repr
	out[0].Timestamp = repr.Timestamp
	return Ledger{slots: out}
}

// Replace returns a copy with position i set to s.
func (l Ledger) Replace(i int, s Slot) Ledger {
	if i < 0 || i >= len(l.slots) {
		return l
	}
	out := l.Slots()
	out[i] = s
	return Ledger{slots: out}
}

type IconState int

const (
	IconNormal IconState = iota
	IconDisabled
)

func (s IconState) String() string {
	if s == IconDisabled {
		return "disabled"
	}
	return "normal"
}

// ClearActionEnabled 决定“清空历史”是否可用。
// 只对单槽位的情况检查占位符，两个及以上槽位一律启用。
func ClearActionEnabled(l Ledger) (bool, IconState) {
	switch {
	case len(l.slots) >= 2:
		return true, IconNormal
	case len(l.slots) == 1 && l.slots[0].Kind == KindEmptyPlaceholder:
		return false, IconDisabled
	case len(l.slots) == 1:
		return true, IconNormal
	default:
		return false, IconDisabled
	}
}

// Materialize 把 Unloaded 槽位转换为 PastResult；其它槽位原样返回。
func Materialize(ctx context.Context, s Slot, loader Loader) (Slot, error) {
	if s.Kind != KindUnloaded {
		return s, nil
	}
	if loader == nil {
		return s, errors.New("history: nil loader")
	}
	repr, err := loader.LoadDisplayRepresentation(ctx, s.Index)
	if err != nil {
		return s, fmt.Errorf("materialize index %d: %w", s.Index, err)
	}
	ts := repr.Timestamp
	if ts.IsZero() {
		ts = time.Now()
		repr.Timestamp = ts
	}
	return Slot{
		Kind:      KindPastResult,
		Index:     s.Index,
		Timestamp: ts,
		Repr:      &repr,
	}, nil
}
