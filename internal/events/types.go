package events

import "time"

// Kind 标识事件类型。
type Kind string

const (
	KindEvalStarted    Kind = "eval.started"
	KindEvalFinished   Kind = "eval.finished"
	KindEvalCancelled  Kind = "eval.cancelled"
	KindHistoryAdded   Kind = "history.added"
	KindHistoryCleared Kind = "history.cleared"
)

// Event is published by the evaluator whenever its display state changes.
type Event struct {
	Kind   Kind
	Index  int64
	Seq    uint64
	Expr   string
	Result string
	Err    error
	At     time.Time
}
