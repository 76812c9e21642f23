package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"calc-cli/internal/events"
	"calc-cli/internal/history"
	"calc-cli/internal/logger"

	"github.com/google/uuid"
)

// MainIndex 是正在编辑的主表达式。历史条目索引从 1 开始，MaxIndex 为最新。
const MainIndex int64 = 0

const (
	defaultDigits     = 40
	defaultTimeout    = 5 * time.Second
	defaultMaxEntries = 500
)

type Options struct {
	Precision  int
	Timeout    time.Duration
	MaxEntries int
	Bus        *events.Bus
	// Store is optional; nil disables persistence.
	Store *history.Store
}

type entry struct {
	id     string
	expr   string
	result string
	ts     time.Time

	cached       string
	cachedDigits int
}

// Evaluator 持有主表达式与历史结果，负责可取消的后台求值。
type Evaluator struct {
	mu         sync.Mutex
	digits     int
	timeout    time.Duration
	maxEntries int
	bus        *events.Bus
	store      *history.Store
	log        *logger.LogEntry

	main            string
	mainResult      string
	mainErr         error
	resultDisplayed bool
	mainSeq         uint64
	mainCancel      context.CancelFunc

	entries    []entry
	base       int64
	generation uint64

	nextLoad uint64
	loads    map[uint64]context.CancelFunc
	// onLoadStarted 在加载登记之后、求值之前调用（不持锁），仅测试使用。
	onLoadStarted func(index int64)
}

func New(opts Options) *Evaluator {
	if opts.Precision <= 0 {
		opts.Precision = defaultDigits
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	return &Evaluator{
		digits:     opts.Precision,
		timeout:    opts.Timeout,
		maxEntries: opts.MaxEntries,
		bus:        opts.Bus,
		store:      opts.Store,
		log:        logger.Named("evaluator"),
		loads:      map[uint64]context.CancelFunc{},
	}
}

// Restore 从持久化存储加载历史。没有 Store 时为空操作。
func (e *Evaluator) Restore() error {
	if e.store == nil {
		return nil
	}
	stored, err := e.store.Load(e.maxEntries)
	if err != nil {
		return fmt.Errorf("restore history: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = e.entries[:0]
	e.base = 0
	for _, s := range stored {
		e.entries = append(e.entries, entry{id: s.ID, expr: s.Expr, result: s.Result, ts: s.TS})
	}
	e.generation++
	e.log.WithField("entries", len(e.entries)).Info("history restored")
	return nil
}

func (e *Evaluator) Precision() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.digits
}

// SetPrecision changes the digit count; cached history representations are recomputed lazily.
func (e *Evaluator) SetPrecision(digits int) {
	if digits <= 0 {
		return
	}
	e.mu.Lock()
	e.digits = digits
	e.mu.Unlock()
}

func (e *Evaluator) Main() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.main
}

// MainResult returns the latest result of the main expression.
func (e *Evaluator) MainResult() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mainResult, e.mainErr
}

// SetMain 替换主表达式，并退出“结果显示”状态。
func (e *Evaluator) SetMain(expr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mainCancel != nil {
		e.mainCancel()
		e.mainCancel = nil
	}
	e.mainSeq++
	e.main = expr
	e.mainResult = ""
	e.mainErr = nil
	e.resultDisplayed = false
}

func (e *Evaluator) HasMainExpression() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.TrimSpace(e.main) != ""
}

func (e *Evaluator) IsResultDisplayed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultDisplayed
}

func (e *Evaluator) PastResultCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Evaluator) MaxIndex() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base + int64(len(e.entries))
}

// Evaluate 以当前精度和超时同步求值，不改变任何状态。
func (e *Evaluator) Evaluate(ctx context.Context, expr string) (string, error) {
	e.mu.Lock()
	digits, timeout := e.digits, e.timeout
	e.mu.Unlock()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Eval(runCtx, expr, digits)
}

// EvaluateMainAsync 在后台求值主表达式，新的调用会取消尚未完成的上一次求值。
// 结果通过事件总线发布，返回本次求值序号。
func (e *Evaluator) EvaluateMainAsync(ctx context.Context) uint64 {
	e.mu.Lock()
	if e.mainCancel != nil {
		e.mainCancel()
	}
	e.mainSeq++
	seq := e.mainSeq
	expr, digits := e.main, e.digits
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	e.mainCancel = cancel
	e.mu.Unlock()

	e.bus.Publish(events.Event{Kind: events.KindEvalStarted, Index: MainIndex, Seq: seq, Expr: expr})
	go func() {
		defer cancel()
		result, err := Eval(runCtx, expr, digits)

		e.mu.Lock()
		current := seq == e.mainSeq
		if current {
			e.mainCancel = nil
			if !errors.Is(err, context.Canceled) {
				e.mainResult, e.mainErr = result, err
			}
		}
		e.mu.Unlock()

		if !current || errors.Is(err, context.Canceled) {
			e.bus.Publish(events.Event{Kind: events.KindEvalCancelled, Index: MainIndex, Seq: seq, Expr: expr})
			return
		}
		e.bus.Publish(events.Event{Kind: events.KindEvalFinished, Index: MainIndex, Seq: seq, Expr: expr, Result: result, Err: err})
	}()
	return seq
}

// Commit 求值主表达式并追加到历史，之后进入“结果显示”状态。
func (e *Evaluator) Commit(ctx context.Context) (history.Entry, error) {
	expr := strings.TrimSpace(e.Main())
	if expr == "" {
		return history.Entry{}, ErrEmptyExpression
	}
	result, err := e.Evaluate(ctx, expr)
	if err != nil {
		e.mu.Lock()
		e.mainErr = err
		e.mu.Unlock()
		return history.Entry{}, err
	}
	rec := history.Entry{ID: uuid.NewString(), Expr: expr, Result: result, TS: time.Now()}
	if e.store != nil {
		if _, err := e.store.Append(rec); err != nil {
			e.log.WithError(err).Warn("persist history entry failed")
		}
	}

	e.mu.Lock()
	if e.mainCancel != nil {
		e.mainCancel()
		e.mainCancel = nil
	}
	e.mainResult, e.mainErr = result, nil
	e.resultDisplayed = true
	e.entries = append(e.entries, entry{
		id: rec.ID, expr: rec.Expr, result: rec.Result, ts: rec.TS,
		cached: result, cachedDigits: e.digits,
	})
	if over := len(e.entries) - e.maxEntries; over > 0 {
		e.entries = append([]entry(nil), e.entries[over:]...)
		e.base += int64(over)
	}
	index := e.base + int64(len(e.entries))
	e.mu.Unlock()

	e.bus.Publish(events.Event{Kind: events.KindHistoryAdded, Index: index, Expr: expr, Result: result})
	return rec, nil
}

// CopyMainToHistory 生成主表达式的快照，用作历史列表中的“当前表达式”行。
func (e *Evaluator) CopyMainToHistory() history.Representation {
	e.mu.Lock()
	defer e.mu.Unlock()
	repr := history.Representation{Expr: e.main, Timestamp: time.Now()}
	if e.mainErr == nil {
		repr.Result = e.mainResult
	}
	return repr
}

// LoadDisplayRepresentation 以当前精度重新计算 index 对应的历史条目。
// 条目不存在或加载期间历史被清空时返回 history.ErrStaleIndex。
func (e *Evaluator) LoadDisplayRepresentation(ctx context.Context, index int64) (history.Representation, error) {
	if index == history.CurrentIndex {
		return e.CopyMainToHistory(), nil
	}

	e.mu.Lock()
	ent, ok := e.lookupLocked(index)
	if !ok {
		e.mu.Unlock()
		return history.Representation{}, fmt.Errorf("index %d: %w", index, history.ErrStaleIndex)
	}
	digits := e.digits
	if ent.cached != "" && ent.cachedDigits == digits {
		e.mu.Unlock()
		return history.Representation{Expr: ent.expr, Result: ent.cached, Timestamp: ent.ts}, nil
	}
	gen := e.generation
	e.nextLoad++
	id := e.nextLoad
	loadCtx, cancel := context.WithTimeout(ctx, e.timeout)
	e.loads[id] = cancel
	hook := e.onLoadStarted
	e.mu.Unlock()

	if hook != nil {
		hook(index)
	}
	result, err := Eval(loadCtx, ent.expr, digits)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.loads, id)
	if gen != e.generation {
		return history.Representation{}, fmt.Errorf("index %d: %w", index, history.ErrStaleIndex)
	}
	// max_history 裁剪不改 generation，需要重新定位
	pos, ok := e.positionLocked(index)
	if !ok || e.entries[pos].id != ent.id {
		return history.Representation{}, fmt.Errorf("index %d: %w", index, history.ErrStaleIndex)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return history.Representation{}, err
		}
		e.log.WithError(err).WithField("index", index).Warn("re-evaluation failed, using stored result")
		result = ent.result
	}
	e.entries[pos].cached = result
	e.entries[pos].cachedDigits = digits
	return history.Representation{Expr: ent.expr, Result: result, Timestamp: ent.ts}, nil
}

func (e *Evaluator) positionLocked(index int64) (int64, bool) {
	pos := index - e.base - 1
	if pos < 0 || pos >= int64(len(e.entries)) {
		return 0, false
	}
	return pos, true
}

func (e *Evaluator) lookupLocked(index int64) (entry, bool) {
	pos, ok := e.positionLocked(index)
	if !ok {
		return entry{}, false
	}
	return e.entries[pos], true
}

// CancelBackgroundWork 取消后台加载；excludingPrimary 为 false 时同时取消主表达式求值。
// 可重复调用。
func (e *Evaluator) CancelBackgroundWork(excludingPrimary bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.loads)
	for id, cancel := range e.loads {
		cancel()
		delete(e.loads, id)
	}
	if !excludingPrimary && e.mainCancel != nil {
		e.mainCancel()
		e.mainCancel = nil
	}
	if n > 0 {
		e.log.WithField("loads", n).Debug("cancelled background work")
	}
}

// ClearHistory 清空历史并使所有进行中的加载失效。
func (e *Evaluator) ClearHistory() error {
	e.mu.Lock()
	n := len(e.entries)
	e.entries = nil
	e.base = 0
	e.generation++
	for id, cancel := range e.loads {
		cancel()
		delete(e.loads, id)
	}
	e.mu.Unlock()

	var err error
	if e.store != nil {
		err = e.store.Clear()
	}
	e.log.WithField("entries", n).Info("history cleared")
	e.bus.Publish(events.Event{Kind: events.KindHistoryCleared})
	return err
}

// Recall 把历史条目的表达式放回主表达式。
func (e *Evaluator) Recall(index int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.lookupLocked(index)
	if !ok {
		return "", fmt.Errorf("index %d: %w", index, history.ErrStaleIndex)
	}
	e.main = ent.expr
	e.mainResult, e.mainErr = "", nil
	e.resultDisplayed = false
	return ent.expr, nil
}

// Entries returns the history oldest first.
func (e *Evaluator) Entries() []history.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]history.Entry, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, history.Entry{ID: ent.id, Expr: ent.expr, Result: ent.result, TS: ent.ts})
	}
	return out
}
