package evaluator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"calc-cli/internal/events"
	"calc-cli/internal/history"
)

func commit(t *testing.T, e *Evaluator, expr string) history.Entry {
	t.Helper()
	e.SetMain(expr)
	rec, err := e.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit(%q): %v", expr, err)
	}
	return rec
}

func TestEvaluatorDisplayState(t *testing.T) {
	e := New(Options{})
	if e.HasMainExpression() || e.IsResultDisplayed() || e.PastResultCount() != 0 || e.MaxIndex() != 0 {
		t.Fatalf("fresh evaluator should be empty")
	}

	e.SetMain("1+1")
	if !e.HasMainExpression() || e.IsResultDisplayed() {
		t.Fatalf("after SetMain: has=%v displayed=%v", e.HasMainExpression(), e.IsResultDisplayed())
	}

	rec := commit(t, e, "1+1")
	if rec.Result != "2" || rec.ID == "" {
		t.Fatalf("unexpected committed entry %+v", rec)
	}
	if !e.IsResultDisplayed() || e.PastResultCount() != 1 || e.MaxIndex() != 1 {
		t.Fatalf("after Commit: displayed=%v count=%d max=%d", e.IsResultDisplayed(), e.PastResultCount(), e.MaxIndex())
	}

	e.SetMain("3")
	if e.IsResultDisplayed() {
		t.Fatalf("SetMain should leave result-displayed state")
	}
}

func TestEvaluatorCommitEmptyAndError(t *testing.T) {
	e := New(Options{})
	if _, err := e.Commit(context.Background()); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
	e.SetMain("1/0")
	if _, err := e.Commit(context.Background()); !IsKind(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if e.PastResultCount() != 0 {
		t.Fatalf("failed commit must not add history")
	}
	if _, err := e.MainResult(); err == nil {
		t.Fatalf("MainResult should report the failure")
	}
}

func TestEvaluatorLoadDisplayRepresentation(t *testing.T) {
	e := New(Options{Precision: 10})
	commit(t, e, "1/3")
	commit(t, e, "2*21")

	repr, err := e.LoadDisplayRepresentation(context.Background(), 2)
	if err != nil {
		t.Fatalf("Load(2): %v", err)
	}
	if repr.Expr != "2*21" || repr.Result != "42" {
		t.Fatalf("unexpected repr %+v", repr)
	}

	e.SetPrecision(20)
	repr, err = e.LoadDisplayRepresentation(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	if repr.Result != "0.33333333333333333333" {
		t.Fatalf("expected re-evaluation at 20 digits, got %q", repr.Result)
	}

	for _, idx := range []int64{0, 3, -1} {
		if _, err := e.LoadDisplayRepresentation(context.Background(), idx); !errors.Is(err, history.ErrStaleIndex) {
			t.Fatalf("Load(%d) expected ErrStaleIndex, got %v", idx, err)
		}
	}

	e.SetMain("7*")
	cur, err := e.LoadDisplayRepresentation(context.Background(), history.CurrentIndex)
	if err != nil || cur.Expr != "7*" {
		t.Fatalf("Load(current)=%+v err=%v", cur, err)
	}
}

func TestEvaluatorClearHistoryInvalidatesIndices(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	e := New(Options{Bus: bus})
	commit(t, e, "1")
	commit(t, e, "2")

	if err := e.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if e.PastResultCount() != 0 || e.MaxIndex() != 0 {
		t.Fatalf("history not cleared")
	}
	if _, err := e.LoadDisplayRepresentation(context.Background(), 1); !errors.Is(err, history.ErrStaleIndex) {
		t.Fatalf("expected ErrStaleIndex after clear, got %v", err)
	}
	if _, err := e.Recall(1); !errors.Is(err, history.ErrStaleIndex) {
		t.Fatalf("Recall after clear: expected ErrStaleIndex, got %v", err)
	}

	sawCleared := false
	for len(sub) > 0 {
		if evt := <-sub; evt.Kind == events.KindHistoryCleared {
			sawCleared = true
		}
	}
	if !sawCleared {
		t.Fatalf("expected history.cleared event")
	}
}

func TestEvaluatorMaxEntriesKeepsIndicesStable(t *testing.T) {
	e := New(Options{MaxEntries: 2})
	commit(t, e, "1")
	commit(t, e, "2")
	commit(t, e, "3")

	if e.PastResultCount() != 2 || e.MaxIndex() != 3 {
		t.Fatalf("count=%d max=%d want 2/3", e.PastResultCount(), e.MaxIndex())
	}
	if _, err := e.LoadDisplayRepresentation(context.Background(), 1); !errors.Is(err, history.ErrStaleIndex) {
		t.Fatalf("evicted index should be stale, got %v", err)
	}
	repr, err := e.LoadDisplayRepresentation(context.Background(), 3)
	if err != nil || repr.Expr != "3" {
		t.Fatalf("Load(3)=%+v err=%v", repr, err)
	}
}

func TestEvaluatorRecall(t *testing.T) {
	e := New(Options{})
	commit(t, e, "6*7")
	expr, err := e.Recall(1)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if expr != "6*7" || e.Main() != "6*7" || e.IsResultDisplayed() {
		t.Fatalf("Recall did not restore main: %q displayed=%v", e.Main(), e.IsResultDisplayed())
	}
}

func TestEvaluatorPersistAndRestore(t *testing.T) {
	store := history.NewStore(filepath.Join(t.TempDir(), "history.jsonl"))
	e := New(Options{Store: store})
	commit(t, e, "2+2")
	commit(t, e, "3*3")

	restored := New(Options{Store: store})
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got := restored.Entries()
	if len(got) != 2 || got[0].Expr != "2+2" || got[1].Result != "9" {
		t.Fatalf("unexpected restored entries %+v", got)
	}

	if err := restored.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	again := New(Options{Store: store})
	if err := again.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if again.PastResultCount() != 0 {
		t.Fatalf("store should be empty after ClearHistory")
	}
}

func waitFor(t *testing.T, sub <-chan events.Event, kind events.Kind, seq uint64) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-sub:
			if evt.Kind == kind && evt.Seq == seq {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s seq=%d", kind, seq)
		}
	}
}

func TestEvaluateMainAsyncPublishesResult(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	e := New(Options{Bus: bus})
	e.SetMain("12*12")

	seq := e.EvaluateMainAsync(context.Background())
	evt := waitFor(t, sub, events.KindEvalFinished, seq)
	if evt.Result != "144" || evt.Err != nil {
		t.Fatalf("unexpected event %+v", evt)
	}
	if res, err := e.MainResult(); res != "144" || err != nil {
		t.Fatalf("MainResult=%q,%v", res, err)
	}
	if repr := e.CopyMainToHistory(); repr.Expr != "12*12" || repr.Result != "144" {
		t.Fatalf("CopyMainToHistory=%+v", repr)
	}
}

func TestEvaluateMainAsyncSupersededIsCancelled(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	e := New(Options{Bus: bus})

	e.SetMain("20000!")
	first := e.EvaluateMainAsync(context.Background())
	e.SetMain("1+1")
	second := e.EvaluateMainAsync(context.Background())

	var cancelled, finished bool
	deadline := time.After(2 * time.Second)
	for !cancelled || !finished {
		select {
		case evt := <-sub:
			switch {
			case evt.Seq == first && evt.Kind == events.KindEvalCancelled:
				cancelled = true
			case evt.Seq == first && evt.Kind == events.KindEvalFinished:
				t.Fatalf("superseded evaluation must not publish a result")
			case evt.Seq == second && evt.Kind == events.KindEvalFinished:
				if evt.Result != "2" {
					t.Fatalf("unexpected result %q", evt.Result)
				}
				finished = true
			}
		case <-deadline:
			t.Fatalf("timed out: cancelled=%v finished=%v", cancelled, finished)
		}
	}
}

func TestCancelBackgroundWorkIsIdempotent(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	e := New(Options{Bus: bus})
	e.SetMain("20000!")
	seq := e.EvaluateMainAsync(context.Background())

	e.CancelBackgroundWork(true)
	e.CancelBackgroundWork(true)
	e.CancelBackgroundWork(false)
	e.CancelBackgroundWork(false)

	evt := <-waitCh(sub, seq)
	if evt.Kind != events.KindEvalCancelled && evt.Kind != events.KindEvalFinished {
		t.Fatalf("unexpected terminal event %+v", evt)
	}
}

// waitCh yields the first terminal event for seq.
func waitCh(sub <-chan events.Event, seq uint64) <-chan events.Event {
	out := make(chan events.Event, 1)
	go func() {
		for evt := range sub {
			if evt.Seq != seq {
				continue
			}
			if evt.Kind == events.KindEvalCancelled || evt.Kind == events.KindEvalFinished {
				out <- evt
				return
			}
		}
	}()
	return out
}

func pendingLoads(e *Evaluator) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.loads)
}

func TestLoadPendingAcrossClearIsStale(t *testing.T) {
	e := New(Options{Precision: 10})
	commit(t, e, "1/7")
	e.SetPrecision(30)
	e.onLoadStarted = func(int64) {
		if err := e.ClearHistory(); err != nil {
			t.Errorf("ClearHistory: %v", err)
		}
	}

	_, err := e.LoadDisplayRepresentation(context.Background(), 1)
	if !errors.Is(err, history.ErrStaleIndex) {
		t.Fatalf("expected ErrStaleIndex, got %v", err)
	}
	if n := pendingLoads(e); n != 0 {
		t.Fatalf("loads left registered: %d", n)
	}
}

func TestLoadPendingAcrossCancelReturnsCanceled(t *testing.T) {
	e := New(Options{Precision: 10})
	commit(t, e, "1/7")
	e.SetPrecision(30)
	e.onLoadStarted = func(int64) {
		if n := pendingLoads(e); n != 1 {
			t.Errorf("registered loads=%d want 1", n)
		}
		e.CancelBackgroundWork(true)
		if n := pendingLoads(e); n != 0 {
			t.Errorf("loads after cancel=%d want 0", n)
		}
	}

	_, err := e.LoadDisplayRepresentation(context.Background(), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := pendingLoads(e); n != 0 {
		t.Fatalf("loads left registered: %d", n)
	}

	// 取消不影响之后的加载
	e.onLoadStarted = nil
	repr, err := e.LoadDisplayRepresentation(context.Background(), 1)
	if err != nil || repr.Result == "0.1428571429" {
		t.Fatalf("reload repr=%+v err=%v", repr, err)
	}
}

func TestLoadPendingAcrossTrimIsStale(t *testing.T) {
	e := New(Options{Precision: 10, MaxEntries: 2})
	commit(t, e, "1/7")
	commit(t, e, "2/7")
	e.SetPrecision(30)
	e.onLoadStarted = func(int64) {
		commit(t, e, "3/7")
	}

	_, err := e.LoadDisplayRepresentation(context.Background(), 1)
	if !errors.Is(err, history.ErrStaleIndex) {
		t.Fatalf("expected ErrStaleIndex for trimmed index, got %v", err)
	}

	// 仍在窗口内的条目照常加载
	e.onLoadStarted = nil
	repr, err := e.LoadDisplayRepresentation(context.Background(), 2)
	if err != nil || repr.Expr != "2/7" {
		t.Fatalf("Load(2)=%+v err=%v", repr, err)
	}
}
