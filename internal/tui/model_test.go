package tui

import (
	"errors"
	"strings"
	"testing"

	"calc-cli/internal/evaluator"
	"calc-cli/internal/features"
	"calc-cli/internal/haptic"
	"calc-cli/internal/history"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) (*Model, *haptic.Counting, *[]string) {
	t.Helper()
	fb := &haptic.Counting{}
	copied := []string{}
	m := New(Options{
		Evaluator: evaluator.New(evaluator.Options{Precision: 12}),
		Feedback:  fb,
		Features:  map[string]bool{features.LivePreview: false, features.FuzzyHistory: true},
		Copy: func(s string) error {
			copied = append(copied, s)
			return nil
		},
	})
	m.resize(80, 30)
	return m, fb, &copied
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(runes(string(r)))
	}
}

// drain 同步执行命令链，只保留本包关心的消息。
func drain(m *Model, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case commitMsg, slotLoadedMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(m *Model, key tea.KeyType) {
	_, cmd := m.Update(tea.KeyMsg{Type: key})
	drain(m, cmd)
}

func TestTypingGivesFeedbackPerKey(t *testing.T) {
	m, fb, _ := newTestModel(t)
	typeText(m, "12+3")
	if got := m.input.Value(); got != "12+3" {
		t.Fatalf("input=%q", got)
	}
	if m.ev.Main() != "12+3" {
		t.Fatalf("evaluator main=%q", m.ev.Main())
	}
	if fb.Count() != 4 {
		t.Fatalf("feedback count=%d want 4", fb.Count())
	}
}

func TestHapticsFeatureOffUsesNop(t *testing.T) {
	fb := &haptic.Counting{}
	m := New(Options{
		Evaluator: evaluator.New(evaluator.Options{}),
		Feedback:  fb,
		Features:  map[string]bool{features.Haptics: false, features.LivePreview: false},
	})
	typeText(m, "7")
	if fb.Count() != 0 {
		t.Fatalf("feedback should be disabled, count=%d", fb.Count())
	}
}

func TestCommitShowsResultAndContinuesWithOperator(t *testing.T) {
	m, _, _ := newTestModel(t)
	typeText(m, "1+1")
	press(m, tea.KeyEnter)
	if m.preview != "2" || m.err != nil {
		t.Fatalf("preview=%q err=%v", m.preview, m.err)
	}
	if !m.ev.IsResultDisplayed() {
		t.Fatalf("result should be displayed after commit")
	}

	typeText(m, "*")
	if got := m.input.Value(); got != "2*" {
		t.Fatalf("operator after result should continue from it, got %q", got)
	}

	typeText(m, "3")
	press(m, tea.KeyEnter)
	typeText(m, "9")
	if got := m.input.Value(); got != "9" {
		t.Fatalf("digit after result should start fresh, got %q", got)
	}
}

func TestCommitErrorIsShown(t *testing.T) {
	m, _, _ := newTestModel(t)
	typeText(m, "1/0")
	press(m, tea.KeyEnter)
	if !evaluator.IsKind(m.err, evaluator.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", m.err)
	}
	if !strings.Contains(m.View(), "division") {
		t.Fatalf("view should show the error")
	}
}

func TestBackspaceAndEscape(t *testing.T) {
	m, _, _ := newTestModel(t)
	typeText(m, "42")
	press(m, tea.KeyBackspace)
	if m.input.Value() != "4" {
		t.Fatalf("after backspace %q", m.input.Value())
	}
	press(m, tea.KeyEsc)
	if m.input.Value() != "" || m.ev.HasMainExpression() {
		t.Fatalf("esc should clear the expression")
	}
}

func TestHistoryPaneLifecycle(t *testing.T) {
	m, _, _ := newTestModel(t)
	for _, expr := range []string{"1+2", "3*3"} {
		m.setInput(expr)
		press(m, tea.KeyEnter)
	}

	press(m, tea.KeyTab)
	if !m.historyOpen {
		t.Fatalf("tab should open history")
	}
	items := m.history.Items()
	// 结果显示状态下不显示当前表达式行
	if len(items) != 2 {
		t.Fatalf("items=%d want 2", len(items))
	}
	for _, it := range items {
		si := it.(slotItem)
		if si.slot.Kind != history.KindPastResult {
			t.Fatalf("visible rows should be materialized, got %v", si.slot.Kind)
		}
	}
	if !m.clearEnabled {
		t.Fatalf("clear should be enabled with history")
	}
	if !strings.Contains(m.View(), "3*3") {
		t.Fatalf("history view should list entries")
	}

	press(m, tea.KeyTab)
	if m.historyOpen || m.coord.State().String() != "detached" {
		t.Fatalf("tab should close and detach")
	}
}

func TestHistoryShowsCurrentExpressionWhileEditing(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.setInput("8+8")
	press(m, tea.KeyEnter)
	typeText(m, "4")

	press(m, tea.KeyTab)
	items := m.history.Items()
	if len(items) != 2 {
		t.Fatalf("items=%d want 2", len(items))
	}
	first := items[0].(slotItem)
	if first.slot.Kind != history.KindCurrentExpression || first.expr() != "4" {
		t.Fatalf("first row should be the current expression, got %+v", first.slot)
	}
}

func TestHistoryRecall(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.setInput("5-1")
	press(m, tea.KeyEnter)
	m.setInput("")

	press(m, tea.KeyTab)
	if len(m.history.Items()) != 1 {
		t.Fatalf("items=%d want 1", len(m.history.Items()))
	}
	press(m, tea.KeyEnter)
	if m.historyOpen {
		t.Fatalf("recall should close history")
	}
	if m.input.Value() != "5-1" || m.ev.Main() != "5-1" {
		t.Fatalf("recall input=%q main=%q", m.input.Value(), m.ev.Main())
	}
}

func TestHistoryClearFlow(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.setInput("2^10")
	press(m, tea.KeyEnter)
	m.setInput("")
	press(m, tea.KeyTab)

	press(m, tea.KeyCtrlX)
	if !m.coord.ClearPending() {
		t.Fatalf("ctrl+x should request confirmation")
	}
	m.Update(runes("n"))
	if m.coord.ClearPending() || m.ev.PastResultCount() != 1 {
		t.Fatalf("n should cancel")
	}

	press(m, tea.KeyCtrlX)
	_, cmd := m.Update(runes("y"))
	drain(m, cmd)
	if m.ev.PastResultCount() != 0 {
		t.Fatalf("history not cleared")
	}
	items := m.history.Items()
	if len(items) != 1 || items[0].(slotItem).slot.Kind != history.KindEmptyPlaceholder {
		t.Fatalf("expected placeholder row, got %+v", items)
	}
	if m.clearEnabled || m.clearIcon != history.IconDisabled {
		t.Fatalf("clear should be disabled on empty history")
	}
	press(m, tea.KeyCtrlX)
	if m.coord.ClearPending() {
		t.Fatalf("disabled clear must not prompt")
	}
}

func TestHistoryFuzzyFilter(t *testing.T) {
	m, _, _ := newTestModel(t)
	for _, expr := range []string{"sqrt(16)", "7*6", "sqrt(81)"} {
		m.setInput(expr)
		press(m, tea.KeyEnter)
	}
	m.setInput("")
	press(m, tea.KeyTab)

	m.Update(runes("/"))
	if !m.filtering {
		t.Fatalf("/ should start filtering")
	}
	_, cmd := m.Update(runes("sq"))
	drain(m, cmd)
	if got := len(m.history.Items()); got != 2 {
		t.Fatalf("filtered items=%d want 2", got)
	}
	press(m, tea.KeyEsc)
	if m.filtering || len(m.history.Items()) != 3 {
		t.Fatalf("esc should drop the filter, items=%d", len(m.history.Items()))
	}
}

func TestCopyResult(t *testing.T) {
	m, _, copied := newTestModel(t)
	press(m, tea.KeyCtrlY)
	if len(*copied) != 0 || m.status != "nothing to copy" {
		t.Fatalf("nothing should be copied, got %v", *copied)
	}
	typeText(m, "6*7")
	press(m, tea.KeyEnter)
	press(m, tea.KeyCtrlY)
	if len(*copied) != 1 || (*copied)[0] != "42" {
		t.Fatalf("copied=%v", *copied)
	}

	m.copy = func(string) error { return errors.New("no clipboard") }
	press(m, tea.KeyCtrlY)
	if m.err == nil {
		t.Fatalf("copy failure should surface")
	}
}

func TestCtrlCQuitsAndDetaches(t *testing.T) {
	m, _, _ := newTestModel(t)
	press(m, tea.KeyTab)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if m.historyOpen || m.ctx.Err() == nil {
		t.Fatalf("shutdown should detach and cancel background work")
	}
}
