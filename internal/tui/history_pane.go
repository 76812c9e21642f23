package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"calc-cli/internal/history"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// loadWindow 是光标附近需要物化的行数。
const loadWindow = 12

type slotItem struct {
	pos   int
	slot  history.Slot
	width int
}

func (i slotItem) Title() string {
	var text string
	switch i.slot.Kind {
	case history.KindEmptyPlaceholder:
		text = "No history yet"
	case history.KindUnloaded:
		text = "…"
	case history.KindCurrentExpression:
		text = "▸ " + i.expr()
	default:
		text = i.expr()
	}
	return truncate(text, i.width)
}

func (i slotItem) Description() string {
	if i.slot.Repr == nil {
		return ""
	}
	parts := []string{}
	if i.slot.Repr.Result != "" {
		parts = append(parts, "= "+i.slot.Repr.Result)
	}
	if !i.slot.Timestamp.IsZero() {
		parts = append(parts, i.slot.Timestamp.Format("15:04:05"))
	}
	return truncate(strings.Join(parts, "  "), i.width)
}

func (i slotItem) FilterValue() string {
	if i.slot.Repr == nil {
		return ""
	}
	return i.slot.Repr.Expr + " " + i.slot.Repr.Result
}

func (i slotItem) expr() string {
	if i.slot.Repr == nil {
		return ""
	}
	return i.slot.Repr.Expr
}

func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

type slotLoadedMsg struct {
	pos  int
	slot history.Slot
	err  error
}

func newHistoryList() list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 12)
	l.Title = "History"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

func (m *Model) openHistory() tea.Cmd {
	if err := m.coord.Attach(m.ev); err != nil {
		m.err = err
		return nil
	}
	if err := m.coord.Activate(); err != nil {
		m.err = err
		return nil
	}
	m.historyOpen = true
	m.filter = ""
	m.filtering = false
	return m.refreshHistory()
}

func (m *Model) closeHistory() {
	if !m.historyOpen {
		return
	}
	if err := m.coord.Detach(); err != nil {
		log.WithError(err).Warn("detach history pane")
	}
	m.historyOpen = false
	m.filtering = false
	m.filter = ""
	m.loading = map[int64]bool{}
	m.history.SetItems(nil)
}

// refreshHistory 从协调器快照重建列表项，并为光标附近的行发起物化。
func (m *Model) refreshHistory() tea.Cmd {
	slots := m.coord.Slots()
	width := maxInt(10, m.historyWidth()-4)
	items := make([]list.Item, 0, len(slots))
	for pos, s := range slots {
		items = append(items, slotItem{pos: pos, slot: s, width: width})
	}
	if m.filter != "" {
		items = fuzzyFilter(items, m.filter)
	}
	cmd := m.history.SetItems(items)
	m.clearEnabled, m.clearIcon = m.coord.ClearAction()
	return tea.Batch(cmd, m.loadVisible())
}

func (m *Model) loadVisible() tea.Cmd {
	items := m.history.Items()
	if len(items) == 0 {
		return nil
	}
	idx := m.history.Index()
	start := maxInt(0, idx-loadWindow/2)
	end := start + loadWindow
	if end > len(items) {
		end = len(items)
	}
	var cmds []tea.Cmd
	for _, it := range items[start:end] {
		si, ok := it.(slotItem)
		if !ok || si.slot.Kind != history.KindUnloaded || m.loading[si.slot.Index] {
			continue
		}
		m.loading[si.slot.Index] = true
		cmds = append(cmds, m.materializeCmd(si.pos))
	}
	return tea.Batch(cmds...)
}

func (m *Model) materializeCmd(pos int) tea.Cmd {
	coord := m.coord
	ctx := m.ctx
	return func() tea.Msg {
		slot, err := coord.Materialize(ctx, pos)
		return slotLoadedMsg{pos: pos, slot: slot, err: err}
	}
}

func (m *Model) handleSlotLoaded(msg slotLoadedMsg) tea.Cmd {
	delete(m.loading, msg.slot.Index)
	if !m.historyOpen {
		return nil
	}
	if msg.err != nil {
		if errors.Is(msg.err, history.ErrStaleIndex) {
			m.loading = map[int64]bool{}
			return m.refreshHistory()
		}
		if !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		return nil
	}
	return m.refreshHistory()
}

func (m *Model) recallSelected() {
	si, ok := m.history.SelectedItem().(slotItem)
	if !ok {
		return
	}
	switch si.slot.Kind {
	case history.KindPastResult, history.KindUnloaded:
		expr, err := m.ev.Recall(si.slot.Index)
		if err != nil {
			m.err = err
			return
		}
		m.setInput(expr)
	case history.KindCurrentExpression:
	default:
		return
	}
	m.closeHistory()
}

// fuzzyFilter keeps loaded rows matching pattern, best match first.
func fuzzyFilter(items []list.Item, pattern string) []list.Item {
	data := make([]string, 0, len(items))
	candidates := make([]list.Item, 0, len(items))
	for _, it := range items {
		if v := it.FilterValue(); v != "" {
			data = append(data, strings.ToLower(v))
			candidates = append(candidates, it)
		}
	}
	matches := fuzzy.Find(strings.ToLower(pattern), data)
	out := make([]list.Item, 0, len(matches))
	for _, match := range matches {
		out = append(out, candidates[match.Index])
	}
	return out
}

func (m *Model) historyView() string {
	menu := menuEnabledStyle.Render("[clear]")
	if m.clearIcon == history.IconDisabled {
		menu = menuDisabledStyle.Render("[clear]")
	}
	hint := "enter recall • ctrl+x clear • tab close"
	if !m.clearEnabled {
		hint = "enter recall • tab close"
	}
	if m.fuzzyHistory {
		hint += " • / filter"
	}
	header := fmt.Sprintf("%s  %s", menu, hintStyle.Render(hint))
	body := m.history.View()
	if m.filtering || m.filter != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, "/"+m.filter, body)
	}
	return renderPane("History", lipgloss.JoinVertical(lipgloss.Left, header, body), m.historyWidth())
}
