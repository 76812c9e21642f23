package tui

import (
	"context"
	"fmt"
	"strings"

	"calc-cli/internal/evaluator"
	"calc-cli/internal/events"
	"calc-cli/internal/features"
	"calc-cli/internal/haptic"
	"calc-cli/internal/history"
	"calc-cli/internal/historyview"
	"calc-cli/internal/logger"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var log = logger.Named("tui")

type Options struct {
	Evaluator *evaluator.Evaluator
	Events    *events.Bus
	Feedback  haptic.Feedback
	Features  map[string]bool
	// Copy 覆盖剪贴板写入，测试时使用。
	Copy func(string) error
}

type busEventMsg struct {
	Event events.Event
}

type commitMsg struct {
	Entry history.Entry
	Err   error
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	ev     *evaluator.Evaluator
	busSub <-chan events.Event
	keypad *keypad
	input  textinput.Model
	spin   spinner.Model

	coord        *historyview.Coordinator
	history      list.Model
	historyOpen  bool
	loading      map[int64]bool
	clearEnabled bool
	clearIcon    history.IconState
	filtering    bool
	filter       string

	evalSeq  uint64
	pending  bool
	preview  string
	err      error
	status   string
	showHelp bool

	livePreview  bool
	clipboardOn  bool
	fuzzyHistory bool
	copy         func(string) error

	width  int
	height int
}

func New(opts Options) *Model {
	ev := opts.Evaluator
	if ev == nil {
		ev = evaluator.New(evaluator.Options{Bus: opts.Events})
	}
	fb := opts.Feedback
	if fb == nil || !features.Enabled(opts.Features, features.Haptics) {
		fb = haptic.Nop{}
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Placeholder = "0"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.Width = 40
	ti.SetValue(ev.Main())
	ti.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(accentColor)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		ctx:          ctx,
		cancel:       cancel,
		ev:           ev,
		input:        ti,
		spin:         spin,
		coord:        historyview.New(),
		history:      newHistoryList(),
		loading:      map[int64]bool{},
		clearIcon:    history.IconDisabled,
		livePreview:  features.Enabled(opts.Features, features.LivePreview),
		clipboardOn:  features.Enabled(opts.Features, features.Clipboard),
		fuzzyHistory: features.Enabled(opts.Features, features.FuzzyHistory),
		copy:         copyFn,
		width:        60,
		height:       24,
	}
	m.keypad = newKeypad(fb, m.insert)
	if opts.Events != nil {
		m.busSub = opts.Events.Subscribe()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenBus(), textinput.Blink)
}

func (m *Model) listenBus() tea.Cmd {
	sub := m.busSub
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-sub
		if !ok {
			return nil
		}
		return busEventMsg{Event: evt}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case busEventMsg:
		cmds = append(cmds, m.handleBusEvent(msg.Event), m.listenBus())
		return m, tea.Batch(cmds...)
	case commitMsg:
		return m, m.handleCommit(msg)
	case slotLoadedMsg:
		return m, m.handleSlotLoaded(msg)
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return tea.Quit
	}
	if m.coord.ClearPending() {
		return m.handleClearConfirm(msg)
	}
	if m.historyOpen {
		return m.handleHistoryKey(msg)
	}

	switch msg.String() {
	case "?":
		m.showHelp = !m.showHelp
		return nil
	case "tab":
		return m.openHistory()
	case "enter", "=":
		return m.commit()
	case "esc":
		m.setInput("")
		return nil
	case "ctrl+y":
		return m.copyResult()
	case "backspace":
		value := []rune(m.input.Value())
		if len(value) == 0 {
			return nil
		}
		m.setInput(string(value[:len(value)-1]))
		return m.afterEdit()
	}
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.keypad.press(string(msg.Runes))
		return m.afterEdit()
	}
	return nil
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) tea.Cmd {
	if m.filtering {
		switch msg.String() {
		case "esc":
			m.filtering = false
			m.filter = ""
			return m.refreshHistory()
		case "enter":
			m.filtering = false
			return nil
		case "backspace":
			if r := []rune(m.filter); len(r) > 0 {
				m.filter = string(r[:len(r)-1])
			}
			return m.refreshHistory()
		}
		if msg.Type == tea.KeyRunes {
			m.filter += string(msg.Runes)
			return m.refreshHistory()
		}
		return nil
	}

	switch msg.String() {
	case "tab", "esc":
		m.closeHistory()
		return nil
	case "enter":
		m.recallSelected()
		return nil
	case "ctrl+x":
		if !m.coord.RequestClear() {
			m.status = "nothing to clear"
		}
		return nil
	case "/":
		if m.fuzzyHistory {
			m.filtering = true
		}
		return nil
	}
	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return tea.Batch(cmd, m.loadVisible())
}

func (m *Model) handleClearConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y", "enter":
		if err := m.coord.ConfirmClear(); err != nil {
			m.err = err
		}
		m.status = "history cleared"
		m.loading = map[int64]bool{}
		return m.refreshHistory()
	case "n", "N", "esc":
		m.coord.CancelClear()
	}
	return nil
}

// insert 追加按键文本。结果显示状态下，运算符接在结果之后，其它输入开始新表达式。
func (m *Model) insert(text string) {
	value := m.input.Value()
	if m.ev.IsResultDisplayed() {
		if isOperator(text) {
			if res, err := m.ev.MainResult(); err == nil && res != "" {
				value = res
			}
		} else {
			value = ""
		}
	}
	m.setInput(value + text)
}

func isOperator(text string) bool {
	switch text {
	case "+", "-", "*", "/", "^", "%", "!":
		return true
	}
	return false
}

func (m *Model) setInput(value string) {
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.ev.SetMain(value)
	m.preview = ""
	m.err = nil
	m.status = ""
}

func (m *Model) afterEdit() tea.Cmd {
	if !m.livePreview || !m.ev.HasMainExpression() {
		m.pending = false
		return nil
	}
	m.evalSeq = m.ev.EvaluateMainAsync(m.ctx)
	m.pending = true
	return m.spin.Tick
}

func (m *Model) commit() tea.Cmd {
	if !m.ev.HasMainExpression() {
		return nil
	}
	ev, ctx := m.ev, m.ctx
	m.pending = true
	return func() tea.Msg {
		rec, err := ev.Commit(ctx)
		return commitMsg{Entry: rec, Err: err}
	}
}

func (m *Model) handleCommit(msg commitMsg) tea.Cmd {
	m.pending = false
	if msg.Err != nil {
		m.err = msg.Err
		return nil
	}
	m.err = nil
	m.preview = msg.Entry.Result
	if m.historyOpen {
		_ = m.coord.Rebuild()
		return m.refreshHistory()
	}
	return nil
}

func (m *Model) handleBusEvent(evt events.Event) tea.Cmd {
	switch evt.Kind {
	case events.KindEvalFinished:
		if evt.Index != evaluator.MainIndex || evt.Seq != m.evalSeq {
			return nil
		}
		m.pending = false
		if evt.Err != nil {
			m.preview = ""
			return nil
		}
		m.preview = evt.Result
	case events.KindEvalCancelled:
		if evt.Seq == m.evalSeq {
			m.pending = false
		}
	case events.KindHistoryAdded, events.KindHistoryCleared:
		if m.historyOpen {
			if err := m.coord.Rebuild(); err != nil {
				return nil
			}
			m.loading = map[int64]bool{}
			return m.refreshHistory()
		}
	}
	return nil
}

func (m *Model) copyResult() tea.Cmd {
	if !m.clipboardOn {
		return nil
	}
	res, err := m.ev.MainResult()
	if err != nil || res == "" {
		res = m.preview
	}
	if res == "" {
		m.status = "nothing to copy"
		return nil
	}
	if err := m.copy(res); err != nil {
		m.err = fmt.Errorf("copy: %w", err)
		return nil
	}
	m.status = "copied " + res
	return nil
}

// shutdown 关闭历史面板并取消所有后台求值。
func (m *Model) shutdown() {
	m.closeHistory()
	m.ev.CancelBackgroundWork(false)
	m.cancel()
}

func (m *Model) resize(width, height int) {
	m.width = maxInt(30, width)
	m.height = maxInt(10, height)
	m.input.Width = maxInt(10, m.width-8)
	m.history.SetSize(maxInt(10, m.historyWidth()-4), maxInt(4, m.height-8))
}

func (m *Model) historyWidth() int {
	return maxInt(30, m.width-2)
}

func (m *Model) View() string {
	display := m.displayView()
	if m.coord.ClearPending() {
		overlay := modalStyle.Render("Clear history?\n[y] clear • [n] cancel")
		return lipgloss.JoinVertical(lipgloss.Left, m.historyView(), overlay)
	}
	if m.historyOpen {
		return lipgloss.JoinVertical(lipgloss.Left, display, m.historyView())
	}
	content := lipgloss.JoinVertical(lipgloss.Left, display, m.keypad.view(), m.statusLine())
	if m.showHelp {
		help := strings.Join([]string{
			"Keys",
			"enter/= evaluate • esc clear • backspace delete • tab history",
			"ctrl+y copy result • ? help • ctrl+c quit",
		}, "\n")
		return lipgloss.JoinVertical(lipgloss.Left, content, modalStyle.Render(help))
	}
	return content
}

func (m *Model) displayView() string {
	lines := []string{m.input.View()}
	switch {
	case m.err != nil:
		lines = append(lines, errorStyle.Render(m.err.Error()))
	case m.pending:
		lines = append(lines, m.spin.View())
	case m.preview != "":
		lines = append(lines, resultStyle.Render("= "+m.preview))
	default:
		lines = append(lines, "")
	}
	return renderPane("calc", strings.Join(lines, "\n"), maxInt(30, m.width-2))
}

func (m *Model) statusLine() string {
	parts := []string{fmt.Sprintf("precision %d", m.ev.Precision())}
	if n := m.ev.PastResultCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d in history", n))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return hintStyle.Width(maxInt(20, m.width)).Render(strings.Join(parts, " • "))
}
