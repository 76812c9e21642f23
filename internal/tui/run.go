package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Result 返回 TUI 退出时的必要信息。
type Result struct {
	Expression string
	Result     string
	Committed  int
}

// Run 封装 Bubble Tea 入口。
func Run(opts Options) (Result, error) {
	program := tea.NewProgram(New(opts), tea.WithAltScreen())
	m, err := program.Run()
	if err != nil {
		return Result{}, err
	}
	tuiModel, ok := m.(*Model)
	if !ok {
		return Result{}, errors.New("unexpected tui model")
	}
	res, _ := tuiModel.ev.MainResult()
	return Result{
		Expression: tuiModel.ev.Main(),
		Result:     res,
		Committed:  tuiModel.ev.PastResultCount(),
	}, nil
}
