package tui

import (
	"calc-cli/internal/haptic"

	"github.com/charmbracelet/lipgloss"
)

type button struct {
	label  string
	insert string
}

var keypadRows = [][]button{
	{{"(", "("}, {")", ")"}, {"^", "^"}, {"√", "sqrt("}},
	{{"7", "7"}, {"8", "8"}, {"9", "9"}, {"÷", "/"}},
	{{"4", "4"}, {"5", "5"}, {"6", "6"}, {"×", "*"}},
	{{"1", "1"}, {"2", "2"}, {"3", "3"}, {"−", "-"}},
	{{"0", "0"}, {".", "."}, {"%", "%"}, {"+", "+"}},
}

// keypad 把每个按钮包装为带触感反馈的 haptic.Handler。
type keypad struct {
	feedback haptic.Feedback
	onInsert func(string)
	byInsert map[string]haptic.Handler
	pressed  string
}

func newKeypad(fb haptic.Feedback, onInsert func(string)) *keypad {
	k := &keypad{feedback: fb, onInsert: onInsert, byInsert: map[string]haptic.Handler{}}
	for _, row := range keypadRows {
		for _, b := range row {
			k.byInsert[b.insert] = haptic.WithFeedback(k.buttonHandler(b), fb)
		}
	}
	return k
}

func (k *keypad) buttonHandler(b button) haptic.HandlerFunc {
	return func(ev haptic.PressEvent) bool {
		switch ev.Action {
		case haptic.PressDown:
			k.pressed = b.label
			return false
		case haptic.PressUp:
			k.onInsert(b.insert)
			return true
		default:
			k.pressed = ""
			return true
		}
	}
}

// press 模拟一次完整的按下/抬起。不在键盘上的输入也会获得反馈。
func (k *keypad) press(text string) {
	h, ok := k.byInsert[text]
	if !ok {
		k.pressed = ""
		h = haptic.WithFeedback(haptic.HandlerFunc(func(ev haptic.PressEvent) bool {
			if ev.Action == haptic.PressUp {
				k.onInsert(text)
				return true
			}
			return false
		}), k.feedback)
	}
	h.HandlePress(haptic.PressEvent{Action: haptic.PressDown, Key: text})
	h.HandlePress(haptic.PressEvent{Action: haptic.PressUp, Key: text})
}

func (k *keypad) view() string {
	rows := make([]string, 0, len(keypadRows))
	for _, row := range keypadRows {
		cells := make([]string, 0, len(row))
		for _, b := range row {
			style := buttonStyle
			if b.label == k.pressed {
				style = pressedButtonStyle
			}
			cells = append(cells, style.Render(b.label))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
