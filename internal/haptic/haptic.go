// Package haptic 以组合方式为可按压元素附加触感反馈。
package haptic

import (
	"io"
	"sync"

	"calc-cli/internal/logger"
)

type PressAction int

const (
	PressDown PressAction = iota
	PressUp
	PressCancel
)

type PressEvent struct {
	Action PressAction
	Key    string
}

// Handler 处理按压事件，返回值表示事件是否被消费。
type Handler interface {
	HandlePress(PressEvent) bool
}

type HandlerFunc func(PressEvent) bool

func (f HandlerFunc) HandlePress(ev PressEvent) bool {
	return f(ev)
}

type Kind int

const (
	KindVirtualKey Kind = iota
	KindLongPress
)

// Feedback is a platform haptics service.
type Feedback interface {
	Perform(Kind) error
}

var log = logger.Named("haptic")

type feedbackHandler struct {
	next     Handler
	feedback Feedback
}

// WithFeedback 在按下时立即执行反馈，不等待抬起，然后把事件透传给 h。
func WithFeedback(h Handler, f Feedback) Handler {
	if f == nil {
		f = Nop{}
	}
	return feedbackHandler{next: h, feedback: f}
}

func (h feedbackHandler) HandlePress(ev PressEvent) bool {
	if ev.Action == PressDown {
		if err := h.feedback.Perform(KindVirtualKey); err != nil {
			log.WithError(err).WithField("key", ev.Key).Debug("haptic feedback failed")
		}
	}
	if h.next == nil {
		return false
	}
	return h.next.HandlePress(ev)
}

// Nop performs no feedback.
type Nop struct{}

func (Nop) Perform(Kind) error { return nil }

// Bell writes the terminal BEL character.
type Bell struct {
	mu sync.Mutex
	W  io.Writer
}

func NewBell(w io.Writer) *Bell {
	return &Bell{W: w}
}

func (b *Bell) Perform(Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.W == nil {
		return nil
	}
	_, err := b.W.Write([]byte{'\a'})
	return err
}

// Counting records performed feedback; safe for concurrent use.
type Counting struct {
	mu    sync.Mutex
	kinds []Kind
}

func (c *Counting) Perform(k Kind) error {
	c.mu.Lock()
	c.kinds = append(c.kinds, k)
	c.mu.Unlock()
	return nil
}

func (c *Counting) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kinds)
}
