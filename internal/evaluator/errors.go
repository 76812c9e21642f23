package evaluator

import (
	"errors"
	"fmt"
)

// ErrEmptyExpression is returned when there is nothing to evaluate.
var ErrEmptyExpression = errors.New("empty expression")

type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrDivisionByZero
	ErrDomain
	ErrOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrDivisionByZero:
		return "division by zero"
	case ErrDomain:
		return "domain error"
	case ErrOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// EvalError 携带出错位置（字节偏移）与错误类别。
type EvalError struct {
	Kind ErrorKind
	Pos  int
	Msg  string
}

func (e *EvalError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s at %d", e.Kind, e.Pos)
	}
	return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Msg)
}

func newError(kind ErrorKind, pos int, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *EvalError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ee *EvalError
	return errors.As(err, &ee) && ee.Kind == kind
}
