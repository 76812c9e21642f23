package evaluator

import (
	"context"
	"math"
	"math/big"
	"strings"
)

const (
	// MaxExponent bounds |y| in x^y.
	MaxExponent = 1 << 20
	// MaxFactorial bounds n in n!.
	MaxFactorial = 20000

	checkEvery = 64
)

var constants = map[string]string{
	"pi": "3.1415926535897932384626433832795028841971693993751058209749445923078164062862089986280348253421170679",
	"π":  "3.1415926535897932384626433832795028841971693993751058209749445923078164062862089986280348253421170679",
	"e":  "2.7182818284590452353602874713526624977572470936999595749669676277240766303535475945713821785251664274",
}

// PrecisionBits converts decimal digits into a big.Float mantissa size with guard bits.
func PrecisionBits(digits int) uint {
	if digits <= 0 {
		digits = 1
	}
	return uint(math.Ceil(float64(digits)*math.Log2(10))) + 16
}

type evalState struct {
	ctx  context.Context
	prec uint
}

// Eval 解析并以 digits 位十进制精度求值 input，返回格式化后的结果。
func Eval(ctx context.Context, input string, digits int) (string, error) {
	v, err := EvalFloat(ctx, input, digits)
	if err != nil {
		return "", err
	}
	return Format(v, digits), nil
}

// EvalFloat is Eval without formatting.
func EvalFloat(ctx context.Context, input string, digits int) (*big.Float, error) {
	n, err := Parse(input)
	if err != nil {
		return nil, err
	}
	st := &evalState{ctx: ctx, prec: PrecisionBits(digits)}
	return st.eval(n)
}

func (st *evalState) newFloat() *big.Float {
	return new(big.Float).SetPrec(st.prec)
}

func (st *evalState) eval(n node) (*big.Float, error) {
	if err := st.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case numberNode:
		v, ok := st.newFloat().SetString(n.text)
		if !ok {
			return nil, newError(ErrSyntax, n.at, "bad number %q", n.text)
		}
		return v, nil
	case constNode:
		v, _ := st.newFloat().SetString(constants[n.name])
		return v, nil
	case unaryNode:
		v, err := st.eval(n.operand)
		if err != nil {
			return nil, err
		}
		return st.newFloat().Neg(v), nil
	case postfixNode:
		v, err := st.eval(n.operand)
		if err != nil {
			return nil, err
		}
		if n.op == tokPercent {
			return st.newFloat().Quo(v, big.NewFloat(100)), nil
		}
		return st.factorial(v, n.at)
	case callNode:
		v, err := st.eval(n.arg)
		if err != nil {
			return nil, err
		}
		if err := finite(v, n.at); err != nil {
			return nil, err
		}
		switch n.name {
		case "sqrt":
			if v.Sign() < 0 {
				return nil, newError(ErrDomain, n.at, "square root of negative number")
			}
			return st.newFloat().Sqrt(v), nil
		case "abs":
			return st.newFloat().Abs(v), nil
		}
		return nil, newError(ErrSyntax, n.at, "unknown function %q", n.name)
	case binaryNode:
		left, err := st.eval(n.left)
		if err != nil {
			return nil, err
		}
		right, err := st.eval(n.right)
		if err != nil {
			return nil, err
		}
		return st.binary(n, left, right)
	}
	return nil, newError(ErrSyntax, n.pos(), "unsupported node")
}

// finite rejects ±Inf. big.Float panics on Inf-Inf, Inf*0 and Inf/Inf, so no
// infinite value may reach another operation.
func finite(v *big.Float, at int) error {
	if v.IsInf() {
		return newError(ErrOverflow, at, "result too large")
	}
	return nil
}

func (st *evalState) binary(n binaryNode, left, right *big.Float) (*big.Float, error) {
	if err := finite(left, n.at); err != nil {
		return nil, err
	}
	if err := finite(right, n.at); err != nil {
		return nil, err
	}
	z := st.newFloat()
	switch n.op {
	case tokPlus:
		z.Add(left, right)
	case tokMinus:
		z.Sub(left, right)
	case tokMul:
		z.Mul(left, right)
	case tokDiv:
		if right.Sign() == 0 {
			return nil, newError(ErrDivisionByZero, n.at, "")
		}
		z.Quo(left, right)
	case tokPow:
		p, err := st.pow(left, right, n.at)
		if err != nil {
			return nil, err
		}
		z = p
	default:
		return nil, newError(ErrSyntax, n.at, "unknown operator")
	}
	if err := finite(z, n.at); err != nil {
		return nil, err
	}
	return z, nil
}

// pow 只支持整数指数，使用平方乘法并定期检查 ctx。
func (st *evalState) pow(base, exp *big.Float, at int) (*big.Float, error) {
	if !exp.IsInt() {
		return nil, newError(ErrDomain, at, "non-integer exponent")
	}
	e, acc := exp.Int64()
	if acc != big.Exact || e > MaxExponent || e < -MaxExponent {
		return nil, newError(ErrOverflow, at, "exponent too large")
	}
	neg := e < 0
	if neg {
		e = -e
	}
	if neg && base.Sign() == 0 {
		return nil, newError(ErrDivisionByZero, at, "zero to a negative power")
	}
	result := st.newFloat().SetInt64(1)
	sq := st.newFloat().Set(base)
	for steps := 0; e > 0; steps++ {
		if steps%checkEvery == 0 {
			if err := st.ctx.Err(); err != nil {
				return nil, err
			}
		}
		if e&1 == 1 {
			result.Mul(result, sq)
		}
		e >>= 1
		if e > 0 {
			sq.Mul(sq, sq)
		}
		if result.IsInf() || sq.IsInf() {
			return nil, newError(ErrOverflow, at, "result too large")
		}
	}
	if neg {
		return st.newFloat().Quo(st.newFloat().SetInt64(1), result), nil
	}
	return result, nil
}

func (st *evalState) factorial(v *big.Float, at int) (*big.Float, error) {
	if !v.IsInt() || v.Sign() < 0 {
		return nil, newError(ErrDomain, at, "factorial of non-natural number")
	}
	n, acc := v.Int64()
	if acc != big.Exact || n > MaxFactorial {
		return nil, newError(ErrOverflow, at, "factorial argument too large")
	}
	prod := big.NewInt(1)
	for i := int64(2); i <= n; i++ {
		if i%checkEvery == 0 {
			if err := st.ctx.Err(); err != nil {
				return nil, err
			}
		}
		prod.Mul(prod, big.NewInt(i))
	}
	return st.newFloat().SetInt(prod), nil
}

// Format 把结果格式化为最多 digits 位有效数字的字符串。
func Format(v *big.Float, digits int) string {
	if v == nil {
		return ""
	}
	if digits <= 0 {
		digits = 1
	}
	if v.Sign() == 0 {
		return "0"
	}
	if v.IsInt() {
		s := v.Text('f', 0)
		if len(strings.TrimPrefix(s, "-")) <= digits {
			return s
		}
	}
	return trimZeros(v.Text('g', digits))
}

func trimZeros(s string) string {
	mant, exp := s, ""
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, exp = s[:i], s[i:]
	}
	if strings.Contains(mant, ".") {
		mant = strings.TrimRight(mant, "0")
		mant = strings.TrimSuffix(mant, ".")
	}
	return mant + exp
}
