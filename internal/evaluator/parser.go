package evaluator

import "strings"

type node interface {
	pos() int
}

type numberNode struct {
	at   int
	text string
}

type constNode struct {
	at   int
	name string
}

type unaryNode struct {
	at      int
	op      tokenKind
	operand node
}

type binaryNode struct {
	at          int
	op          tokenKind
	left, right node
}

type postfixNode struct {
	at      int
	op      tokenKind
	operand node
}

type callNode struct {
	at   int
	name string
	arg  node
}

func (n numberNode) pos() int  { return n.at }
func (n constNode) pos() int   { return n.at }
func (n unaryNode) pos() int   { return n.at }
func (n binaryNode) pos() int  { return n.at }
func (n postfixNode) pos() int { return n.at }
func (n callNode) pos() int    { return n.at }

var functions = map[string]bool{
	"sqrt": true,
	"abs":  true,
}

type parser struct {
	toks []token
	i    int
}

// Parse 解析表达式。输入末尾未闭合的括号视为隐式闭合。
func Parse(input string) (node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyExpression
	}
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, newError(ErrSyntax, t.pos, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// expr := term (('+'|'-') term)*
func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{at: t.pos, op: t.kind, left: left, right: right}
	}
}

// term := unary (('*'|'/'|implicit) unary)*
func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op := t.kind
		switch t.kind {
		case tokMul, tokDiv:
			p.next()
		case tokLParen, tokIdent, tokSqrt:
			op = tokMul
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{at: t.pos, op: op, left: left, right: right}
	}
}

// unary := ('-'|'+') unary | power
func (p *parser) unary() (node, error) {
	t := p.peek()
	if t.kind == tokMinus || t.kind == tokPlus {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPlus {
			return operand, nil
		}
		return unaryNode{at: t.pos, op: tokMinus, operand: operand}, nil
	}
	return p.power()
}

// power := postfix ('^' unary)?  right associative, binds tighter than unary minus.
func (p *parser) power() (node, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokPow {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return binaryNode{at: t.pos, op: tokPow, left: base, right: exp}, nil
}

// postfix := primary ('!'|'%')*
func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokBang && t.kind != tokPercent {
			return n, nil
		}
		p.next()
		n = postfixNode{at: t.pos, op: t.kind, operand: n}
	}
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode{at: t.pos, text: t.text}, nil
	case tokSqrt:
		arg, err := p.postfix()
		if err != nil {
			return nil, err
		}
		return callNode{at: t.pos, name: "sqrt", arg: arg}, nil
	case tokIdent:
		if functions[t.text] {
			if p.peek().kind != tokLParen {
				return nil, newError(ErrSyntax, p.peek().pos, "expected '(' after %s", t.text)
			}
			p.next()
			arg, err := p.group()
			if err != nil {
				return nil, err
			}
			return callNode{at: t.pos, name: t.text, arg: arg}, nil
		}
		if _, ok := constants[t.text]; ok {
			return constNode{at: t.pos, name: t.text}, nil
		}
		return nil, newError(ErrSyntax, t.pos, "unknown identifier %q", t.text)
	case tokLParen:
		return p.group()
	case tokEOF:
		return nil, newError(ErrSyntax, t.pos, "unexpected end of expression")
	default:
		return nil, newError(ErrSyntax, t.pos, "unexpected %q", t.text)
	}
}

// group parses the body after '(' and accepts a missing ')' at end of input.
func (p *parser) group() (node, error) {
	inner, err := p.expr()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.kind {
	case tokRParen:
		p.next()
	case tokEOF:
	default:
		return nil, newError(ErrSyntax, t.pos, "expected ')'")
	}
	return inner, nil
}
