package eval

import (
	"fmt"
	"strconv"
)

// AST node types. The grammar is deliberately closed: literals, one bound
// identifier, indexing, allow-listed method calls, comparisons, arithmetic,
// boolean masks, and map literals.
type node interface{ node() }

type identNode struct{ name string }

type numberNode struct{ val float64 }

type stringNode struct{ val string }

type boolNode struct{ val bool }

type mapNode struct {
	keys []string
	vals []node
}

type indexNode struct {
	x   node
	arg node
}

type callNode struct {
	x      node
	method string
	args   []node
}

type binaryNode struct {
	op   string
	l, r node
}

type unaryNode struct {
	op string
	x  node
}

func (identNode) node()  {}
func (numberNode) node() {}
func (stringNode) node() {}
func (boolNode) node()   {}
func (mapNode) node()    {}
func (indexNode) node()  {}
func (callNode) node()   {}
func (binaryNode) node() {}
func (unaryNode) node()  {}

type parser struct {
	toks []token
	pos  int
}

// parse compiles the expression source to an AST.
func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, text string) (token, error) {
	t := p.peek()
	if t.kind != kind || (text != "" && t.text != text) {
		return t, fmt.Errorf("expected %q, got %q at position %d", text, t.text, t.pos)
	}
	return p.next(), nil
}

func (p *parser) accept(kind tokenKind, text string) bool {
	t := p.peek()
	if t.kind == kind && t.text == text {
		p.next()
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOp, "|") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: "|", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOp, "&") {
		r, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: "&", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseCmp() (node, error) {
	l, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", ">", "<=", ">=":
			p.next()
			r, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return binaryNode{op: t.text, l: l, r: r}, nil
		}
	}
	return l, nil
}

func (p *parser) parseAdd() (node, error) {
	l, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind == tokOp && (t.text == "+" || t.text == "-") {
			p.next()
			r, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			l = binaryNode{op: t.text, l: l, r: r}
			continue
		}
		return l, nil
	}
}

func (p *parser) parseMul() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind == tokOp && (t.text == "*" || t.text == "/") {
			p.next()
			r, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			l = binaryNode{op: t.text, l: l, r: r}
			continue
		}
		return l, nil
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "!") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: t.text, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept(tokPunct, "["):
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, "]"); err != nil {
				return nil, err
			}
			x = indexNode{x: x, arg: arg}
		case p.accept(tokPunct, "."):
			name, err := p.expect(tokIdent, "")
			if err != nil {
				return nil, fmt.Errorf("expected method name after '.': %w", err)
			}
			// "str" is a pandas-ism the model sometimes emits; it is a
			// transparent pass-through here (df["c"].str.contains(...)).
			if name.text == "str" && p.peek().kind == tokPunct && p.peek().text == "." {
				continue
			}
			if _, err := p.expect(tokPunct, "("); err != nil {
				return nil, fmt.Errorf("method %q must be called", name.text)
			}
			var args []node
			if !p.accept(tokPunct, ")") {
				for {
					a, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.accept(tokPunct, ",") {
						continue
					}
					if _, err := p.expect(tokPunct, ")"); err != nil {
						return nil, err
					}
					break
				}
			}
			x = callNode{x: x, method: name.text, args: args}
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", t.text, err)
		}
		return numberNode{val: f}, nil
	case tokString:
		p.next()
		return stringNode{val: t.text}, nil
	case tokIdent:
		p.next()
		switch t.text {
		case "True", "true":
			return boolNode{val: true}, nil
		case "False", "false":
			return boolNode{val: false}, nil
		}
		return identNode{name: t.text}, nil
	case tokPunct:
		switch t.text {
		case "(":
			p.next()
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, ")"); err != nil {
				return nil, err
			}
			return n, nil
		case "{":
			return p.parseMap()
		}
	}
	return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
}

func (p *parser) parseMap() (node, error) {
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	m := mapNode{}
	if p.accept(tokPunct, "}") {
		return m, nil
	}
	for {
		k, err := p.expect(tokString, "")
		if err != nil {
			return nil, fmt.Errorf("map keys must be strings: %w", err)
		}
		if _, err := p.expect(tokPunct, ":"); err != nil {
			return nil, err
		}
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		m.keys = append(m.keys, k.text)
		m.vals = append(m.vals, v)
		if p.accept(tokPunct, ",") {
			continue
		}
		if _, err := p.expect(tokPunct, "}"); err != nil {
			return nil, err
		}
		return m, nil
	}
}
