package tree

import (
	"fmt"
	"strings"
)

// Op is the operator of a Binary node.
type Op int

const (
	OpSequence    Op = iota + 1 // run left, then right
	OpOrIfNonzero               // run right only if left failed
	OpAndIfZero                 // run right only if left succeeded
	OpParallel                  // run left and right concurrently
	OpPipe                      // left stdout → right stdin
)

func (o Op) String() string {
	switch o {
	case OpSequence:
		return ";"
	case OpOrIfNonzero:
		return "||"
	case OpAndIfZero:
		return "&&"
	case OpParallel:
		return "&"
	case OpPipe:
		return "|"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Node is a command tree node: either *Leaf or *Binary.
type Node interface {
	fmt.Stringer
	node()
}

// Leaf is a single command with its redirections.
type Leaf struct {
	Cmd *SimpleCommand
}

// Binary combines two subtrees under one operator.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Leaf) node()   {}
func (*Binary) node() {}

func (l *Leaf) String() string { return l.Cmd.String() }

// String renders b as shell text. A child that binds looser than b, or a
// right child of equal precedence with a different operator, is wrapped in
// { ...; } so the text reads back as the same tree.
func (b *Binary) String() string {
	return fmt.Sprintf("%s %s %s", b.child(b.Left, false), b.Op, b.child(b.Right, true))
}

func (b *Binary) child(n Node, right bool) string {
	c, ok := n.(*Binary)
	if !ok {
		return n.String()
	}
	p, cp := b.Op.precedence(), c.Op.precedence()
	if cp < p || (right && cp == p && c.Op != b.Op) {
		return "{ " + c.String() + "; }"
	}
	return c.String()
}

// precedence orders operators from loosest (;) to tightest (|).
func (o Op) precedence() int {
	switch o {
	case OpSequence:
		return 0
	case OpParallel:
		return 1
	case OpAndIfZero, OpOrIfNonzero:
		return 2
	default:
		return 3
	}
}

// SimpleCommand is a verb, its arguments and optional redirection targets.
// OutAppend and ErrAppend select append instead of truncate for the
// corresponding target.
type SimpleCommand struct {
	Verb Word
	Args []Word

	In  *Word
	Out *Word
	Err *Word

	OutAppend bool
	ErrAppend bool
}

func (c *SimpleCommand) String() string {
	var b strings.Builder
	b.WriteString(c.Verb.String())
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	if c.In != nil {
		fmt.Fprintf(&b, " < %s", c.In)
	}
	switch {
	case c.Out != nil && c.Err != nil && c.Out.String() == c.Err.String() && c.OutAppend == c.ErrAppend:
		if c.OutAppend {
			fmt.Fprintf(&b, " &>> %s", c.Out)
		} else {
			fmt.Fprintf(&b, " &> %s", c.Out)
		}
	default:
		if c.Out != nil {
			fmt.Fprintf(&b, " %s %s", redirOp(">", c.OutAppend), c.Out)
		}
		if c.Err != nil {
			fmt.Fprintf(&b, " 2%s %s", redirOp(">", c.ErrAppend), c.Err)
		}
	}
	return b.String()
}

func redirOp(op string, app bool) string {
	if app {
		return op + op
	}
	return op
}

// PartKind distinguishes literal text from a parameter reference.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartParam
)

// Part is one piece of a Word.
type Part struct {
	Kind  PartKind
	Value string // literal text, or the parameter name
}

// Word is an unresolved command word. It is turned into a string by a
// resolver immediately before use.
type Word struct {
	Parts []Part
}

// Lit returns a word made of a single literal.
func Lit(s string) Word {
	return Word{Parts: []Part{{Kind: PartLiteral, Value: s}}}
}

// Param returns a word referencing the named parameter.
func Param(name string) Word {
	return Word{Parts: []Part{{Kind: PartParam, Value: name}}}
}

// Concat joins the parts of several words into one.
func Concat(words ...Word) Word {
	var w Word
	for _, x := range words {
		w.Parts = append(w.Parts, x.Parts...)
	}
	return w
}

func (w Word) String() string {
	var b strings.Builder
	for _, p := range w.Parts {
		switch p.Kind {
		case PartParam:
			b.WriteString("$" + p.Value)
		default:
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

// Ptr returns a pointer to w, for the optional redirection fields.
func (w Word) Ptr() *Word { return &w }
