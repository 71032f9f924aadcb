package tree

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrUnsupported is wrapped by every error for shell syntax that has no
// command tree equivalent.
var ErrUnsupported = errors.New("unsupported syntax")

// Parse parses one line of shell input into a command tree.
// An empty line or a comment yields a nil tree.
func Parse(line string) (Node, error) {
	f, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, err
	}
	return FromFile(f)
}

// FromFile converts a parsed shell file into a command tree.
func FromFile(f *syntax.File) (Node, error) {
	return fromStmts(f.Stmts)
}

func unsupported(n syntax.Node, what string) error {
	return fmt.Errorf("%s: %w: %s", n.Pos(), ErrUnsupported, what)
}

// fromStmts folds a statement list. Statements joined by & form a Parallel
// chain; those chains are joined by Sequence. A trailing & with nothing after
// it runs in the foreground.
func fromStmts(stmts []*syntax.Stmt) (Node, error) {
	var seq, par Node
	for i, st := range stmts {
		n, err := fromStmt(st)
		if err != nil {
			return nil, err
		}
		if par == nil {
			par = n
		} else {
			par = Par(par, n)
		}
		if st.Background && i < len(stmts)-1 {
			continue
		}
		if seq == nil {
			seq = par
		} else {
			seq = Seq(seq, par)
		}
		par = nil
	}
	return seq, nil
}

func fromStmt(st *syntax.Stmt) (Node, error) {
	switch {
	case st.Negated:
		return nil, unsupported(st, "negation")
	case st.Coprocess:
		return nil, unsupported(st, "coprocess")
	case st.Cmd == nil:
		return nil, unsupported(st, "redirection without command")
	}

	switch cmd := st.Cmd.(type) {
	case *syntax.CallExpr:
		return fromCall(st, cmd)
	case *syntax.BinaryCmd:
		if len(st.Redirs) > 0 {
			return nil, unsupported(st, "redirection of a compound command")
		}
		return fromBinary(cmd)
	case *syntax.Block:
		if len(st.Redirs) > 0 {
			return nil, unsupported(st, "redirection of a compound command")
		}
		n, err := fromStmts(cmd.Stmts)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, unsupported(cmd, "empty block")
		}
		return n, nil
	default:
		return nil, unsupported(st, fmt.Sprintf("%T", cmd))
	}
}

func fromBinary(cmd *syntax.BinaryCmd) (Node, error) {
	var op Op
	switch cmd.Op {
	case syntax.AndStmt:
		op = OpAndIfZero
	case syntax.OrStmt:
		op = OpOrIfNonzero
	case syntax.Pipe:
		op = OpPipe
	default:
		return nil, unsupported(cmd, cmd.Op.String())
	}
	left, err := fromStmt(cmd.X)
	if err != nil {
		return nil, err
	}
	right, err := fromStmt(cmd.Y)
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

func fromCall(st *syntax.Stmt, call *syntax.CallExpr) (Node, error) {
	if len(call.Args) == 0 {
		if len(st.Redirs) > 0 {
			return nil, unsupported(st, "redirection of an assignment")
		}
		return fromAssigns(call.Assigns)
	}
	if len(call.Assigns) > 0 {
		return nil, unsupported(call.Assigns[0], "per-command assignment")
	}

	words := make([]Word, 0, len(call.Args))
	for _, a := range call.Args {
		w, err := fromWord(a)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	cmd := &SimpleCommand{Verb: words[0], Args: words[1:]}
	for _, r := range st.Redirs {
		if err := applyRedirect(cmd, r); err != nil {
			return nil, err
		}
	}
	return &Leaf{Cmd: cmd}, nil
}

// fromAssigns turns NAME=VALUE statements into leaves whose verb is the
// assignment itself, sequenced in source order.
func fromAssigns(assigns []*syntax.Assign) (Node, error) {
	var n Node
	for _, as := range assigns {
		if as.Append || as.Naked || as.Index != nil || as.Array != nil || as.Name == nil {
			return nil, unsupported(as, "assignment form")
		}
		verb := Lit(as.Name.Value + "=")
		if as.Value != nil {
			v, err := fromWord(as.Value)
			if err != nil {
				return nil, err
			}
			verb = Concat(verb, v)
		}
		leaf := &Leaf{Cmd: &SimpleCommand{Verb: verb}}
		if n == nil {
			n = leaf
		} else {
			n = Seq(n, leaf)
		}
	}
	return n, nil
}

func applyRedirect(cmd *SimpleCommand, r *syntax.Redirect) error {
	fd := ""
	if r.N != nil {
		fd = r.N.Value
	}
	if r.Word == nil {
		return unsupported(r, r.Op.String())
	}
	w, err := fromWord(r.Word)
	if err != nil {
		return err
	}

	switch {
	case r.Op == syntax.RdrIn && (fd == "" || fd == "0"):
		cmd.In = w.Ptr()
	case (r.Op == syntax.RdrOut || r.Op == syntax.ClbOut) && (fd == "" || fd == "1"):
		cmd.Out, cmd.OutAppend = w.Ptr(), false
	case (r.Op == syntax.RdrOut || r.Op == syntax.ClbOut) && fd == "2":
		cmd.Err, cmd.ErrAppend = w.Ptr(), false
	case r.Op == syntax.AppOut && (fd == "" || fd == "1"):
		cmd.Out, cmd.OutAppend = w.Ptr(), true
	case r.Op == syntax.AppOut && fd == "2":
		cmd.Err, cmd.ErrAppend = w.Ptr(), true
	case r.Op == syntax.RdrAll && fd == "":
		cmd.Out, cmd.Err = w.Ptr(), w.Ptr()
		cmd.OutAppend, cmd.ErrAppend = false, false
	case r.Op == syntax.AppAll && fd == "":
		cmd.Out, cmd.Err = w.Ptr(), w.Ptr()
		cmd.OutAppend, cmd.ErrAppend = true, true
	default:
		return unsupported(r, fd+r.Op.String())
	}
	return nil
}

func fromWord(w *syntax.Word) (Word, error) {
	var out Word
	for _, part := range w.Parts {
		if err := appendPart(&out, part, false); err != nil {
			return Word{}, err
		}
	}
	return out, nil
}

func appendPart(out *Word, part syntax.WordPart, quoted bool) error {
	switch part := part.(type) {
	case *syntax.Lit:
		out.Parts = append(out.Parts, Part{Kind: PartLiteral, Value: unescape(part.Value, quoted)})
	case *syntax.SglQuoted:
		if part.Dollar {
			return unsupported(part, "$'...' quoting")
		}
		out.Parts = append(out.Parts, Part{Kind: PartLiteral, Value: part.Value})
	case *syntax.DblQuoted:
		if part.Dollar {
			return unsupported(part, `$"..." quoting`)
		}
		if len(part.Parts) == 0 {
			out.Parts = append(out.Parts, Part{Kind: PartLiteral})
		}
		for _, inner := range part.Parts {
			if err := appendPart(out, inner, true); err != nil {
				return err
			}
		}
	case *syntax.ParamExp:
		if part.Param == nil || part.Excl || part.Length || part.Width ||
			part.Index != nil || part.Slice != nil || part.Repl != nil ||
			part.Names != 0 || part.Exp != nil {
			return unsupported(part, "parameter expansion")
		}
		out.Parts = append(out.Parts, Part{Kind: PartParam, Value: part.Param.Value})
	default:
		return unsupported(part, fmt.Sprintf("%T", part))
	}
	return nil
}

// unescape drops the backslashes the parser leaves in literal text. Inside
// double quotes only \$ \` \" \\ and line continuations are escapes.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch {
		case next == '\n':
			i++
		case !quoted || strings.IndexByte("$`\"\\", next) >= 0:
			b.WriteByte(next)
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
