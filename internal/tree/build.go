package tree

// Command returns a leaf running verb with literal arguments.
func Command(verb string, args ...string) *Leaf {
	cmd := &SimpleCommand{Verb: Lit(verb)}
	for _, a := range args {
		cmd.Args = append(cmd.Args, Lit(a))
	}
	return &Leaf{Cmd: cmd}
}

// Seq returns left ; right.
func Seq(left, right Node) *Binary { return &Binary{Op: OpSequence, Left: left, Right: right} }

// And returns left && right.
func And(left, right Node) *Binary { return &Binary{Op: OpAndIfZero, Left: left, Right: right} }

// Or returns left || right.
func Or(left, right Node) *Binary { return &Binary{Op: OpOrIfNonzero, Left: left, Right: right} }

// Par returns left & right.
func Par(left, right Node) *Binary { return &Binary{Op: OpParallel, Left: left, Right: right} }

// Pipe returns left | right.
func Pipe(left, right Node) *Binary { return &Binary{Op: OpPipe, Left: left, Right: right} }

// Verbs lists the verb of every leaf in evaluation order.
func Verbs(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Leaf:
			out = append(out, n.Cmd.Verb.String())
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}
