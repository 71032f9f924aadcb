// Package executor evaluates command trees against the operating system.
//
// Leaves run either as built-ins inside the shell process or as spawned
// programs. Sequence, AndIfZero and OrIfNonzero evaluate their children in
// order on the caller's goroutine. Parallel and Pipe run each child in a
// forked session on its own goroutine, so built-ins inside them cannot
// change the parent's directory or environment.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/marcelocantos/minish/internal/builtin"
	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

// Executor evaluates command trees.
type Executor struct {
	Builtins *builtin.Registry
	Resolver Resolver
	Log      *slog.Logger

	// Exit terminates the shell process. It is called when exit runs in the
	// root session and on unrecoverable spawn failures.
	Exit func(code int)
}

// New returns an executor using reg for built-ins. A nil logger discards.
func New(reg *builtin.Registry, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		Builtins: reg,
		Resolver: EnvResolver{},
		Log:      log,
		Exit:     os.Exit,
	}
}

// Evaluate runs n in session s and returns its status. level is the nesting
// depth and parent the enclosing node (nil at the top); both only feed the
// debug log.
func (e *Executor) Evaluate(ctx context.Context, s *session.Session, n tree.Node, level int, parent tree.Node) Status {
	if s.Exited() {
		return Success
	}

	var st Status
	switch n := n.(type) {
	case *tree.Leaf:
		st = e.executeLeaf(ctx, s, n.Cmd)
		if s.Exited() && !s.Subshell() {
			e.Exit(int(Success))
		}
	case *tree.Binary:
		st = e.evaluateBinary(ctx, s, n, level)
	default:
		e.Log.ErrorContext(ctx, "unknown command node", "type", fmt.Sprintf("%T", n), "level", level)
		return ShellExit
	}

	if e.Log.Enabled(ctx, slog.LevelDebug) {
		attrs := []any{"node", n.String(), "level", level, "status", int(st)}
		if parent != nil {
			attrs = append(attrs, "parent", parent.String())
		}
		e.Log.DebugContext(ctx, "evaluated", attrs...)
	}
	return st
}

func (e *Executor) evaluateBinary(ctx context.Context, s *session.Session, n *tree.Binary, level int) Status {
	switch n.Op {
	case tree.OpSequence:
		e.Evaluate(ctx, s, n.Left, level+1, n)
		return e.Evaluate(ctx, s, n.Right, level+1, n)

	case tree.OpAndIfZero:
		if !e.Evaluate(ctx, s, n.Left, level+1, n).OK() {
			return Failure
		}
		if !e.Evaluate(ctx, s, n.Right, level+1, n).OK() {
			return Failure
		}
		return Success

	case tree.OpOrIfNonzero:
		if e.Evaluate(ctx, s, n.Left, level+1, n).OK() {
			return Success
		}
		if e.Evaluate(ctx, s, n.Right, level+1, n).OK() {
			return Success
		}
		return Failure

	case tree.OpParallel:
		return e.runInParallel(ctx, s, n, level)

	case tree.OpPipe:
		return e.runOnPipe(ctx, s, n, level)

	default:
		e.Log.ErrorContext(ctx, "unknown operator", "op", n.Op.String(), "level", level)
		return ShellExit
	}
}
