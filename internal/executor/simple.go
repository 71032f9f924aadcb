package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/minish/internal/builtin"
	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

// executeLeaf runs one simple command: a built-in, an environment
// assignment, or an external program. Built-ins and assignments never leave
// the session's goroutine.
func (e *Executor) executeLeaf(ctx context.Context, s *session.Session, cmd *tree.SimpleCommand) Status {
	verb := e.Resolver.Resolve(s, cmd.Verb)
	args := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = e.Resolver.Resolve(s, a)
	}

	if b, ok := e.Builtins.Lookup(verb); ok {
		inv := &builtin.Invocation{Name: verb, Args: args}
		if cmd.Out != nil {
			inv.Out = e.Resolver.Resolve(s, *cmd.Out)
			inv.OutAppend = cmd.OutAppend
		}
		if err := b.Run(ctx, s, inv); err != nil {
			e.Log.DebugContext(ctx, "builtin failed", "name", verb, "err", err)
			return Failure
		}
		return Success
	}

	if name, value, ok := strings.Cut(verb, "="); ok {
		if err := s.Setenv(name, value); err != nil {
			e.Log.DebugContext(ctx, "assignment failed", "name", name, "err", err)
			return Failure
		}
		return Success
	}

	argv := append([]string{verb}, args...)
	return e.spawn(ctx, s, argv, e.resolveRedirects(s, cmd))
}

// systemShell runs executable files the kernel refuses to load.
const systemShell = "/bin/sh"

var startProcess = os.StartProcess

// spawn starts argv[0] with the session's directory and environment and the
// descriptor table built from rd, then waits for it.
func (e *Executor) spawn(ctx context.Context, s *session.Session, argv []string, rd redirects) Status {
	r := newRedirector(s)
	defer r.Close()

	if err := r.apply(rd); err != nil {
		fmt.Fprintf(r.stderr(), "minish: %v\n", err)
		return Failure
	}

	path, err := s.LookPath(argv[0])
	if err != nil {
		e.execFailed(ctx, r, argv[0], err)
		return Failure
	}

	attr := &os.ProcAttr{
		Dir:   s.Dir(),
		Env:   s.Environ(),
		Files: r.files,
	}
	proc, err := startProcess(path, argv, attr)
	if errors.Is(err, unix.ENOEXEC) {
		// No interpreter line: hand the file to the system shell, as execvp does.
		proc, err = startProcess(systemShell, append([]string{"sh", path}, argv[1:]...), attr)
	}
	if err != nil {
		if isSpawnFailure(err) {
			fmt.Fprintf(os.Stderr, "minish: fork: %v\n", err)
			e.Exit(int(Failure))
			return Failure
		}
		e.execFailed(ctx, r, argv[0], err)
		return Failure
	}

	// The child holds its own copies now.
	r.Close()

	state, err := proc.Wait()
	if err != nil {
		e.Log.ErrorContext(ctx, "wait failed", "pid", proc.Pid, "err", err)
		return Failure
	}
	if !state.Exited() {
		e.Log.DebugContext(ctx, "abnormal termination", "cmd", argv[0], "state", state.String())
	}
	return statusOf(state)
}

func (e *Executor) execFailed(ctx context.Context, r *redirector, name string, err error) {
	e.Log.DebugContext(ctx, "exec failed", "cmd", name, "err", err)
	fmt.Fprintf(r.stderr(), "Execution failed for '%s'\n", name)
}

// isSpawnFailure reports whether err means no process could be created at
// all, as opposed to the program failing to load.
func isSpawnFailure(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM)
}
