package executor

import (
	"io"
	"os"

	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

const (
	truncFlags  = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	appendFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
)

// target is a resolved redirection path. A present target whose path is
// empty fails to open rather than meaning "no redirection".
type target struct {
	path string
	app  bool
}

// redirects are a leaf's redirection targets; nil means not redirected.
type redirects struct {
	in, out, err *target
}

func (e *Executor) resolveRedirects(s *session.Session, cmd *tree.SimpleCommand) redirects {
	var rd redirects
	if cmd.In != nil {
		rd.in = &target{path: e.Resolver.Resolve(s, *cmd.In)}
	}
	if cmd.Out != nil {
		rd.out = &target{path: e.Resolver.Resolve(s, *cmd.Out), app: cmd.OutAppend}
	}
	if cmd.Err != nil {
		rd.err = &target{path: e.Resolver.Resolve(s, *cmd.Err), app: cmd.ErrAppend}
	}
	return rd
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// redirector builds the descriptor table for a child process. Every file it
// opens is owned by the redirector and released by Close, which is safe to
// call more than once.
type redirector struct {
	s      *session.Session
	files  []*os.File
	opened listCloser
}

func newRedirector(s *session.Session) *redirector {
	return &redirector{s: s, files: s.Files()}
}

func (r *redirector) open(path string, flag int, fds ...int) error {
	name := path
	if name != "" {
		name = r.s.Abs(name)
	}
	f, err := os.OpenFile(name, flag, 0644)
	if err != nil {
		return err
	}
	r.opened = append(r.opened, f)
	for _, fd := range fds {
		r.files[fd] = f
	}
	return nil
}

// apply installs rd in precedence order: input; then stdout and stderr
// truncated together when they name the same path; otherwise each
// truncating target on its own; finally the appending targets.
func (r *redirector) apply(rd redirects) error {
	if rd.in != nil {
		if err := r.open(rd.in.path, os.O_RDONLY, 0); err != nil {
			return err
		}
	}

	out, errT := rd.out, rd.err
	if out != nil && errT != nil && out.path == errT.path && !out.app && !errT.app {
		if err := r.open(out.path, truncFlags, 1, 2); err != nil {
			return err
		}
	} else {
		if out != nil && !out.app {
			if err := r.open(out.path, truncFlags, 1); err != nil {
				return err
			}
		}
		if errT != nil && !errT.app {
			if err := r.open(errT.path, truncFlags, 2); err != nil {
				return err
			}
		}
	}

	if out != nil && out.app {
		if err := r.open(out.path, appendFlags, 1); err != nil {
			return err
		}
	}
	if errT != nil && errT.app {
		if err := r.open(errT.path, appendFlags, 2); err != nil {
			return err
		}
	}
	return nil
}

// stderr is the effective standard error, after any redirection so far.
func (r *redirector) stderr() io.Writer {
	if f := r.files[2]; f != nil {
		return f
	}
	return io.Discard
}

func (r *redirector) Close() error {
	err := r.opened.Close()
	r.opened = nil
	return err
}
