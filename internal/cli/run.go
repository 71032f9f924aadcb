package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcelocantos/minish/internal/audit"
	"github.com/marcelocantos/minish/internal/executor"
	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

// StatusSyntax is returned for lines that fail to parse.
const StatusSyntax = 2

// StatusInterrupted is returned when the context is cancelled between lines.
const StatusInterrupted = 130

// Runner reads lines, turns them into command trees and evaluates them in a
// single root session.
type Runner struct {
	exec    *executor.Executor
	session *session.Session
	audit   *audit.Logger
	log     *slog.Logger
	id      string

	// Prompt, when set, is written to the session's stderr before each line
	// read by RunScript.
	Prompt string

	exit func(code int)

	mu  sync.Mutex
	cur *line
}

// line tracks the line being evaluated so the exit hook can record it.
type line struct {
	text   string
	verbs  []string
	start  time.Time
	logged bool
}

// NewRunner wires exec to s. The executor's exit hook is wrapped so that the
// audit entry of the current line is written before the process exits.
// logger may be nil to disable auditing.
func NewRunner(exec *executor.Executor, s *session.Session, logger *audit.Logger, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Runner{
		exec:    exec,
		session: s,
		audit:   logger,
		log:     log,
		id:      uuid.NewString(),
		exit:    exec.Exit,
	}
	exec.Exit = r.exitHook
	return r
}

// ID is the session id recorded in audit entries.
func (r *Runner) ID() string { return r.id }

// Session returns the root session.
func (r *Runner) Session() *session.Session { return r.session }

// RunLine parses and evaluates one line and returns its status.
func (r *Runner) RunLine(ctx context.Context, text string) int {
	start := time.Now()

	n, err := tree.Parse(text)
	if err != nil {
		fmt.Fprintf(r.session.Stderr(), "minish: %v\n", err)
		r.logAudit(audit.Record{Line: text, ExitCode: StatusSyntax, Err: err, Duration: time.Since(start)})
		return StatusSyntax
	}
	if n == nil {
		return int(executor.Success)
	}

	cur := &line{text: text, verbs: tree.Verbs(n), start: start}
	r.mu.Lock()
	r.cur = cur
	r.mu.Unlock()

	st := r.exec.Evaluate(ctx, r.session, n, 0, nil)
	if st == executor.ShellExit {
		r.log.ErrorContext(ctx, "evaluation aborted", "line", text)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur = nil
	if !cur.logged {
		r.logAudit(audit.Record{
			Line:     text,
			Commands: cur.verbs,
			ExitCode: int(st),
			Exited:   r.session.Exited(),
			Duration: time.Since(start),
		})
	}
	return int(st)
}

// RunScript evaluates every line of in until EOF, an exit, or cancellation
// of ctx. It returns the status of the last line evaluated. With a prompt
// set the session is interactive: an interrupt ends the running children,
// not the shell, so cancellation of ctx is ignored.
func (r *Runner) RunScript(ctx context.Context, in io.Reader) int {
	if r.Prompt != "" {
		ctx = context.WithoutCancel(ctx)
	}
	status := 0
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if r.Prompt != "" {
			fmt.Fprint(r.session.Stderr(), r.Prompt)
		}
		if !sc.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return StatusInterrupted
		}
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		status = r.RunLine(ctx, text)
		if r.session.Exited() {
			return status
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(r.session.Stderr(), "minish: read: %v\n", err)
		return 1
	}
	if r.Prompt != "" {
		fmt.Fprintln(r.session.Stderr())
	}
	return status
}

// exitHook records the line being evaluated and then terminates the process.
// It may be called from any goroutine of the evaluation.
func (r *Runner) exitHook(code int) {
	r.mu.Lock()
	if cur := r.cur; cur != nil && !cur.logged {
		cur.logged = true
		rec := audit.Record{
			Line:     cur.text,
			Commands: cur.verbs,
			ExitCode: code,
			Exited:   true,
			Duration: time.Since(cur.start),
		}
		if code != 0 {
			rec.Err = errors.New("fatal: shell terminated")
		}
		r.logAudit(rec)
	}
	r.mu.Unlock()
	r.exit(code)
}

// logAudit fills the session fields of rec and writes it. Callers hold r.mu
// or are otherwise serialised with evaluation.
func (r *Runner) logAudit(rec audit.Record) {
	if r.audit == nil {
		return
	}
	rec.Session = r.id
	rec.Cwd = r.session.Dir()
	// Best-effort: a failed audit write never changes the line's status.
	if err := r.audit.Log(rec); err != nil {
		r.log.Warn("audit write failed", "err", err)
	}
}
