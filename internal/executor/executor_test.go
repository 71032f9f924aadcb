package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/marcelocantos/minish/internal/builtin"
	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

// harness runs trees in a root session whose working directory is a fresh
// temp dir and whose stdout/stderr are captured in files outside it.
type harness struct {
	t       *testing.T
	dir     string
	exec    *Executor
	sess    *session.Session
	outPath string
	errPath string
	exits   []int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	chdir(t, dir)

	capture := t.TempDir()
	h := &harness{
		t:       t,
		dir:     dir,
		outPath: filepath.Join(capture, "stdout"),
		errPath: filepath.Join(capture, "stderr"),
	}

	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(h.outPath)
	require.NoError(t, err)
	stderr, err := os.Create(h.errPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		stdin.Close()
		stdout.Close()
		stderr.Close()
	})

	h.sess, err = session.New(stdin, stdout, stderr)
	require.NoError(t, err)

	reg := builtin.NewRegistry()
	builtin.RegisterAll(reg)
	h.exec = New(reg, nil)
	h.exec.Exit = func(code int) { h.exits = append(h.exits, code) }
	return h
}

func (h *harness) run(n tree.Node) Status {
	h.t.Helper()
	return h.exec.Evaluate(context.Background(), h.sess, n, 0, nil)
}

func (h *harness) stdout() string {
	h.t.Helper()
	data, err := os.ReadFile(h.outPath)
	require.NoError(h.t, err)
	return string(data)
}

func (h *harness) stderr() string {
	h.t.Helper()
	data, err := os.ReadFile(h.errPath)
	require.NoError(h.t, err)
	return string(data)
}

func (h *harness) read(name string) string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(h.t, err)
	return string(data)
}

func sh(script string) *tree.Leaf { return tree.Command("sh", "-c", script) }

func withOut(l *tree.Leaf, path string, app bool) *tree.Leaf {
	l.Cmd.Out = tree.Lit(path).Ptr()
	l.Cmd.OutAppend = app
	return l
}

func withErr(l *tree.Leaf, path string, app bool) *tree.Leaf {
	l.Cmd.Err = tree.Lit(path).Ptr()
	l.Cmd.ErrAppend = app
	return l
}

func withIn(l *tree.Leaf, path string) *tree.Leaf {
	l.Cmd.In = tree.Lit(path).Ptr()
	return l
}

func assign(kv string) *tree.Leaf {
	return &tree.Leaf{Cmd: &tree.SimpleCommand{Verb: tree.Lit(kv)}}
}

func TestSequenceRunsBothAndReturnsRight(t *testing.T) {
	h := newHarness(t)

	st := h.run(tree.Seq(sh("echo a >> log; exit 3"), sh("echo b >> log")))
	assert.Equal(t, Success, st)
	assert.Equal(t, "a\nb\n", h.read("log"))

	assert.Equal(t, Status(5), h.run(tree.Seq(tree.Command("true"), sh("exit 5"))))
}

func TestAndIfZero(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Failure, h.run(tree.And(tree.Command("false"), tree.Command("echo", "x"))))
	assert.Empty(t, h.stdout(), "right side must not run")

	assert.Equal(t, Failure, h.run(tree.And(tree.Command("true"), sh("exit 7"))))
	assert.Equal(t, Failure, h.run(tree.And(sh("exit 9"), tree.Command("true"))))
	assert.Equal(t, Success, h.run(tree.And(tree.Command("true"), tree.Command("echo", "y"))))
	assert.Equal(t, "y\n", h.stdout())
}

func TestOrIfNonzero(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Success, h.run(tree.Or(tree.Command("true"), tree.Command("echo", "x"))))
	assert.Empty(t, h.stdout(), "right side must not run")

	assert.Equal(t, Failure, h.run(tree.Or(tree.Command("false"), sh("exit 5"))))
	assert.Equal(t, Success, h.run(tree.Or(sh("exit 2"), tree.Command("echo", "y"))))
	assert.Equal(t, "y\n", h.stdout())
}

func TestParallel(t *testing.T) {
	h := newHarness(t)

	start := time.Now()
	st := h.run(tree.Par(tree.Command("sleep", "1"), tree.Command("true")))
	elapsed := time.Since(start)
	assert.Equal(t, Success, st)
	assert.Less(t, elapsed, 1900*time.Millisecond)

	start = time.Now()
	st = h.run(tree.Par(tree.Command("sleep", "1"), tree.Command("sleep", "1")))
	assert.Equal(t, Success, st)
	assert.Less(t, time.Since(start), 1900*time.Millisecond, "children must overlap")

	// Both sides run to completion even when one fails.
	st = h.run(tree.Par(sh("exit 1"), sh("sleep 0.2; echo ran > marker")))
	assert.Equal(t, Failure, st)
	assert.Equal(t, "ran\n", h.read("marker"))

	assert.Equal(t, Failure, h.run(tree.Par(tree.Command("true"), tree.Command("false"))))
}

func TestPipe(t *testing.T) {
	h := newHarness(t)

	st := h.run(tree.Pipe(tree.Command("echo", "hello"), tree.Command("cat")))
	assert.Equal(t, Success, st)
	assert.Equal(t, "hello\n", h.stdout())
}

func TestPipeStatusIsConsumers(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Success, h.run(tree.Pipe(tree.Command("false"), tree.Command("true"))))
	assert.Equal(t, Status(4), h.run(tree.Pipe(tree.Command("true"), sh("cat >/dev/null; exit 4"))))
	assert.Equal(t, Success, h.run(tree.Pipe(sh("echo hi; exit 9"), sh("cat >/dev/null"))))
}

func TestPipeChain(t *testing.T) {
	h := newHarness(t)

	n := tree.Pipe(tree.Pipe(tree.Command("echo", "hello"), tree.Command("tr", "a-z", "A-Z")), tree.Command("cat"))
	assert.Equal(t, Success, h.run(n))
	assert.Equal(t, "HELLO\n", h.stdout())
}

func TestPipeProducerSequenceKeepsWriterOpen(t *testing.T) {
	h := newHarness(t)

	n := tree.Pipe(tree.Seq(tree.Command("echo", "a"), tree.Command("echo", "b")), tree.Command("cat"))
	assert.Equal(t, Success, h.run(n))
	assert.Equal(t, "a\nb\n", h.stdout())
}

func TestPipeConsumerExitsEarly(t *testing.T) {
	h := newHarness(t)

	n := tree.Pipe(tree.Command("yes"), tree.Command("head", "-n", "2"))
	assert.Equal(t, Success, h.run(n))
	assert.Equal(t, "y\ny\n", h.stdout())
}

func TestRedirectTruncate(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, Success, h.run(withOut(tree.Command("echo", "first run"), "out", false)))
	require.Equal(t, Success, h.run(withOut(tree.Command("echo", "second"), "out", false)))
	assert.Equal(t, "second\n", h.read("out"))
	assert.Empty(t, h.stdout())
}

func TestRedirectAppend(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, Success, h.run(withOut(tree.Command("echo", "first"), "out", true)))
	require.Equal(t, Success, h.run(withOut(tree.Command("echo", "second"), "out", true)))
	assert.Equal(t, "first\nsecond\n", h.read("out"))
}

func TestRedirectStderr(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, Success, h.run(withErr(sh("echo one >&2"), "err", false)))
	require.Equal(t, Success, h.run(withErr(sh("echo two >&2"), "err", true)))
	assert.Equal(t, "one\ntwo\n", h.read("err"))
	assert.Empty(t, h.stderr())
}

func TestRedirectOutAndErrSamePath(t *testing.T) {
	h := newHarness(t)

	l := withErr(withOut(sh("echo out; echo err >&2"), "both", false), "both", false)
	require.Equal(t, Success, h.run(l))
	assert.Equal(t, "out\nerr\n", h.read("both"))
}

func TestRedirectOutAndErrSeparate(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "e"), []byte("old\n"), 0644))

	l := withErr(withOut(sh("echo out; echo err >&2"), "o", false), "e", true)
	require.Equal(t, Success, h.run(l))
	assert.Equal(t, "out\n", h.read("o"))
	assert.Equal(t, "old\nerr\n", h.read("e"))
}

func TestRedirectInput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "in"), []byte("from file\n"), 0644))

	require.Equal(t, Success, h.run(withIn(tree.Command("cat"), "in")))
	assert.Equal(t, "from file\n", h.stdout())
}

func TestRedirectOpenFailure(t *testing.T) {
	h := newHarness(t)

	st := h.run(withIn(tree.Command("cat"), "missing"))
	assert.Equal(t, Failure, st)
	assert.Contains(t, h.stderr(), "minish:")
	assert.Contains(t, h.stderr(), "missing")
}

func TestCommandNotFound(t *testing.T) {
	h := newHarness(t)

	st := h.run(tree.Command("minish-no-such-command", "arg"))
	assert.Equal(t, Failure, st)
	assert.Equal(t, "Execution failed for 'minish-no-such-command'\n", h.stderr())
	assert.Empty(t, h.exits, "exec failure is not fatal")
}

func TestCommandNotExecutable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "script"), []byte("echo hi\n"), 0644))

	assert.Equal(t, Failure, h.run(tree.Command("./script")))
	assert.Equal(t, "Execution failed for './script'\n", h.stderr())
}

func TestScriptWithoutInterpreterLineRunsUnderShell(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "script"), []byte("echo \"hi $1\"\nexit 3\n"), 0755))

	assert.Equal(t, Status(3), h.run(tree.Command("./script", "there")))
	assert.Equal(t, "hi there\n", h.stdout())
	assert.Empty(t, h.stderr())
}

func TestExecFailureDiagnosticFollowsRedirection(t *testing.T) {
	h := newHarness(t)

	st := h.run(withErr(tree.Command("minish-no-such-command"), "err", false))
	assert.Equal(t, Failure, st)
	assert.Equal(t, "Execution failed for 'minish-no-such-command'\n", h.read("err"))
	assert.Empty(t, h.stderr())
}

func TestRedirectEmptyTargetFails(t *testing.T) {
	t.Setenv("MINISH_UNSET_TARGET", "")
	h := newHarness(t)

	assert.Equal(t, Failure, h.run(withOut(tree.Command("echo", "leak"), "", false)))
	assert.Equal(t, Failure, h.run(withIn(tree.Command("cat"), "")))

	l := tree.Command("echo", "leak")
	l.Cmd.Err = tree.Param("MINISH_UNSET_TARGET").Ptr()
	assert.Equal(t, Failure, h.run(l))

	assert.Empty(t, h.stdout(), "output must not fall through to the inherited stdout")
	assert.Equal(t, 3, strings.Count(h.stderr(), "minish: "))
}

func TestExitStatusTranslation(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Status(42), h.run(sh("exit 42")))
	assert.Equal(t, Failure, h.run(sh("kill -9 $$")), "death by signal maps to failure")
}

func TestCdArgumentCount(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Failure, h.run(tree.Command("cd")))
	assert.Equal(t, Failure, h.run(tree.Command("cd", "a", "b")))
	assert.Empty(t, h.stderr(), "built-in failures are silent")

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, h.dir, wd)
}

func TestCdVisibleToSiblings(t *testing.T) {
	h := newHarness(t)
	sub := filepath.Join(h.dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	st := h.run(tree.Seq(tree.Command("cd", "sub"), tree.Command("touch", "marker")))
	assert.Equal(t, Success, st)
	assert.FileExists(t, filepath.Join(sub, "marker"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, sub, wd)
}

func TestCdFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "file"), nil, 0644))

	assert.Equal(t, Failure, h.run(tree.Command("cd", "missing")))
	assert.Equal(t, Failure, h.run(tree.Command("cd", "file")))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, h.dir, wd)
}

func TestCdInsideBranchesIsPrivate(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Mkdir(filepath.Join(h.dir, "sub"), 0755))

	st := h.run(tree.Seq(
		tree.Par(tree.Command("cd", "sub"), tree.Command("true")),
		tree.Command("touch", "marker"),
	))
	assert.Equal(t, Success, st)
	assert.FileExists(t, filepath.Join(h.dir, "marker"))

	// Within the branch the change is visible to later commands.
	st = h.run(tree.Pipe(tree.Command("true"), tree.Seq(tree.Command("cd", "sub"), tree.Command("pwd"))))
	assert.Equal(t, Success, st)
	assert.Equal(t, filepath.Join(h.dir, "sub")+"\n", h.stdout())

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, h.dir, wd)
}

func TestCdTruncatesOutput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "out"), []byte("stale"), 0644))

	assert.Equal(t, Success, h.run(withOut(tree.Command("cd", "."), "out", false)))
	assert.Empty(t, h.read("out"))
}

func TestAssignmentVisibleToLaterCommands(t *testing.T) {
	t.Setenv("MINISH_GREETING", "")
	h := newHarness(t)

	st := h.run(tree.Seq(assign("MINISH_GREETING=hello there"), sh(`echo "$MINISH_GREETING"`)))
	assert.Equal(t, Success, st)
	assert.Equal(t, "hello there\n", h.stdout())
	assert.Equal(t, "hello there", os.Getenv("MINISH_GREETING"))
}

func TestAssignmentOverwritesAndResolves(t *testing.T) {
	t.Setenv("MINISH_A", "old")
	h := newHarness(t)

	echo := &tree.Leaf{Cmd: &tree.SimpleCommand{Verb: tree.Lit("echo"), Args: []tree.Word{tree.Param("MINISH_A")}}}
	st := h.run(tree.Seq(assign("MINISH_A=new"), echo))
	assert.Equal(t, Success, st)
	assert.Equal(t, "new\n", h.stdout())
}

func TestAssignmentInsideBranchIsPrivate(t *testing.T) {
	t.Setenv("MINISH_PRIVATE", "")
	h := newHarness(t)

	st := h.run(tree.Seq(
		tree.Par(assign("MINISH_PRIVATE=x"), tree.Command("true")),
		sh(`echo "[$MINISH_PRIVATE]"`),
	))
	assert.Equal(t, Success, st)
	assert.Equal(t, "[]\n", h.stdout())
}

func TestAssignmentFailure(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Failure, h.run(assign("=value")))
}

func TestExitInRootSession(t *testing.T) {
	h := newHarness(t)

	st := h.run(tree.Seq(tree.Command("exit"), tree.Command("touch", "marker")))
	assert.Equal(t, Success, st)
	assert.Equal(t, []int{0}, h.exits)
	assert.NoFileExists(t, filepath.Join(h.dir, "marker"))
	assert.True(t, h.sess.Exited())
}

func TestQuitInsideBranchEndsOnlyTheBranch(t *testing.T) {
	h := newHarness(t)

	st := h.run(tree.Seq(
		tree.Par(tree.Seq(tree.Command("quit"), tree.Command("touch", "skipped")), tree.Command("true")),
		tree.Command("touch", "marker"),
	))
	assert.Equal(t, Success, st)
	assert.Empty(t, h.exits)
	assert.NoFileExists(t, filepath.Join(h.dir, "skipped"))
	assert.FileExists(t, filepath.Join(h.dir, "marker"))
}

func TestUnknownOperator(t *testing.T) {
	h := newHarness(t)

	n := &tree.Binary{Op: tree.Op(99), Left: tree.Command("true"), Right: tree.Command("true")}
	assert.Equal(t, ShellExit, h.run(n))
}

func TestNoDescriptorLeaks(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("no /proc/self/fd")
	}
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "in"), []byte("x\n"), 0644))

	n := tree.Seq(
		tree.Pipe(withIn(tree.Command("cat"), "in"), withOut(tree.Command("cat"), "out", false)),
		tree.Par(withErr(tree.Command("minish-no-such-command"), "err", true), withIn(tree.Command("cat"), "missing")),
	)
	h.run(n) // warm up runtime descriptors

	countFDs := func() int {
		entries, err := os.ReadDir("/proc/self/fd")
		require.NoError(t, err)
		return len(entries)
	}
	before := countFDs()
	for i := 0; i < 5; i++ {
		h.run(n)
	}
	assert.Equal(t, before, countFDs())
}

func TestIsSpawnFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&os.SyscallError{Syscall: "fork", Err: unix.EAGAIN}, true},
		{&os.PathError{Op: "fork/exec", Path: "/bin/true", Err: unix.ENOMEM}, true},
		{fmt.Errorf("start: %w", &os.PathError{Op: "fork/exec", Path: "x", Err: unix.ENOENT}), false},
		{&os.PathError{Op: "fork/exec", Path: "x", Err: unix.EACCES}, false},
		{&os.PathError{Op: "fork/exec", Path: "x", Err: unix.ENOEXEC}, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isSpawnFailure(tt.err), "%v", tt.err)
	}
}

func TestSpawnFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	saved := startProcess
	t.Cleanup(func() { startProcess = saved })
	startProcess = func(name string, argv []string, attr *os.ProcAttr) (*os.Process, error) {
		return nil, &os.PathError{Op: "fork/exec", Path: name, Err: unix.EAGAIN}
	}

	assert.Equal(t, Failure, h.run(tree.Command("true")))
	assert.Equal(t, []int{1}, h.exits)
	assert.Empty(t, h.stderr(), "not an exec failure")
}

func TestPipeCreationFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	saved := newPipe
	t.Cleanup(func() { newPipe = saved })
	newPipe = func() (*os.File, *os.File, error) {
		return nil, nil, &os.SyscallError{Syscall: "pipe2", Err: unix.EMFILE}
	}

	st := h.run(tree.Pipe(tree.Command("echo", "x"), tree.Command("touch", "marker")))
	assert.Equal(t, Failure, st)
	assert.Equal(t, []int{1}, h.exits)
	assert.Contains(t, h.stderr(), "minish: pipe:")
	assert.NoFileExists(t, filepath.Join(h.dir, "marker"))
}
