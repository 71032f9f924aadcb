// Package session holds the mutable state a shell process carries between
// commands: its standard files, working directory and environment.
//
// The root session is the shell process itself and applies every change to
// the host process. Fork returns a subshell whose changes stay private, the
// way a forked child's chdir or setenv never reaches its parent.
package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Session is not safe for concurrent use; every concurrently running branch
// owns its own fork.
type Session struct {
	files    [3]*os.File
	dir      string
	env      Env
	subshell bool
	exited   bool
}

// New returns the root session for the current process.
func New(stdin, stdout, stderr *os.File) (*Session, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}
	return &Session{
		files: [3]*os.File{stdin, stdout, stderr},
		dir:   dir,
		env:   EnvFromList(os.Environ()),
	}, nil
}

// Fork returns a subshell copy of s with private directory and environment.
func (s *Session) Fork() *Session {
	return &Session{
		files:    s.files,
		dir:      s.dir,
		env:      s.env.Clone(),
		subshell: true,
	}
}

// Subshell reports whether s was created by Fork.
func (s *Session) Subshell() bool { return s.subshell }

func (s *Session) Stdin() *os.File  { return s.files[0] }
func (s *Session) Stdout() *os.File { return s.files[1] }
func (s *Session) Stderr() *os.File { return s.files[2] }

// SetStdin replaces the session's standard input.
func (s *Session) SetStdin(f *os.File) { s.files[0] = f }

// SetStdout replaces the session's standard output.
func (s *Session) SetStdout(f *os.File) { s.files[1] = f }

// Files returns a copy of the standard files, indexed by descriptor number.
func (s *Session) Files() []*os.File {
	return []*os.File{s.files[0], s.files[1], s.files[2]}
}

// Dir returns the working directory.
func (s *Session) Dir() string { return s.dir }

// Abs resolves path against the working directory.
func (s *Session) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}

// Chdir changes the working directory. The root session changes the host
// process's directory.
func (s *Session) Chdir(dir string) error {
	if !s.subshell {
		if err := os.Chdir(dir); err != nil {
			return err
		}
		wd, err := os.Getwd()
		if err != nil {
			wd = s.Abs(dir)
		}
		s.dir = wd
		return nil
	}

	path := s.Abs(dir)
	fi, err := os.Stat(path)
	if err != nil {
		return &fs.PathError{Op: "chdir", Path: dir, Err: unwrapPathErr(err)}
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: "chdir", Path: dir, Err: unix.ENOTDIR}
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return &fs.PathError{Op: "chdir", Path: dir, Err: err}
	}
	s.dir = filepath.Clean(path)
	return nil
}

func unwrapPathErr(err error) error {
	if pe, ok := err.(*fs.PathError); ok {
		return pe.Err
	}
	return err
}

// Getenv returns the value of name, or "" if unset.
func (s *Session) Getenv(name string) string { return s.env[name] }

// Setenv sets name to value, overwriting any previous value. The root
// session also sets it in the host process environment.
func (s *Session) Setenv(name, value string) error {
	if err := checkAssign(name, value); err != nil {
		return err
	}
	if !s.subshell {
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	s.env[name] = value
	return nil
}

// Environ returns the environment handed to spawned programs.
func (s *Session) Environ() []string { return s.env.Environ() }

// Exit marks the session finished. Nothing more is evaluated in it.
func (s *Session) Exit() { s.exited = true }

// Exited reports whether Exit was called.
func (s *Session) Exited() bool { return s.exited }
