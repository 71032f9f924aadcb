package session

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a PATH search finds no executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named
// by the session's PATH. If file contains a slash it is tried directly,
// relative to the session directory, and PATH is not consulted.
func (s *Session) LookPath(file string) (string, error) {
	if strings.Contains(file, "/") {
		path := s.Abs(file)
		if err := findExecutable(path); err != nil {
			return "", &exec.Error{Name: file, Err: err}
		}
		return path, nil
	}
	for _, dir := range filepath.SplitList(s.Getenv("PATH")) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := s.Abs(filepath.Join(dir, file))
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", &exec.Error{Name: file, Err: ErrNotFound}
}
