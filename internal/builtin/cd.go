package builtin

import (
	"context"
	"os"

	"github.com/marcelocantos/minish/internal/session"
)

// Cd changes the session's working directory.
type Cd struct{}

var _ Builtin = (*Cd)(nil)

func (c *Cd) Name() string        { return "cd" }
func (c *Cd) Description() string { return "change the working directory" }

// Run honours a truncating stdout redirection by creating the target, even
// though cd writes nothing to it.
func (c *Cd) Run(_ context.Context, s *session.Session, inv *Invocation) error {
	if inv.Out != "" && !inv.OutAppend {
		f, err := os.OpenFile(s.Abs(inv.Out), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err == nil {
			f.Close()
		}
	}
	if len(inv.Args) != 1 {
		return &ArgCountError{Name: inv.Name, Got: len(inv.Args), Want: 1}
	}
	return s.Chdir(inv.Args[0])
}
