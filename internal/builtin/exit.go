package builtin

import (
	"context"

	"github.com/marcelocantos/minish/internal/session"
)

// Exit ends the session with success. Arguments are ignored.
type Exit struct {
	name string
}

var _ Builtin = (*Exit)(nil)

func (e *Exit) Name() string        { return e.name }
func (e *Exit) Description() string { return "exit the shell" }

func (e *Exit) Run(_ context.Context, s *session.Session, _ *Invocation) error {
	s.Exit()
	return nil
}
