package executor

import (
	"strings"

	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

// Resolver turns a parsed word into the string handed to the OS.
type Resolver interface {
	Resolve(s *session.Session, w tree.Word) string
}

// EnvResolver substitutes parameter references from the session
// environment. Unset parameters expand to "".
type EnvResolver struct{}

func (EnvResolver) Resolve(s *session.Session, w tree.Word) string {
	var b strings.Builder
	for _, p := range w.Parts {
		switch p.Kind {
		case tree.PartParam:
			b.WriteString(s.Getenv(p.Value))
		default:
			b.WriteString(p.Value)
		}
	}
	return b.String()
}
