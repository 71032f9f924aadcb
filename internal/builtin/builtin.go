// Package builtin implements the commands the shell runs in its own
// process instead of spawning a program.
package builtin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marcelocantos/minish/internal/session"
)

// Invocation is a built-in call with its words already resolved.
type Invocation struct {
	Name string
	Args []string

	// Out is the resolved stdout redirection target, "" if none.
	Out       string
	OutAppend bool
}

// Builtin is the interface every built-in command implements.
type Builtin interface {
	// Name returns the command word that selects the built-in.
	Name() string

	// Description returns a human-readable summary for listings.
	Description() string

	// Run executes the built-in against the session. A non-nil error means
	// the built-in failed; it is reported through the exit status only.
	Run(ctx context.Context, s *session.Session, inv *Invocation) error
}

// Registry maps command words to built-ins.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Builtin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Builtin)}
}

// Register adds a built-in, replacing any with the same name.
func (r *Registry) Register(b Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[b.Name()] = b
}

// Lookup returns the built-in registered under name.
func (r *Registry) Lookup(name string) (Builtin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builtins[name]
	return b, ok
}

// All returns all registered built-ins sorted by name.
func (r *Registry) All() []Builtin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Builtin, 0, len(r.builtins))
	for _, b := range r.builtins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

// RegisterAll adds every built-in to the registry.
func RegisterAll(r *Registry) {
	r.Register(&Cd{})
	r.Register(&Exit{name: "exit"})
	r.Register(&Exit{name: "quit"})
}

// ArgCountError reports a built-in called with the wrong number of arguments.
type ArgCountError struct {
	Name string
	Got  int
	Want int
}

func (e *ArgCountError) Error() string {
	return fmt.Sprintf("%s: expected %d argument(s), got %d", e.Name, e.Want, e.Got)
}
