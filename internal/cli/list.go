package cli

import (
	"fmt"
	"io"

	"github.com/marcelocantos/minish/internal/builtin"
)

// RunBuiltins lists the built-in commands.
func RunBuiltins(reg *builtin.Registry, w io.Writer) int {
	for _, b := range reg.All() {
		fmt.Fprintf(w, "%-8s %s\n", b.Name(), b.Description())
	}
	return 0
}
