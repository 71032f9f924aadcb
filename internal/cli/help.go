package cli

import (
	"fmt"
	"io"

	"github.com/marcelocantos/minish/internal/builtin"
	"github.com/marcelocantos/minish/internal/tree"
)

// RunSyntax describes the command language, or a single built-in when args
// names one.
func RunSyntax(reg *builtin.Registry, w io.Writer, args []string) int {
	if len(args) == 0 {
		printSyntax(w)
		return 0
	}

	b, ok := reg.Lookup(args[0])
	if !ok {
		fmt.Fprintf(w, "minish syntax: %q is not a built-in\n", args[0])
		return 1
	}
	fmt.Fprintf(w, "%s: %s\n", b.Name(), b.Description())
	return 0
}

func printSyntax(w io.Writer) {
	fmt.Fprintln(w, "operators, loosest first:")
	fmt.Fprintf(w, "  a %s b    run a, then b; status of b\n", tree.OpSequence)
	fmt.Fprintf(w, "  a %s b    run a and b concurrently; 0 iff both succeed\n", tree.OpParallel)
	fmt.Fprintf(w, "  a %s b   run b only if a succeeded\n", tree.OpAndIfZero)
	fmt.Fprintf(w, "  a %s b   run b only if a failed (same precedence as %s)\n", tree.OpOrIfNonzero, tree.OpAndIfZero)
	fmt.Fprintf(w, "  a %s b    a's stdout feeds b's stdin; status of b\n", tree.OpPipe)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "redirections:")
	fmt.Fprintln(w, "  < f   stdin from f")
	fmt.Fprintln(w, "  > f   stdout to f (>> appends)")
	fmt.Fprintln(w, "  2> f  stderr to f (2>> appends)")
	fmt.Fprintln(w, "  &> f  stdout and stderr to f")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NAME=VALUE sets an environment variable; $NAME expands it.")
	fmt.Fprintln(w, "Commands inside & and | run in a subshell: cd and assignments there")
	fmt.Fprintln(w, "do not affect the rest of the line.")
}
