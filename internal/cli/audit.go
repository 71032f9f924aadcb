package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/marcelocantos/minish/internal/audit"
)

// DefaultTail is the number of entries shown by audit show without a count.
const DefaultTail = 20

// RunAudit handles the minish audit subcommand.
func RunAudit(w io.Writer, logPath string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(w, "usage: minish audit <verify|show|tail> [n]")
		return 1
	}

	switch args[0] {
	case "verify":
		if err := audit.Verify(logPath); err != nil {
			fmt.Fprintf(w, "audit verification FAILED: %v\n", err)
			return 1
		}
		fmt.Fprintln(w, "audit log integrity verified")
		return 0

	case "show", "tail":
		n := DefaultTail
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 0 {
				fmt.Fprintf(w, "minish audit: bad count %q\n", args[1])
				return 1
			}
			n = v
		}
		entries, err := audit.Tail(logPath, n)
		if err != nil {
			fmt.Fprintf(w, "minish audit: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "no audit entries")
			return 0
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				fmt.Fprintf(w, "minish audit: %v\n", err)
				return 1
			}
		}
		return 0

	default:
		fmt.Fprintf(w, "minish audit: unknown subcommand %q\n", args[0])
		return 1
	}
}
