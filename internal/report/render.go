package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Render writes r as human-readable text to w, using fatih/color to
// highlight satisfied vs. unsatisfied status when w is an interactive
// terminal (checked via golang.org/x/term.IsTerminal, the same way
// apptainer picks interactive vs. piped output); plain text otherwise.
func Render(w io.Writer, r *Record) {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = term.IsTerminal(int(f.Fd()))
	}

	good := plainOrColor(useColor, color.FgGreen)
	bad := plainOrColor(useColor, color.FgRed)
	warn := plainOrColor(useColor, color.FgYellow)

	fmt.Fprintf(w, "%s: tag %s\n", r.ArchiveName, r.CurrentTag)
	if r.Diagnostic != "" {
		fmt.Fprintf(w, "%s\n", warn(r.Diagnostic))
		return
	}
	if r.OverallPolicy != "" {
		fmt.Fprintf(w, "policy: %s\n", good(r.OverallPolicy))
	} else {
		fmt.Fprintf(w, "policy: %s\n", bad("none satisfied"))
	}

	if len(r.Libraries) > 0 {
		fmt.Fprintln(w, "libraries:")
		for _, lib := range r.Libraries {
			switch {
			case !lib.Resolved:
				fmt.Fprintf(w, "  %s %s\n", lib.Soname, bad("(unresolved)"))
			case lib.Whitelisted:
				fmt.Fprintf(w, "  %s %s -> %s\n", lib.Soname, good("(whitelisted)"), lib.Path)
			default:
				fmt.Fprintf(w, "  %s %s -> %s\n", lib.Soname, warn("(graft candidate)"), lib.Path)
			}
		}
	}

	if len(r.SymbolUsage) > 0 {
		fmt.Fprintln(w, "symbol versions:")
		for _, su := range r.SymbolUsage {
			fmt.Fprintf(w, "  %s: %v\n", su.Library, su.Versions)
		}
	}

	for _, u := range r.Unsatisfied {
		fmt.Fprintf(w, "%s (priority %d) not satisfied:\n", u.PolicyName, u.Priority)
		for _, reason := range u.Reasons {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}
}

func plainOrColor(enabled bool, attr color.Attribute) func(string) string {
	if !enabled {
		return func(s string) string { return s }
	}
	c := color.New(attr)
	return func(s string) string { return c.Sprint(s) }
}

// RenderJSON writes r to w as indented JSON, for the CLI's --json mode and
// other programmatic callers.
func RenderJSON(w io.Writer, r *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
