package translate

import (
	"fmt"
	"io"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

// PrintStackTrace writes err the way its runtime would print it uncaught.
// A dynamic exception that stands for a host throwable is followed by the
// host trace, and a host throwable lists its causes.
func PrintStackTrace(w io.Writer, err error) {
	switch e := err.(type) {
	case nil:
		return
	case *host.Thrown:
		printHost(w, e.Object)
	case *dynamic.Exception:
		io.WriteString(w, e.FormatTraceback())
		if th, ok := e.Origin.(*host.Thrown); ok && th.Object != nil {
			io.WriteString(w, "\nHost exception:\n")
			printHost(w, th.Object)
		}
	default:
		fmt.Fprintln(w, err)
	}
}

func printHost(w io.Writer, o *host.Object) {
	seen := make(map[*host.Object]bool)
	for prefix := ""; o != nil && !seen[o]; prefix = "Caused by: " {
		seen[o] = true
		fmt.Fprintf(w, "%s%s\n", prefix, host.Describe(o))
		for _, f := range host.StackTrace(o) {
			fmt.Fprintf(w, "\tat %s\n", f)
		}
		o = host.ThrowableCause(o)
	}
}
