package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgRed)
	messageColor = color.New(color.Bold, color.FgMagenta)
	pathColor    = color.New(color.FgCyan)
)

// Summary writes the warning and error listings of r to w. Nothing is
// written for a clean run.
func Summary(w io.Writer, r *Report) {
	r.mu.Lock()
	warnings := cloneMap(r.Warning)
	fails := cloneMap(r.Fail)
	r.mu.Unlock()

	writeSection(w, "Warnings", warnings)
	writeSection(w, "Errors", fails)
}

func writeSection(w io.Writer, label string, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Fprintln(w)
	headingColor.Fprintf(w, "Build finish with %d %s\n", len(entries), label)
	for _, p := range paths {
		fmt.Fprintf(w, ">> %s in %s\n", messageColor.Sprint(entries[p]), pathColor.Sprint(p))
	}
	fmt.Fprintln(w)
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
