package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// ANSI codes, used only when writing to a terminal.
const (
	colorReset  = "\033[0m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// table writes aligned columns to a terminal and tab-separated values
// otherwise.
type table struct {
	out   io.Writer
	tw    *tabwriter.Writer
	color bool
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{out: w, color: isTerminal(w)}
	if t.color {
		t.tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		t.out = t.tw
	}
	if len(headers) > 0 {
		line := strings.Join(headers, "\t")
		if t.color {
			line = colorBold + line + colorReset
		}
		fmt.Fprintln(t.out, line)
	}
	return t
}

func (t *table) row(cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.out, strings.Join(parts, "\t"))
}

func (t *table) flush() error {
	if t.tw != nil {
		return t.tw.Flush()
	}
	return nil
}

func heading(w io.Writer, text string) {
	if isTerminal(w) {
		fmt.Fprintf(w, "%s%s%s%s\n", colorBold, colorCyan, text, colorReset)
		return
	}
	fmt.Fprintln(w, text)
}

func warning(w io.Writer, text string) {
	if isTerminal(w) {
		fmt.Fprintf(w, "%swarning:%s %s\n", colorYellow, colorReset, text)
		return
	}
	fmt.Fprintf(w, "warning: %s\n", text)
}

// formatSeconds renders a time span in the largest unit that keeps the
// value at or above one.
func formatSeconds(s float64) string {
	switch {
	case math.IsInf(s, 1):
		return "inf"
	case s >= secondsPerYear:
		return fmt.Sprintf("%.4g a", s/secondsPerYear)
	case s >= 86400:
		return fmt.Sprintf("%.4g d", s/86400)
	case s >= 3600:
		return fmt.Sprintf("%.4g h", s/3600)
	case s >= 60:
		return fmt.Sprintf("%.4g min", s/60)
	case s >= 1 || s == 0:
		return fmt.Sprintf("%.4g s", s)
	case s >= 1e-3:
		return fmt.Sprintf("%.4g ms", s*1e3)
	case s >= 1e-6:
		return fmt.Sprintf("%.4g us", s*1e6)
	default:
		return fmt.Sprintf("%.4g ns", s*1e9)
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.4g%%", v)
}
