package report

import (
	"fmt"
	"io"
	"strings"
)

type Entry struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Pos renders file:line:col, or "" for an entry without a location.
func (e Entry) Pos() string {
	if e.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
}

type Reporter struct {
	Entries []Entry
	// Upper renders every message upper-cased.
	Upper bool
}

func (r *Reporter) Add(e Entry) {
	r.Entries = append(r.Entries, e)
}

func (r *Reporter) message(e Entry) string {
	if r.Upper {
		return strings.ToUpper(e.Message)
	}
	return e.Message
}

// Print writes one message per line.
func (r *Reporter) Print(w io.Writer) {
	for _, e := range r.Entries {
		fmt.Fprintln(w, r.message(e))
	}
}

// PrintWithPos prefixes each message with its location when it has one.
func (r *Reporter) PrintWithPos(w io.Writer) {
	for _, e := range r.Entries {
		if pos := e.Pos(); pos != "" {
			fmt.Fprintf(w, "%s: %s\n", pos, r.message(e))
			continue
		}
		fmt.Fprintln(w, r.message(e))
	}
}
