package common

import (
	"fmt"
	"io"
	"strings"
)

const DefaultWidth = 80

// Report renders the boxed summaries printed by the operator commands.
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer) *Report {
	return &Report{w: w, width: DefaultWidth}
}

func (r *Report) rule(char string) {
	fmt.Fprintln(r.w, strings.Repeat(char, r.width))
}

// Header prints a title between two rules, preceded by a blank line
func (r *Report) Header(title string) {
	fmt.Fprintln(r.w)
	r.rule("=")
	fmt.Fprintln(r.w, title)
	r.rule("=")
}

func (r *Report) Footer(message string) {
	fmt.Fprintln(r.w)
	r.rule("=")
	fmt.Fprintln(r.w, message)
	r.rule("=")
	fmt.Fprintln(r.w)
}

// Field prints an aligned "label: value" line
func (r *Report) Field(label string, value interface{}) {
	fmt.Fprintf(r.w, "%-18s %v\n", label+":", value)
}

// Rule closes a block of fields
func (r *Report) Rule() {
	r.rule("=")
}

// Group prints a titled box with one line per item.
func (r *Report) Group(title string, details []string, items []string) {
	fmt.Fprintf(r.w, "\n┌─ %s\n", title)
	for _, d := range details {
		fmt.Fprintf(r.w, "│  %s\n", d)
	}
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))
	for i, item := range items {
		fmt.Fprintf(r.w, "%s%s\n", boxPrefix(i == len(items)-1), item)
	}
}

func boxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}
