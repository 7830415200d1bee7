package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Text writes formatted text.
func (f *Formatter) Text(format string, args ...any) {
	fmt.Fprintf(f.writer, format, args...)
}

// Textln writes formatted text with a trailing newline.
func (f *Formatter) Textln(format string, args ...any) {
	fmt.Fprintf(f.writer, format+"\n", args...)
}

// Line writes a blank line.
func (f *Formatter) Line() {
	fmt.Fprintln(f.writer)
}

// Table renders aligned columns. Widths are display widths, so wide runes
// line up correctly.
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with headers.
func NewTable(w io.Writer, headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &Table{writer: w, headers: headers, widths: widths}
}

// AddRow appends a row, growing column widths as needed.
func (t *Table) AddRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) {
			if w := runewidth.StringWidth(c); w > t.widths[i] {
				t.widths[i] = w
			}
		}
	}
	t.rows = append(t.rows, cols)
}

// Render writes the table.
func (t *Table) Render() {
	t.printRow(t.headers)

	seps := make([]string, len(t.widths))
	for i, w := range t.widths {
		seps[i] = strings.Repeat("-", w)
	}
	t.printRow(seps)

	for _, row := range t.rows {
		t.printRow(row)
	}
}

func (t *Table) printRow(cols []string) {
	parts := make([]string, len(t.headers))
	for i := range t.headers {
		cell := ""
		if i < len(cols) {
			cell = cols[i]
		}
		parts[i] = runewidth.FillRight(cell, t.widths[i])
	}
	fmt.Fprintln(t.writer, "  "+strings.TrimRight(strings.Join(parts, "  "), " "))
}

// Pluralize picks the singular or plural form for count.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountStr formats "N item(s)".
func CountStr(count int, singular, plural string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, singular, plural))
}
