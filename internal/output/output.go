// Package output renders CLI results as styled text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/swarmkeep/swarmkeep/internal/status"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Gray
)

// Formatter writes command output. JSON mode emits machine-readable output
// and suppresses all styling; color is dropped automatically when the writer
// is not a terminal.
type Formatter struct {
	writer io.Writer
	json   bool
	color  bool
	width  int
}

// New builds a formatter for w.
func New(w io.Writer, jsonMode, noColor bool) *Formatter {
	f := &Formatter{writer: w, json: jsonMode, color: !noColor, width: 80}
	if file, ok := w.(*os.File); ok {
		fd := file.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			f.color = false
		}
		if cols, _, err := term.GetSize(int(fd)); err == nil && cols > 0 {
			f.width = cols
		}
	} else {
		f.color = false
	}
	return f
}

// JSONMode reports whether the formatter emits JSON.
func (f *Formatter) JSONMode() bool {
	return f.json
}

// Writer exposes the underlying writer for table rendering.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// JSON marshals v with indentation.
func (f *Formatter) JSON(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Title prints a styled heading.
func (f *Formatter) Title(format string, args ...any) {
	f.Textln("%s", f.style(titleStyle, fmt.Sprintf(format, args...)))
}

// Muted prints de-emphasized text.
func (f *Formatter) Muted(format string, args ...any) {
	f.Textln("%s", f.style(mutedStyle, fmt.Sprintf(format, args...)))
}

// StatusBadge renders a session status with its color.
func (f *Formatter) StatusBadge(s status.Status) string {
	switch s {
	case status.Working:
		return f.style(workingStyle, string(s))
	case status.Stopped:
		return f.style(stoppedStyle, string(s))
	case status.Error:
		return f.style(errorStyle, string(s))
	case status.Dead:
		return f.style(mutedStyle, string(s))
	default:
		return string(s)
	}
}

// Wrap word-wraps text to the terminal width.
func (f *Formatter) Wrap(s string) string {
	return wordwrap.String(s, f.width)
}

func (f *Formatter) style(st lipgloss.Style, s string) string {
	if !f.color {
		return s
	}
	return st.Render(s)
}
