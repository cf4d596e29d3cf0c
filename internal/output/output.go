// Package output formats one-shot CLI messages: confirmations, warnings
// and indented blocks.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/fileindex/internal/ui"
)

// Writer prints status lines. Write errors are ignored.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New returns a Writer. Color is used only on a terminal without NO_COLOR.
func New(out io.Writer) *Writer {
	noColor := !ui.IsTTY(out) || ui.DetectNoColor()
	return &Writer{out: out, styles: ui.GetStyles(noColor)}
}

// Status prints msg after icon, or indented under the previous line when
// icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Hint prints a dimmed follow-up suggestion.
func (w *Writer) Hint(msg string) {
	w.Status("", w.styles.Dim.Render(msg))
}

// Block prints content indented by two spaces between blank lines.
func (w *Writer) Block(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
