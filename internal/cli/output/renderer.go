// Package output renders command results for terminals, markdown consumers
// (agents, CI logs) and JSON tooling.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Modes lists the accepted --output values.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}

// ParseMode validates a mode name. The empty string means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeText:
		return ModeText, nil
	case ModeMarkdown, "md":
		return ModeMarkdown, nil
	case ModeJSON:
		return ModeJSON, nil
	}
	return "", fmt.Errorf("invalid output mode %q (%s)", s, strings.Join(Modes, "|"))
}

// Styles are the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: r.NewStyle().Bold(true).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	} else if termenv.EnvNoColor() {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY, styles: newStyles(lr)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}

// Mode returns the configured mode.
func (r *Renderer) Mode() Mode { return r.mode }

// EffectiveMode resolves auto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Styles returns the text styles.
func (r *Renderer) Styles() Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the diagnostic writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) { _, _ = fmt.Fprintln(r.out, a...) }

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) { _, _ = fmt.Fprintf(r.out, format, a...) }

// Header writes a heading in the effective mode.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println("")
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
}

// Success, Warning and Error write status lines to diagnostics.
func (r *Renderer) Success(msg string) { _, _ = fmt.Fprintln(r.errOut, r.styles.Success.Render(msg)) }

func (r *Renderer) Warning(msg string) { _, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render(msg)) }

func (r *Renderer) Error(msg string) { _, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(msg)) }

// Muted writes a de-emphasized line to standard output.
func (r *Renderer) Muted(msg string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println("_" + msg + "_")
		return
	}
	r.Println(r.styles.Muted.Render(msg))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows as a light box table in text mode and a markdown table
// otherwise.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(toRow(header))
	for _, row := range rows {
		t.AppendRow(toRow(row))
	}
	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		r.Println("")
		return
	}
	t.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// StatusStyle returns the style for a projection status.
func (r *Renderer) StatusStyle(status core.ProjectionStatus) lipgloss.Style {
	switch status {
	case core.StatusSucceeded:
		return r.styles.Success
	case core.StatusFailed:
		return r.styles.Error
	case core.StatusNotAttempted:
		return r.styles.Warning
	default:
		return r.styles.Muted
	}
}

// SeverityStyle returns the style for an event severity.
func (r *Renderer) SeverityStyle(sev core.Severity) lipgloss.Style {
	switch sev {
	case core.SeverityError:
		return r.styles.Error
	case core.SeverityDanger, core.SeverityWarning:
		return r.styles.Warning
	default:
		return r.styles.Muted
	}
}

// FormatHeader returns a markdown heading.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatCodeBlock returns a fenced markdown code block.
func FormatCodeBlock(lang, code string) string {
	return "```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```"
}
