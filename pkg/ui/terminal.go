package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	cyan    = lipgloss.Color("#00D7FF")
	yellow  = lipgloss.Color("#FFD700")
	red     = lipgloss.Color("#FF5F5F")
	green   = lipgloss.Color("#5FFF87")
	magenta = lipgloss.Color("#D787FF")
	dim     = lipgloss.Color("#8A8A8A")
)

// styles are bound to one renderer so color detection follows the writer
type styles struct {
	label     lipgloss.Style
	value     lipgloss.Style
	errorMsg  lipgloss.Style
	success   lipgloss.Style
	warning   lipgloss.Style
	highlight lipgloss.Style
	dim       lipgloss.Style
	bar       lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:     r.NewStyle().Foreground(cyan).Bold(true),
		value:     r.NewStyle().Foreground(yellow),
		errorMsg:  r.NewStyle().Foreground(red).Bold(true),
		success:   r.NewStyle().Foreground(green).Bold(true),
		warning:   r.NewStyle().Foreground(yellow),
		highlight: r.NewStyle().Foreground(magenta).Bold(true),
		dim:       r.NewStyle().Foreground(dim),
		bar:       r.NewStyle().Foreground(green),
	}
}

// Options configures a Printer
type Options struct {
	// Quiet suppresses everything except errors
	Quiet bool
	// NoColor prints without any styling
	NoColor bool
}

// Printer writes styled, human oriented output for the CLI. Colors are
// dropped automatically when out is not a terminal.
type Printer struct {
	out    io.Writer
	quiet  bool
	plain  bool
	styles styles
}

// NewPrinter creates a Printer writing to out
func NewPrinter(out io.Writer, opts Options) *Printer {
	return &Printer{
		out:    out,
		quiet:  opts.Quiet,
		plain:  opts.NoColor,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

// Error prints an error message, with detail if given. It is printed even in quiet mode.
func (p *Printer) Error(msg string, detail ...interface{}) {
	if len(detail) > 0 {
		msg = msg + ": " + fmt.Sprint(detail[0])
	}
	fmt.Fprintln(p.out, p.render(p.styles.errorMsg, msg))
}

// Success prints a success message
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.render(p.styles.success, msg))
}

// Info prints a label and its value
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.render(p.styles.label, label), p.render(p.styles.value, value))
}

// Warning prints a warning message, with detail if given
func (p *Printer) Warning(msg string, detail ...interface{}) {
	if p.quiet {
		return
	}
	if len(detail) > 0 {
		msg = msg + ": " + fmt.Sprint(detail[0])
	}
	fmt.Fprintln(p.out, p.render(p.styles.warning, msg))
}

// Highlight prints a section heading
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.render(p.styles.highlight, msg))
}

// Line prints text as is
func (p *Printer) Line(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Dim renders text de-emphasised without printing it
func (p *Printer) Dim(text string) string {
	return p.render(p.styles.dim, text)
}
