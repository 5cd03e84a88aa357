// Package ui renders operator-facing output and reads yes/no answers.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes severity-prefixed lines to an output stream
type Printer struct {
	out io.Writer

	info   lipgloss.Style
	warn   lipgloss.Style
	errS   lipgloss.Style
	crit   lipgloss.Style
	header lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
}

// NewPrinter binds a printer to w. Colour is dropped when w is not a terminal.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	if !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		out:    w,
		info:   r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		errS:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		crit:   r.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true),
		header: r.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		accent: r.NewStyle().Foreground(lipgloss.Color("6")).TabWidth(lipgloss.NoTabConversion),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// IsTerminal reports whether w is an *os.File attached to a terminal
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Writer exposes the underlying stream
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) prefixed(style lipgloss.Style, tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.out, "%s %s\n", style.Render(">> "+tag), msg)
}

func (p *Printer) Infof(format string, args ...any) {
	p.prefixed(p.info, "I", format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.prefixed(p.warn, "W", format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.prefixed(p.errS, "E", format, args...)
}

func (p *Printer) Critf(format string, args ...any) {
	p.prefixed(p.crit, "C", format, args...)
}

// Headerf prints a "@ ..." finding header
func (p *Printer) Headerf(format string, args ...any) {
	fmt.Fprintln(p.out, p.header.Render("@ "+fmt.Sprintf(format, args...)))
}

// Printf writes unstyled text
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes an unstyled line
func (p *Printer) Println(s string) {
	fmt.Fprintln(p.out, s)
}

// Highlight writes a log line as-is in the accent colour
func (p *Printer) Highlight(line string) {
	fmt.Fprintln(p.out, p.accent.Render(strings.TrimRight(line, "\r\n")))
}

// Caret prints "^ text" indented to column
func (p *Printer) Caret(column int, text string) {
	if column < 0 {
		column = 0
	}
	fmt.Fprintln(p.out, strings.Repeat(" ", column)+p.accent.Render("^ "+text))
}

// Muted writes a dimmed line
func (p *Printer) Muted(s string) {
	fmt.Fprintln(p.out, p.muted.Render(s))
}

// Rule prints a horizontal separator
func (p *Printer) Rule() {
	fmt.Fprintln(p.out, "-----------------------------")
}
