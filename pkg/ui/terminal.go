// Package ui renders the command line output of igbackend: colored status
// lines, section rules, a wait spinner and desktop notifications.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// RuleWidth is the width of section rules
const RuleWidth = 60

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorEnabled reports whether output to w should be colored. NO_COLOR
// disables color everywhere.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(w)
}

// Printer writes styled lines to one writer
type Printer struct {
	out   io.Writer
	color bool
	r     *lipgloss.Renderer
	st    styles
}

// NewPrinter creates a printer for w; color is usually ColorEnabled(w)
func NewPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:   w,
		color: color,
		r:     r,
		st:    newStyles(r),
	}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color || text == "" {
		return text
	}
	return s.Render(text)
}

// Println writes an unstyled line
func (p *Printer) Println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

// Printf writes unstyled formatted text
func (p *Printer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format, a...)
}

// Error prints msg in red, followed by the first arg when given
func (p *Printer) Error(msg string, args ...interface{}) {
	fmt.Fprintln(p.out, p.paint(p.st.failure, withDetail(msg, args)))
}

// Warning prints msg in orange, followed by the first arg when given
func (p *Printer) Warning(msg string, args ...interface{}) {
	fmt.Fprintln(p.out, p.paint(p.st.warning, withDetail(msg, args)))
}

// Success prints msg in green
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.paint(p.st.success, msg))
}

// Info prints a "label: value" pair
func (p *Printer) Info(label string, value interface{}) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(p.st.label, label), p.paint(p.st.value, fmt.Sprint(value)))
}

// Highlight prints msg in magenta
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.out, p.paint(p.st.highlight, msg))
}

// Dim prints msg faded
func (p *Printer) Dim(msg string) {
	fmt.Fprintln(p.out, p.paint(p.st.dim, msg))
}

// Rule prints a full-width line of ch
func (p *Printer) Rule(ch string) {
	fmt.Fprintln(p.out, p.paint(p.st.dim, strings.Repeat(ch, RuleWidth)))
}

// Section prints title between two rules
func (p *Printer) Section(title string) {
	p.Println()
	p.Rule("=")
	fmt.Fprintln(p.out, p.paint(p.st.title, title))
	p.Rule("=")
}

// Banner prints the program name and version on one line
func (p *Printer) Banner(name, version string) {
	fmt.Fprintf(p.out, "%s %s\n", p.paint(p.st.title, name), p.paint(p.st.dim, version))
}

// Table prints rows under headers inside a rounded border
func (p *Printer) Table(headers []string, rows [][]string) {
	cell := p.r.NewStyle().Padding(0, 1)
	header := cell
	border := p.r.NewStyle()
	if p.color {
		header = cell.Inherit(p.st.label)
		border = p.st.dim
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	fmt.Fprintln(p.out, t.Render())
}

func withDetail(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, args[0])
}
