// ABOUTME: Terminal styling for command output
// ABOUTME: lipgloss styles that fall back to plain text when output is not a TTY
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(22)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// printer writes command output, styled only on a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *printer) println(s string) {
	_, _ = io.WriteString(p.w, s+"\n")
}

func (p *printer) title(text string) {
	p.println(p.render(titleStyle, text))
}

func (p *printer) header(text string) {
	p.println("")
	p.println(p.render(headerStyle, text))
}

// field prints an aligned "label value" line.
func (p *printer) field(label, value string) {
	if p.styled {
		p.println(labelStyle.Render(label) + value)
		return
	}
	p.println(padRight(label, 22) + value)
}

func padRight(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s
}

func (p *printer) state(healthy bool, level, text string) string {
	switch {
	case !healthy:
		return p.render(errorStyle, text)
	case level == "warning":
		return p.render(warnStyle, text)
	default:
		return p.render(okStyle, text)
	}
}
