package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	borderColor  = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	titleColor   = lipgloss.AdaptiveColor{Light: "#00AAAA", Dark: "#00FFFF"}
	bodyColor    = lipgloss.AdaptiveColor{Light: "#a60853", Dark: "#F652A0"}
	okColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	warningColor = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}

	borderStyle = lipgloss.NewStyle().Foreground(borderColor)
	bannerStyle = lipgloss.NewStyle().
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)
	bannerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(titleColor)
	bannerBodyStyle  = lipgloss.NewStyle().Foreground(bodyColor)
	okStyle          = lipgloss.NewStyle().Foreground(okColor)
	warningStyle     = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle       = lipgloss.NewStyle().Foreground(mutedColor)
)

// Table writes rows under headers. Without a terminal it writes tab separated
// lines so the output can be piped.
func Table(w io.Writer, headers []string, rows [][]string) {
	if !HasTTY {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

// Banner writes a boxed title and body. Without a terminal only the body is written.
func Banner(w io.Writer, title, body string) {
	if !HasTTY {
		fmt.Fprintln(w, body)
		return
	}
	fmt.Fprintln(w, bannerStyle.Render(bannerTitleStyle.Render(title)+"\n\n"+bannerBodyStyle.Render(body)))
}

func Success(w io.Writer, msg string, args ...any) {
	fmt.Fprintln(w, okStyle.Render("✓")+" "+fmt.Sprintf(msg, args...))
}

func Warning(w io.Writer, msg string, args ...any) {
	fmt.Fprintln(w, warningStyle.Render("✕")+" "+fmt.Sprintf(msg, args...))
}

func Muted(text string) string {
	return mutedStyle.Render(text)
}
