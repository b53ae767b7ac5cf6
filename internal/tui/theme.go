package tui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	base   lipgloss.Style
	title  lipgloss.Style
	text   lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
	cursor lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	footer lipgloss.Style
}

var (
	darkPalette  = newPalette("#F0F0F0", "#8C8C8C", "#C89A3A", "#52C41A", "#FF4D4F", "#6E6E6E")
	lightPalette = newPalette("#1F1F1F", "#6E6E6E", "#9A6B00", "#237804", "#CF1322", "#8C8C8C")
)

func newPalette(text, muted, accent, good, bad, footer string) palette {
	return palette{
		base:   lipgloss.NewStyle(),
		title:  lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Bold(true),
		text:   lipgloss.NewStyle().Foreground(lipgloss.Color(text)),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(muted)),
		accent: lipgloss.NewStyle().Foreground(lipgloss.Color(accent)),
		cursor: lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Underline(true),
		good:   lipgloss.NewStyle().Foreground(lipgloss.Color(good)),
		bad:    lipgloss.NewStyle().Foreground(lipgloss.Color(bad)),
		footer: lipgloss.NewStyle().Foreground(lipgloss.Color(footer)),
	}
}

func paletteFor(dark bool) palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}
