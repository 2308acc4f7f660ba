package dashboard

import "github.com/charmbracelet/lipgloss"

// Theme is the dashboard palette. Colors are ANSI 256 codes.
type Theme struct {
	Header    lipgloss.Color
	Alive     lipgloss.Color
	Dead      lipgloss.Color
	Error     lipgloss.Color
	Faint     lipgloss.Color
	Selected  lipgloss.Color
	Highlight lipgloss.Color
}

var DefaultTheme = Theme{
	Header:    lipgloss.Color("252"),
	Alive:     lipgloss.Color("42"),
	Dead:      lipgloss.Color("196"),
	Error:     lipgloss.Color("203"),
	Faint:     lipgloss.Color("243"),
	Selected:  lipgloss.Color("236"),
	Highlight: lipgloss.Color("229"),
}

type styles struct {
	title    lipgloss.Style
	section  lipgloss.Style
	alive    lipgloss.Style
	dead     lipgloss.Style
	err      lipgloss.Style
	faint    lipgloss.Style
	selected lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Header),
		section:  lipgloss.NewStyle().Bold(true).Underline(true).Foreground(theme.Header),
		alive:    lipgloss.NewStyle().Foreground(theme.Alive),
		dead:     lipgloss.NewStyle().Foreground(theme.Dead),
		err:      lipgloss.NewStyle().Foreground(theme.Error),
		faint:    lipgloss.NewStyle().Foreground(theme.Faint),
		selected: lipgloss.NewStyle().Background(theme.Selected).Foreground(theme.Highlight),
	}
}
