package devreload

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	bannerTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	bannerDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// RenderBanner returns the startup banner shown before the first child starts
func RenderBanner(app string, port int, watched int, manual bool) string {
	mode := fmt.Sprintf("watching %d files", watched)
	if manual {
		mode = "manual reload"
	}

	lines := []string{
		bannerTitle.Render("devreload " + Version),
		fmt.Sprintf("serving %s on port %d", app, port),
		bannerDim.Render(mode),
	}
	return bannerBox.Render(strings.Join(lines, "\n"))
}
