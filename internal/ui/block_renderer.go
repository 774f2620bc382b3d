package ui

import "github.com/charmbracelet/lipgloss"

// RenderToolBlock renders a tool call or its result inside a left-bordered
// box, title on the first line in the tool/error color and the body in the
// muted text color. Adapted from the teacher's block_renderer.go
// (renderContentBlock / WithBorderColor), trimmed to the one fixed layout
// this CLI needs (left border, fixed padding) instead of the teacher's full
// functional-options surface (alignment, full-width, margins) which nothing
// here exercises.
func RenderToolBlock(title, body string, isError bool) string {
	theme := GetTheme()
	borderColor := theme.Tool
	if isError {
		borderColor = theme.Error
	}

	titleStyle := lipgloss.NewStyle().Foreground(borderColor).Bold(true)
	bodyStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(borderColor).
		PaddingLeft(1)

	content := titleStyle.Render(title)
	if body != "" {
		content += "\n" + bodyStyle.Render(body)
	}
	return boxStyle.Render(content)
}
