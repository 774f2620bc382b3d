package ui

import "github.com/charmbracelet/lipgloss"

// Theme is a trimmed version of the teacher's enhanced_styles.go Theme: only
// the colors this module's block rendering actually uses survive, rather
// than the teacher's full message/prompt/system palette.
type Theme struct {
	Text   lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
	Border lipgloss.AdaptiveColor
	Tool   lipgloss.AdaptiveColor
	Error  lipgloss.AdaptiveColor
}

var currentTheme = DefaultTheme()

// GetTheme returns the active theme.
func GetTheme() Theme { return currentTheme }

// SetTheme replaces the active theme.
func SetTheme(t Theme) { currentTheme = t }

// DefaultTheme is the Catppuccin-derived palette from the teacher's
// DefaultTheme, trimmed to five colors; this package's block renderer
// references Tool, Error and Muted.
func DefaultTheme() Theme {
	return Theme{
		Text:   lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"},
		Muted:  lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#a6adc8"},
		Border: lipgloss.AdaptiveColor{Light: "#acb0be", Dark: "#585b70"},
		Tool:   lipgloss.AdaptiveColor{Light: "#fe640b", Dark: "#fab387"},
		Error:  lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"},
	}
}
