// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	// ColorPrimary is used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")
	// ColorMuted is used for subtitles and de-emphasized text.
	ColorMuted = lipgloss.Color("#6B7280")
	// ColorSuccess is used for success states.
	ColorSuccess = lipgloss.Color("#10B981")
	// ColorError is used for errors and failures.
	ColorError = lipgloss.Color("#EF4444")
	// ColorWarning is used for warnings.
	ColorWarning = lipgloss.Color("#F59E0B")
	// ColorHighlight is used for commands and addresses.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for command names, keys and addresses.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// promptStyle renders the attach prompt.
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)
