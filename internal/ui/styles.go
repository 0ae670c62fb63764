// Package ui provides consistent styling for the waycheck CLI
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
)

// Base styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	// Summary styles
	SummarySuccessStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Bold(true)

	SummaryErrorStyle = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	MessageStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			MarginLeft(5)

	KeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

// Icons
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconRun     = "»"
	IconSummary = "="
	IconPhase   = "·"
)

// FormatHeader renders a section title followed by a separator.
func FormatHeader(icon, title string) string {
	header := HeaderStyle.Render(InfoStyle.Render(icon) + " " + title)
	return header + "\n" + CreateSeparator(50, "─")
}

// FormatCaseResult renders one case outcome. The message is shown on its
// own indented line for failures.
func FormatCaseResult(passed bool, name string, d time.Duration, message string) string {
	icon := SuccessStyle.Render(IconSuccess)
	if !passed {
		icon = ErrorStyle.Render(IconError)
	}
	line := "   " + icon + " " + TextStyle.Render(name) + " " + SubtleStyle.Render(fmt.Sprintf("(%s)", d.Round(time.Millisecond)))
	if !passed && message != "" {
		line += "\n" + MessageStyle.Render(message)
	}
	return line
}

// FormatSummary renders the pass/fail totals.
func FormatSummary(passed, failed int) string {
	total := passed + failed
	if failed == 0 {
		return SummarySuccessStyle.Render(fmt.Sprintf("%s %d/%d cases passed", IconSuccess, passed, total))
	}
	return SummaryErrorStyle.Render(fmt.Sprintf("%s %d/%d cases failed", IconError, failed, total))
}

// FormatCaseListItem renders a case name and its description.
func FormatCaseListItem(name, description string) string {
	return "  " + InfoStyle.Render(IconPhase) + " " + KeyStyle.Render(name) + "\n      " + SubtleStyle.Render(description)
}

// FormatKeyValue renders one configuration entry.
func FormatKeyValue(key string, value any) string {
	return KeyStyle.Render(key) + " = " + TextStyle.Render(fmt.Sprint(value))
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}

	return lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(strings.Repeat(char, width))
}
