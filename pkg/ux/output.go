// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the lintfleet CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors (keeping standard conventions for clarity)
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#2C4A54") // Slate for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconSkipped Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	if !ShouldShowColors() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconSkipped:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// StatusIcon maps a run status name to its icon.
func StatusIcon(status string) Icon {
	switch status {
	case "success":
		return IconSuccess
	case "warning":
		return IconWarning
	case "error":
		return IconError
	default:
		return IconSkipped
	}
}

// Print helpers that respect the output mode

// Title prints a styled title
func Title(text string) {
	if GetMode() == ModeMachine {
		return
	}
	if ShouldShowColors() {
		fmt.Println(Styles.Title.Render(text))
		return
	}
	fmt.Println(text)
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconSuccess, text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconWarning, text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconError, text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Println(text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconBullet, text)
	default:
		fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetMode() == ModeMachine {
		return
	}
	if ShouldShowColors() {
		fmt.Println(Styles.Muted.Render(text))
		return
	}
	fmt.Println(text)
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetMode() != ModeRich {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}
