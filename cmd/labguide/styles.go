package main

import (
	"github.com/charmbracelet/lipgloss"
)

// NVIDIA brand green plus the usual semantic colors.
var (
	colorBrand   = lipgloss.Color("#76B900")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.Color("245")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	sectionStyle = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(colorBrand)
	pendingStyle = lipgloss.NewStyle().Foreground(colorWarning)
	failStyle    = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)
