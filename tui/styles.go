/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/tejzpr/livewire-go/dashboard"
)

var (
	colorTitle      = lipgloss.Color("#7aa2f7")
	colorConnecting = lipgloss.Color("#e0af68")
	colorOnline     = lipgloss.Color("#9ece6a")
	colorInCall     = lipgloss.Color("#7dcfff")
	colorOffline    = lipgloss.Color("#565f89")
	colorAlert      = lipgloss.Color("#f7768e")
	colorBorder     = lipgloss.Color("#3b4261")
	colorFg         = lipgloss.Color("#c0caf5")
	colorDim        = lipgloss.Color("#565f89")
	colorAccent     = lipgloss.Color("#bb9af7")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFg)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAlert)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	incomingStyle = panelStyle.BorderForeground(colorAccent)
)

// indicatorColor maps the status dot class to a terminal color.
func indicatorColor(i dashboard.Indicator) lipgloss.Color {
	switch i {
	case dashboard.IndicatorConnecting:
		return colorConnecting
	case dashboard.IndicatorOnline:
		return colorOnline
	case dashboard.IndicatorInCall:
		return colorInCall
	default:
		return colorOffline
	}
}

type keyMap struct {
	Online     key.Binding
	Offline    key.Binding
	Accept     key.Binding
	Reject     key.Binding
	Hangup     key.Binding
	Subscriber key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Online, k.Offline, k.Accept, k.Reject, k.Hangup, k.Subscriber, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Online:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "go online")),
	Offline:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "go offline")),
	Accept:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
	Reject:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
	Hangup:     key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hang up")),
	Subscriber: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "my info")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
