// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailview

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// Theme is the color palette for mail output. Colors are ANSI 256
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	UnreadText lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	// SystemLabel colors inbox, sent, and the other built-in labels;
	// UserLabel everything else.
	SystemLabel lipgloss.Color
	UserLabel   lipgloss.Color

	// Send state colors, indexed by mail.SendState.
	SendStates [4]lipgloss.Color
}

// LabelColor returns the color for label.
func (theme Theme) LabelColor(label engine.LabelID) lipgloss.Color {
	switch label {
	case mail.Inbox, mail.Sent, mail.Drafts, mail.Trash, mail.Starred:
		return theme.SystemLabel
	default:
		return theme.UserLabel
	}
}

// SendStateColor returns the color for state. Unknown states are
// faint.
func (theme Theme) SendStateColor(state mail.SendState) lipgloss.Color {
	if int(state) >= len(theme.SendStates) {
		return theme.FaintText
	}
	return theme.SendStates[state]
}

// DefaultTheme is the built-in dark-terminal scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),
	UnreadText: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),

	SystemLabel: lipgloss.Color("75"),  // blue
	UserLabel:   lipgloss.Color("141"), // light purple

	SendStates: [4]lipgloss.Color{
		mail.SendQueued:  lipgloss.Color("245"), // gray
		mail.SendSending: lipgloss.Color("220"), // amber
		mail.SendSent:    lipgloss.Color("114"), // green
		mail.SendFailed:  lipgloss.Color("196"), // red
	},
}
