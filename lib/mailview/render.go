// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailview

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

const timeLayout = "2006-01-02 15:04"

// Renderer formats snapshots for one output stream.
type Renderer struct {
	theme    Theme
	renderer *lipgloss.Renderer
}

// New returns a renderer for w. Color is enabled only when w is a
// terminal file.
func New(w io.Writer, theme Theme) *Renderer {
	renderer := lipgloss.NewRenderer(w)
	if file, ok := w.(*os.File); !ok || !term.IsTerminal(int(file.Fd())) {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{theme: theme, renderer: renderer}
}

// NewWithProfile returns a renderer that always uses profile.
func NewWithProfile(w io.Writer, theme Theme, profile termenv.Profile) *Renderer {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return &Renderer{theme: theme, renderer: renderer}
}

func (r *Renderer) style(color lipgloss.Color) lipgloss.Style {
	return r.renderer.NewStyle().Foreground(color)
}

// Labels renders label chips separated by spaces.
func (r *Renderer) Labels(labels []engine.LabelID) string {
	chips := make([]string, len(labels))
	for i, label := range labels {
		chips[i] = r.style(r.theme.LabelColor(label)).Render("[" + string(label) + "]")
	}
	return strings.Join(chips, " ")
}

// ConversationRow renders one line of a conversation list.
func (r *Renderer) ConversationRow(conversation mail.Conversation) string {
	subject := r.style(r.theme.NormalText)
	marker := " "
	if conversation.UnreadCount > 0 {
		subject = r.style(r.theme.UnreadText).Bold(true)
		marker = "*"
	}
	count := ""
	if conversation.MessageCount > 1 {
		count = r.style(r.theme.FaintText).Render(fmt.Sprintf(" (%d)", conversation.MessageCount))
	}
	line := fmt.Sprintf("%s %s  %s%s  %s",
		marker,
		r.style(r.theme.FaintText).Render(formatTime(conversation.LatestTime)),
		subject.Render(conversation.Subject),
		count,
		r.Labels(conversation.Labels),
	)
	return strings.TrimRight(line, " ")
}

// MessageRow renders one line of a message list.
func (r *Renderer) MessageRow(message mail.Message) string {
	subject := r.style(r.theme.NormalText)
	marker := " "
	if message.Unread {
		subject = r.style(r.theme.UnreadText).Bold(true)
		marker = "*"
	}
	line := fmt.Sprintf("%s %s  %-24s  %s  %s",
		marker,
		r.style(r.theme.FaintText).Render(formatTime(message.Time)),
		message.From,
		subject.Render(message.Subject),
		r.Labels(message.Labels),
	)
	return strings.TrimRight(line, " ")
}

// Conversation renders an open conversation: a bordered header, then
// each message with its body.
func (r *Renderer) Conversation(detail mail.ConversationDetail) string {
	header := r.renderer.NewStyle().
		Foreground(r.theme.HeaderForeground).
		Bold(true).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(r.theme.BorderColor).
		Render(detail.Conversation.Subject)

	var builder strings.Builder
	builder.WriteString(header)
	builder.WriteString("\n")
	fmt.Fprintf(&builder, "%s  %s\n",
		r.style(r.theme.FaintText).Render(strings.Join(detail.Conversation.Participants, ", ")),
		r.Labels(detail.Conversation.Labels))
	if hidden := detail.Conversation.MessageCount - len(detail.Messages); hidden > 0 {
		builder.WriteString(r.style(r.theme.FaintText).Render(fmt.Sprintf("%d message(s) hidden by the label filter", hidden)))
		builder.WriteString("\n")
	}
	for _, message := range detail.Messages {
		builder.WriteString("\n")
		builder.WriteString(r.MessageRow(message))
		builder.WriteString("\n")
		if message.Body != "" {
			body := r.renderer.NewStyle().PaddingLeft(4).Foreground(r.theme.NormalText).Render(message.Body)
			builder.WriteString(body)
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

// SendResults renders a delivery history, oldest first.
func (r *Renderer) SendResults(results []mail.SendResult) string {
	if len(results) == 0 {
		return r.style(r.theme.FaintText).Render("no delivery attempts")
	}
	lines := make([]string, len(results))
	for i, result := range results {
		line := fmt.Sprintf("%s  %s",
			r.style(r.theme.FaintText).Render(formatTime(result.Time)),
			r.style(r.theme.SendStateColor(result.State)).Render(result.State.String()))
		if result.Error != "" {
			line += "  " + result.Error
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Attachments renders an attachment list.
func (r *Renderer) Attachments(attachments []mail.Attachment) string {
	if len(attachments) == 0 {
		return r.style(r.theme.FaintText).Render("no attachments")
	}
	lines := make([]string, len(attachments))
	for i, attachment := range attachments {
		lines[i] = fmt.Sprintf("%s  %s  %s",
			attachment.Name,
			r.style(r.theme.FaintText).Render(attachment.ContentType),
			r.style(r.theme.FaintText).Render(humanize.IBytes(uint64(max(attachment.Size, 0)))))
	}
	return strings.Join(lines, "\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return strings.Repeat(" ", len(timeLayout))
	}
	return t.UTC().Format(timeLayout)
}
