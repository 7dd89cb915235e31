// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailview

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

var when = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func plain(t *testing.T) *Renderer {
	t.Helper()
	return NewWithProfile(&bytes.Buffer{}, DefaultTheme, termenv.Ascii)
}

func TestNonTerminalOutputHasNoEscapes(t *testing.T) {
	var buffer bytes.Buffer
	renderer := New(&buffer, DefaultTheme)
	row := renderer.ConversationRow(mail.Conversation{
		ID: "c1", Subject: "Hello", UnreadCount: 1, MessageCount: 3, LatestTime: when,
		Labels: []engine.LabelID{mail.Inbox},
	})
	if strings.Contains(row, "\x1b[") {
		t.Errorf("row contains escape sequences: %q", row)
	}
	want := "* 2026-03-01 09:30  Hello (3)  [inbox]"
	if row != want {
		t.Errorf("row = %q, want %q", row, want)
	}
}

func TestColorProfileStylesLabels(t *testing.T) {
	renderer := NewWithProfile(&bytes.Buffer{}, DefaultTheme, termenv.ANSI256)
	chips := renderer.Labels([]engine.LabelID{mail.Inbox})
	if !strings.Contains(chips, "\x1b[") || !strings.Contains(chips, "[inbox]") {
		t.Errorf("Labels = %q, want a colored chip", chips)
	}
}

func TestConversationShowsHiddenCount(t *testing.T) {
	detail := mail.ConversationDetail{
		Conversation: mail.Conversation{
			ID: "c1", Subject: "Quarterly numbers", MessageCount: 2,
			Participants: []string{"bob@example.com", "alice@example.com"},
		},
		Messages: []mail.Message{{
			ID: "m2", From: "bob@example.com", Subject: "Quarterly numbers",
			Body: "See attached.", Time: when, Labels: []engine.LabelID{mail.Trash},
		}},
	}
	out := plain(t).Conversation(detail)
	for _, want := range []string{
		"Quarterly numbers",
		"bob@example.com, alice@example.com",
		"1 message(s) hidden by the label filter",
		"    See attached.",
		"[trash]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSendResultsAndAttachments(t *testing.T) {
	renderer := plain(t)
	if got := renderer.SendResults(nil); got != "no delivery attempts" {
		t.Errorf("SendResults(nil) = %q", got)
	}
	got := renderer.SendResults([]mail.SendResult{
		{State: mail.SendFailed, Error: "timeout", Time: when},
		{State: mail.SendSent, Time: when.Add(time.Minute)},
	})
	want := "2026-03-01 09:30  failed  timeout\n2026-03-01 09:31  sent"
	if got != want {
		t.Errorf("SendResults = %q, want %q", got, want)
	}

	attachments := renderer.Attachments([]mail.Attachment{{Name: "q1.xlsx", ContentType: "application/vnd.ms-excel", Size: 2048}})
	if attachments != "q1.xlsx  application/vnd.ms-excel  2.0 KiB" {
		t.Errorf("Attachments = %q", attachments)
	}
}

func TestThemeColors(t *testing.T) {
	if DefaultTheme.LabelColor(mail.Inbox) != DefaultTheme.SystemLabel {
		t.Error("inbox is not a system label color")
	}
	if DefaultTheme.LabelColor("work") != DefaultTheme.UserLabel {
		t.Error("work is not a user label color")
	}
	if DefaultTheme.SendStateColor(mail.SendState(9)) != DefaultTheme.FaintText {
		t.Error("unknown send state is not faint")
	}
}
