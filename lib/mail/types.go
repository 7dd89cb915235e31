// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"fmt"
	"slices"
	"time"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

// System labels. Any other LabelID is a user label.
const (
	Inbox   engine.LabelID = "inbox"
	Sent    engine.LabelID = "sent"
	Drafts  engine.LabelID = "drafts"
	Trash   engine.LabelID = "trash"
	Starred engine.LabelID = "starred"
)

// Label is a label definition.
type Label struct {
	ID     engine.LabelID `json:"id" yaml:"id"`
	Name   string         `json:"name" yaml:"name"`
	System bool           `json:"system,omitempty" yaml:"system,omitempty"`
}

// Message is one email. List snapshots leave Body empty.
type Message struct {
	ID           string           `json:"id" yaml:"id"`
	Conversation string           `json:"conversation" yaml:"conversation"`
	From         string           `json:"from" yaml:"from"`
	To           []string         `json:"to,omitempty" yaml:"to,omitempty"`
	Subject      string           `json:"subject" yaml:"subject"`
	Body         string           `json:"body,omitempty" yaml:"body,omitempty"`
	ContentType  string           `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Time         time.Time        `json:"time" yaml:"time"`
	Unread       bool             `json:"unread,omitempty" yaml:"unread,omitempty"`
	Labels       []engine.LabelID `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// HasLabel reports whether the message carries label.
func (m Message) HasLabel(label engine.LabelID) bool {
	return slices.Contains(m.Labels, label)
}

// Conversation summarizes a thread. In list snapshots LatestTime is the
// time of the newest message matching the list's filters.
type Conversation struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject"`
	Participants []string         `json:"participants,omitempty"`
	Labels       []engine.LabelID `json:"labels,omitempty"`
	MessageCount int              `json:"message_count"`
	UnreadCount  int              `json:"unread_count"`
	LatestTime   time.Time        `json:"latest_time"`
}

// ConversationDetail is the snapshot for an open conversation.
type ConversationDetail struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// Attachment describes a file attached to a message.
type Attachment struct {
	ID          string `json:"id" yaml:"id"`
	Message     string `json:"message" yaml:"message"`
	Name        string `json:"name" yaml:"name"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Size        int64  `json:"size" yaml:"size"`
}

// SendState is the delivery state of an outgoing message.
type SendState uint8

const (
	SendQueued SendState = iota
	SendSending
	SendSent
	SendFailed
)

var sendStateNames = [...]string{
	SendQueued:  "queued",
	SendSending: "sending",
	SendSent:    "sent",
	SendFailed:  "failed",
}

func (s SendState) String() string {
	if int(s) < len(sendStateNames) {
		return sendStateNames[s]
	}
	return fmt.Sprintf("send_state(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s SendState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SendState) UnmarshalText(text []byte) error {
	for index, name := range sendStateNames {
		if name == string(text) {
			*s = SendState(index)
			return nil
		}
	}
	return fmt.Errorf("mail: unknown send state %q", text)
}

// SendResult is one delivery attempt for an outgoing message, oldest
// first in snapshots.
type SendResult struct {
	Message string    `json:"message" yaml:"message"`
	State   SendState `json:"state" yaml:"state"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
	Time    time.Time `json:"time" yaml:"time,omitempty"`
}
