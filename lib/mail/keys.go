// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"strings"

	"github.com/bureau-foundation/mailbridge/lib/engine"
)

const (
	labelFilterPrefix = "label:"
	unreadFilter      = "unread"
)

// ConversationKey selects an open conversation as seen from label.
// With showAll false, messages without label are hidden (a thread
// opened from Trash shows only its trashed messages); showAll selects
// the unfiltered variant.
func ConversationKey(user engine.UserID, conversation string, label engine.LabelID, showAll bool) engine.Key {
	return engine.Key{
		User:    user,
		Entity:  engine.EntityID(conversation),
		Filters: labelFilters(label, false),
		Variant: showAll,
	}
}

// ListKey selects a conversation or message list for label, optionally
// restricted to unread items.
func ListKey(user engine.UserID, label engine.LabelID, unreadOnly bool) engine.Key {
	return engine.Key{
		User:    user,
		Filters: labelFilters(label, unreadOnly),
	}
}

// MessageKey selects per-message data: attachments or send status.
func MessageKey(user engine.UserID, message string) engine.Key {
	return engine.Key{User: user, Entity: engine.EntityID(message)}
}

func labelFilters(label engine.LabelID, unreadOnly bool) engine.FilterSet {
	names := make([]string, 0, 2)
	if label != "" {
		names = append(names, labelFilterPrefix+string(label))
	}
	if unreadOnly {
		names = append(names, unreadFilter)
	}
	return engine.NewFilterSet(names...)
}

// LabelOf returns the label a key is scoped to.
func LabelOf(key engine.Key) (engine.LabelID, bool) {
	for _, name := range key.Filters.Names() {
		if label, found := strings.CutPrefix(name, labelFilterPrefix); found {
			return engine.LabelID(label), true
		}
	}
	return "", false
}

// UnreadOnly reports whether a list key is restricted to unread items.
func UnreadOnly(key engine.Key) bool {
	return key.Filters.Contains(unreadFilter)
}

// ShowAll reports whether a conversation key selects every message
// regardless of label.
func ShowAll(key engine.Key) bool {
	return key.Variant
}
