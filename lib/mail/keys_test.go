// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"testing"
)

func TestKeysRoundTripFilters(t *testing.T) {
	list := ListKey("u1", Inbox, true)
	if label, ok := LabelOf(list); !ok || label != Inbox {
		t.Fatalf("LabelOf = %q, %v", label, ok)
	}
	if !UnreadOnly(list) {
		t.Fatal("unread filter lost")
	}
	if UnreadOnly(ListKey("u1", Inbox, false)) {
		t.Fatal("unread filter invented")
	}

	conversation := ConversationKey("u1", "c1", Trash, true)
	if label, _ := LabelOf(conversation); label != Trash || !ShowAll(conversation) {
		t.Fatalf("conversation key decoded wrongly: %s", conversation)
	}
	if conversation.Equal(ConversationKey("u1", "c1", Trash, false)) {
		t.Fatal("show-all variant must be a distinct key")
	}

	if _, ok := LabelOf(MessageKey("u1", "m1")); ok {
		t.Fatal("message key should have no label")
	}
}

func TestSendStateText(t *testing.T) {
	for _, state := range []SendState{SendQueued, SendSending, SendSent, SendFailed} {
		text, _ := state.MarshalText()
		var parsed SendState
		if err := parsed.UnmarshalText(text); err != nil || parsed != state {
			t.Fatalf("UnmarshalText(%q) = %v, %v", text, parsed, err)
		}
	}
	var parsed SendState
	if err := parsed.UnmarshalText([]byte("bounced")); err == nil {
		t.Fatal("unknown state accepted")
	}
}
