// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mailwatch wires the generic live-query bridges and paginator
// machines to the mail domain: one bridge per snapshot kind and one
// machine per list, all sharing a registry and an invalidation bus.
//
// A UI surface opens a conversation with
//
//	watch := mailwatch.New(store, mailwatch.Options{Registry: registry, Bus: bus})
//	subscription, err := watch.OpenConversation(ctx, user, conversation, mail.Inbox, false)
//
// and pages a list with
//
//	page := watch.ConversationPage(ctx, user, mail.Inbox, false, paginator.Next)
//
// Close tears down every native resource the set holds.
package mailwatch
