// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailwatch

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/invalidation"
	"github.com/bureau-foundation/mailbridge/lib/livequery"
	"github.com/bureau-foundation/mailbridge/lib/mail"
	"github.com/bureau-foundation/mailbridge/lib/paginator"
	"github.com/bureau-foundation/mailbridge/lib/resource"
)

// Engine is the native surface mailwatch needs. *mailstore.Store
// implements it.
type Engine interface {
	ConversationDetails() engine.Source[mail.ConversationDetail]
	Attachments() engine.Source[[]mail.Attachment]
	SendStatus() engine.Source[[]mail.SendResult]
	ConversationList() engine.PaginatorSource[mail.Conversation]
	MessageList() engine.PaginatorSource[mail.Message]
}

// Options configures a Set. All fields are optional.
type Options struct {
	Logger *slog.Logger

	// Registry tracks every live native resource. Nil uses
	// resource.Default().
	Registry *resource.Registry

	Tracer trace.Tracer

	// Bus receives list change notifications. Nil drops them.
	Bus *invalidation.Bus
}

// Set is the full collection of mail bridges and list machines for one
// engine.
type Set struct {
	ConversationDetail *livequery.Bridge[mail.ConversationDetail]
	Attachments        *livequery.Bridge[[]mail.Attachment]
	SendStatus         *livequery.Bridge[[]mail.SendResult]

	ConversationList *paginator.Machine[mail.Conversation]
	MessageList      *paginator.Machine[mail.Message]
}

// New builds a Set over native.
func New(native Engine, options Options) *Set {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bridgeOptions := func(name string) livequery.Options {
		return livequery.Options{
			Name:     name,
			Logger:   logger,
			Registry: options.Registry,
			Tracer:   options.Tracer,
		}
	}
	machineOptions := func(name string, sources ...invalidation.Source) paginator.Options {
		return paginator.Options{
			Name:     name,
			Logger:   logger,
			Registry: options.Registry,
			Tracer:   options.Tracer,
			Bus:      options.Bus,
			Sources:  invalidation.NewSet(sources...),
		}
	}
	return &Set{
		ConversationDetail: livequery.New(native.ConversationDetails(), bridgeOptions("conversation-detail")),
		Attachments:        livequery.New(native.Attachments(), bridgeOptions("attachments")),
		SendStatus:         livequery.New(native.SendStatus(), bridgeOptions("send-status")),
		ConversationList: paginator.New(native.ConversationList(),
			machineOptions("conversation-list", invalidation.Conversations)),
		MessageList: paginator.New(native.MessageList(),
			machineOptions("message-list", invalidation.Messages)),
	}
}

// OpenConversation subscribes to conversation as seen from label. With
// showAll, messages outside label are included.
func (s *Set) OpenConversation(ctx context.Context, user engine.UserID, conversation string, label engine.LabelID, showAll bool) (*livequery.Subscription[mail.ConversationDetail], error) {
	return s.ConversationDetail.Subscribe(ctx, mail.ConversationKey(user, conversation, label, showAll))
}

// WatchAttachments subscribes to message's attachments.
func (s *Set) WatchAttachments(ctx context.Context, user engine.UserID, message string) (*livequery.Subscription[[]mail.Attachment], error) {
	return s.Attachments.Subscribe(ctx, mail.MessageKey(user, message))
}

// WatchSendStatus subscribes to message's delivery history.
func (s *Set) WatchSendStatus(ctx context.Context, user engine.UserID, message string) (*livequery.Subscription[[]mail.SendResult], error) {
	return s.SendStatus.Subscribe(ctx, mail.MessageKey(user, message))
}

// ConversationPage runs request against the conversation list for
// (user, label, unreadOnly). Failures return nil and are logged.
func (s *Set) ConversationPage(ctx context.Context, user engine.UserID, label engine.LabelID, unreadOnly bool, request paginator.Request) []mail.Conversation {
	return s.ConversationList.Page(ctx, mail.ListKey(user, label, unreadOnly), request)
}

// MessagePage runs request against the message list for (user, label,
// unreadOnly). Failures return nil and are logged.
func (s *Set) MessagePage(ctx context.Context, user engine.UserID, label engine.LabelID, unreadOnly bool, request paginator.Request) []mail.Message {
	return s.MessageList.Page(ctx, mail.ListKey(user, label, unreadOnly), request)
}

// Close disconnects every native resource the set holds. Open
// subscriptions stay attached and resume on the next Subscribe.
func (s *Set) Close() {
	s.ConversationDetail.Teardown()
	s.Attachments.Teardown()
	s.SendStatus.Teardown()
	s.ConversationList.Close()
	s.MessageList.Close()
}
