// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailwatch

import (
	"context"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/invalidation"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// Writer is the native write surface. *mailstore.Store implements it.
type Writer interface {
	PutMessage(ctx context.Context, user engine.UserID, message mail.Message) error
	ApplyLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error
	RemoveLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error
	MarkRead(ctx context.Context, user engine.UserID, message string, read bool) error
	PutAttachment(ctx context.Context, user engine.UserID, attachment mail.Attachment) error
	SetSendStatus(ctx context.Context, user engine.UserID, result mail.SendResult) error
}

// Mutations applies writes to the native engine and, once a write
// succeeds, notifies the bus of the categories it touched. Failed
// writes notify nothing.
type Mutations struct {
	native Writer
	bus    *invalidation.Bus
}

// NewMutations returns a Mutations over native. A nil bus uses
// invalidation.Default().
func NewMutations(native Writer, bus *invalidation.Bus) *Mutations {
	if bus == nil {
		bus = invalidation.Default()
	}
	return &Mutations{native: native, bus: bus}
}

func (m *Mutations) after(err error, sources ...invalidation.Source) error {
	if err != nil {
		return err
	}
	m.bus.NotifyInvalidation(sources...)
	return nil
}

// labelSources is what a label change on a message invalidates.
func labelSources(label engine.LabelID) []invalidation.Source {
	sources := []invalidation.Source{invalidation.Labels, invalidation.Conversations, invalidation.Messages}
	if label == mail.Drafts {
		sources = append(sources, invalidation.Drafts)
	}
	return sources
}

// PutMessage stores message.
func (m *Mutations) PutMessage(ctx context.Context, user engine.UserID, message mail.Message) error {
	sources := []invalidation.Source{invalidation.Labels, invalidation.Conversations, invalidation.Messages}
	if message.HasLabel(mail.Drafts) {
		sources = append(sources, invalidation.Drafts)
	}
	return m.after(m.native.PutMessage(ctx, user, message), sources...)
}

// ApplyLabel adds label to message.
func (m *Mutations) ApplyLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error {
	return m.after(m.native.ApplyLabel(ctx, user, message, label), labelSources(label)...)
}

// RemoveLabel removes label from message.
func (m *Mutations) RemoveLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error {
	return m.after(m.native.RemoveLabel(ctx, user, message, label), labelSources(label)...)
}

// MarkRead sets message's read state.
func (m *Mutations) MarkRead(ctx context.Context, user engine.UserID, message string, read bool) error {
	return m.after(m.native.MarkRead(ctx, user, message, read), invalidation.Conversations, invalidation.Messages)
}

// PutAttachment stores attachment.
func (m *Mutations) PutAttachment(ctx context.Context, user engine.UserID, attachment mail.Attachment) error {
	return m.after(m.native.PutAttachment(ctx, user, attachment), invalidation.Attachments)
}

// SetSendStatus records a delivery attempt.
func (m *Mutations) SetSendStatus(ctx context.Context, user engine.UserID, result mail.SendResult) error {
	return m.after(m.native.SetSendStatus(ctx, user, result), invalidation.SendStatus)
}
