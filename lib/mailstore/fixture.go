// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// Fixture is a YAML document describing mailboxes to seed:
//
//	users:
//	  - id: alice
//	    labels:
//	      - {id: work, name: Work}
//	    messages:
//	      - id: m1
//	        conversation: c1
//	        from: bob@example.com
//	        subject: Hello
//	        time: 2026-01-02T15:04:05Z
//	        labels: [inbox, work]
//	        unread: true
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
}

// FixtureUser is one mailbox in a Fixture.
type FixtureUser struct {
	ID          engine.UserID     `yaml:"id"`
	Labels      []mail.Label      `yaml:"labels,omitempty"`
	Messages    []mail.Message    `yaml:"messages,omitempty"`
	Attachments []mail.Attachment `yaml:"attachments,omitempty"`
	SendResults []mail.SendResult `yaml:"send_results,omitempty"`
}

// SystemLabels are created for every seeded user.
var SystemLabels = []mail.Label{
	{ID: mail.Inbox, Name: "Inbox", System: true},
	{ID: mail.Sent, Name: "Sent", System: true},
	{ID: mail.Drafts, Name: "Drafts", System: true},
	{ID: mail.Trash, Name: "Trash", System: true},
	{ID: mail.Starred, Name: "Starred", System: true},
}

// LoadFixture decodes a fixture, rejecting unknown fields.
func LoadFixture(r io.Reader) (*Fixture, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var fixture Fixture
	if err := decoder.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("mailstore: fixture: %w", err)
	}
	for index, user := range fixture.Users {
		if user.ID == "" {
			return nil, fmt.Errorf("mailstore: fixture: user %d has no id", index)
		}
	}
	return &fixture, nil
}

// Seed writes every record in fixture through the normal mutation
// path, so watchers fire as they would for live writes.
func (s *Store) Seed(ctx context.Context, fixture *Fixture) error {
	for _, user := range fixture.Users {
		for _, label := range append(SystemLabels[:len(SystemLabels):len(SystemLabels)], user.Labels...) {
			if err := s.PutLabel(ctx, user.ID, label); err != nil {
				return err
			}
		}
		for _, message := range user.Messages {
			if err := s.PutMessage(ctx, user.ID, message); err != nil {
				return err
			}
		}
		for _, attachment := range user.Attachments {
			if err := s.PutAttachment(ctx, user.ID, attachment); err != nil {
				return err
			}
		}
		for _, result := range user.SendResults {
			if err := s.SetSendStatus(ctx, user.ID, result); err != nil {
				return err
			}
		}
		s.logger.Info("seeded mailbox",
			"user", string(user.ID),
			"labels", len(user.Labels),
			"messages", len(user.Messages),
			"attachments", len(user.Attachments),
		)
	}
	return nil
}
