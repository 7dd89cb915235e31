// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/mailbridge/lib/codec"
	"github.com/bureau-foundation/mailbridge/lib/compress"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// ErrInvalid means a mutation was given an incomplete record.
var ErrInvalid = errors.New("invalid record")

// PutLabel creates or renames a label definition. Label definitions
// are not watched.
func (s *Store) PutLabel(ctx context.Context, user engine.UserID, label mail.Label) error {
	if user == "" || label.ID == "" {
		return fmt.Errorf("mailstore: put label: user and id are required: %w", ErrInvalid)
	}
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO labels (user, id, name, system) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user, id) DO UPDATE SET name = excluded.name, system = excluded.system`,
			&sqlitex.ExecOptions{Args: []any{string(user), string(label.ID), label.Name, boolInt(label.System)}})
	})
	if err != nil {
		return fmt.Errorf("mailstore: put label %s: %w", label.ID, err)
	}
	return nil
}

// PutMessage inserts or replaces a message, including its labels.
// Watchers for the message's conversation (old and new, if it moved)
// and for every label it gained, lost, or kept are fired. Writing a
// message identical to the stored one fires nothing.
func (s *Store) PutMessage(ctx context.Context, user engine.UserID, message mail.Message) error {
	if user == "" || message.ID == "" || message.Conversation == "" {
		return fmt.Errorf("mailstore: put message: user, id, and conversation are required: %w", ErrInvalid)
	}
	meta := metaOf(message)
	encodedMeta, err := codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("mailstore: put message %s: %w", message.ID, err)
	}
	body, err := compress.Pack([]byte(message.Body), s.compression, message.ContentType)
	if err != nil {
		return fmt.Errorf("mailstore: put message %s: %w", message.ID, err)
	}
	labels := slices.Clone(message.Labels)
	slices.Sort(labels)
	labels = slices.Compact(labels)

	var touched change
	unchanged := false
	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		previous, found, err := storedMessage(conn, user, message.ID)
		if err != nil {
			return err
		}
		if found {
			unchanged, err = sameMessage(previous, message, labels)
			if err != nil {
				return err
			}
			if unchanged {
				return nil
			}
		}

		err = sqlitex.Execute(conn,
			`INSERT INTO messages (user, id, conversation, time, unread, meta, body) VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user, id) DO UPDATE SET
			   conversation = excluded.conversation, time = excluded.time, unread = excluded.unread,
			   meta = excluded.meta, body = excluded.body`,
			&sqlitex.ExecOptions{Args: []any{
				string(user), message.ID, message.Conversation, unixNanos(message.Time),
				boolInt(message.Unread), encodedMeta, body,
			}})
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, "DELETE FROM message_labels WHERE user = ? AND message = ?",
			&sqlitex.ExecOptions{Args: []any{string(user), message.ID}})
		if err != nil {
			return err
		}
		for _, label := range labels {
			err = sqlitex.Execute(conn, "INSERT INTO message_labels (user, message, label) VALUES (?, ?, ?)",
				&sqlitex.ExecOptions{Args: []any{string(user), message.ID, string(label)}})
			if err != nil {
				return err
			}
		}

		touched = change{user: user, conversations: []string{message.Conversation}, labels: labels}
		if found {
			if previous.Conversation != message.Conversation {
				touched.conversations = append(touched.conversations, previous.Conversation)
			}
			touched.labels = unionLabels(labels, previous.Labels)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mailstore: put message %s: %w", message.ID, err)
	}
	if !unchanged {
		s.notify(touched)
	}
	return nil
}

func storedMessage(conn *sqlite.Conn, user engine.UserID, id string) (mail.Message, bool, error) {
	var message mail.Message
	found := false
	err := sqlitex.Execute(conn,
		"SELECT "+messageColumns+", m.body FROM messages m WHERE m.user = ? AND m.id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(user), id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				message, err = scanMessage(stmt, true)
				found = err == nil
				return err
			},
		})
	if err != nil || !found {
		return message, found, err
	}
	message.Labels, err = messageLabels(conn, user, id)
	return message, true, err
}

// sameMessage reports whether replacing stored with incoming (whose
// labels are already sorted and deduplicated) would change anything.
func sameMessage(stored, incoming mail.Message, labels []engine.LabelID) (bool, error) {
	if stored.Conversation != incoming.Conversation ||
		!stored.Time.Equal(incoming.Time) ||
		stored.Unread != incoming.Unread ||
		stored.Body != incoming.Body ||
		!slices.Equal(stored.Labels, labels) {
		return false, nil
	}
	encoded, err := codec.Marshal(metaOf(stored))
	if err != nil {
		return false, err
	}
	return codec.Same(encoded, metaOf(incoming))
}

func unionLabels(a, b []engine.LabelID) []engine.LabelID {
	union := slices.Concat(a, b)
	slices.Sort(union)
	return slices.Compact(union)
}

func conversationOf(conn *sqlite.Conn, user engine.UserID, message string) (string, error) {
	conversation := ""
	found := false
	err := sqlitex.Execute(conn, "SELECT conversation FROM messages WHERE user = ? AND id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(user), message},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				conversation = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("message %s: %w", message, engine.ErrNotFound)
	}
	return conversation, nil
}

// ApplyLabel adds label to a message. Applying a label the message
// already has fires nothing.
func (s *Store) ApplyLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error {
	return s.relabel(ctx, user, message, label,
		"INSERT OR IGNORE INTO message_labels (user, message, label) VALUES (?, ?, ?)", "apply label")
}

// RemoveLabel removes label from a message. Removing a label the
// message does not have fires nothing.
func (s *Store) RemoveLabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID) error {
	return s.relabel(ctx, user, message, label,
		"DELETE FROM message_labels WHERE user = ? AND message = ? AND label = ?", "remove label")
}

func (s *Store) relabel(ctx context.Context, user engine.UserID, message string, label engine.LabelID, statement, op string) error {
	var touched *change
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		conversation, err := conversationOf(conn, user, message)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, statement,
			&sqlitex.ExecOptions{Args: []any{string(user), message, string(label)}})
		if err != nil {
			return err
		}
		if conn.Changes() > 0 {
			touched = &change{user: user, conversations: []string{conversation}, labels: []engine.LabelID{label}}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mailstore: %s %s on %s: %w", op, label, message, err)
	}
	if touched != nil {
		s.notify(*touched)
	}
	return nil
}

// MarkRead sets a message's read state. Watchers for its conversation
// and for each of its labels fire if the state changed.
func (s *Store) MarkRead(ctx context.Context, user engine.UserID, message string, read bool) error {
	var touched *change
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		conversation, err := conversationOf(conn, user, message)
		if err != nil {
			return err
		}
		unread := boolInt(!read)
		err = sqlitex.Execute(conn, "UPDATE messages SET unread = ? WHERE user = ? AND id = ? AND unread != ?",
			&sqlitex.ExecOptions{Args: []any{unread, string(user), message, unread}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return nil
		}
		labels, err := messageLabels(conn, user, message)
		if err != nil {
			return err
		}
		touched = &change{user: user, conversations: []string{conversation}, labels: labels}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mailstore: mark read %s: %w", message, err)
	}
	if touched != nil {
		s.notify(*touched)
	}
	return nil
}

// PutAttachment inserts or replaces an attachment descriptor. The
// message must exist.
func (s *Store) PutAttachment(ctx context.Context, user engine.UserID, attachment mail.Attachment) error {
	if user == "" || attachment.ID == "" || attachment.Message == "" {
		return fmt.Errorf("mailstore: put attachment: user, id, and message are required: %w", ErrInvalid)
	}
	meta, err := codec.Marshal(attachmentMeta{
		Name:        attachment.Name,
		ContentType: attachment.ContentType,
		Size:        attachment.Size,
	})
	if err != nil {
		return fmt.Errorf("mailstore: put attachment %s: %w", attachment.ID, err)
	}
	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if _, err := conversationOf(conn, user, attachment.Message); err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			`INSERT INTO attachments (user, id, message, meta) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user, id) DO UPDATE SET message = excluded.message, meta = excluded.meta`,
			&sqlitex.ExecOptions{Args: []any{string(user), attachment.ID, attachment.Message, meta}})
	})
	if err != nil {
		return fmt.Errorf("mailstore: put attachment %s: %w", attachment.ID, err)
	}
	s.notify(change{user: user, attachmentsOf: []string{attachment.Message}})
	return nil
}

// SetSendStatus appends a delivery attempt for an outgoing message. A
// zero Time is stamped with the store's clock.
func (s *Store) SetSendStatus(ctx context.Context, user engine.UserID, result mail.SendResult) error {
	if user == "" || result.Message == "" {
		return fmt.Errorf("mailstore: set send status: user and message are required: %w", ErrInvalid)
	}
	if result.Time.IsZero() {
		result.Time = s.clock.Now()
	}
	record, err := codec.Marshal(sendRecord{State: result.State, Error: result.Error, Time: result.Time.UTC()})
	if err != nil {
		return fmt.Errorf("mailstore: set send status %s: %w", result.Message, err)
	}
	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO send_results (user, message, seq, record)
			 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM send_results WHERE user = ? AND message = ?), ?)`,
			&sqlitex.ExecOptions{Args: []any{string(user), result.Message, string(user), result.Message, record}})
	})
	if err != nil {
		return fmt.Errorf("mailstore: set send status %s: %w", result.Message, err)
	}
	s.notify(change{user: user, sendStatusOf: []string{result.Message}})
	return nil
}
