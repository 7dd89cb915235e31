// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/mailbridge/lib/codec"
	"github.com/bureau-foundation/mailbridge/lib/compress"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// Columns: id(0), conversation(1), time(2), unread(3), meta(4), and
// body(5) when requested.
const messageColumns = "m.id, m.conversation, m.time, m.unread, m.meta"

func scanMessage(stmt *sqlite.Stmt, withBody bool) (mail.Message, error) {
	message := mail.Message{
		ID:           stmt.ColumnText(0),
		Conversation: stmt.ColumnText(1),
		Time:         fromUnixNanos(stmt.ColumnInt64(2)),
		Unread:       stmt.ColumnInt64(3) != 0,
	}
	var meta messageMeta
	if err := codec.Unmarshal(readBlob(stmt, 4), &meta); err != nil {
		return message, fmt.Errorf("message %s metadata: %w", message.ID, err)
	}
	message.From = meta.From
	message.To = meta.To
	message.Subject = meta.Subject
	message.ContentType = meta.ContentType

	if withBody {
		body, err := compress.Unpack(readBlob(stmt, 5))
		if err != nil {
			return message, fmt.Errorf("message %s body: %w", message.ID, err)
		}
		message.Body = string(body)
	}
	return message, nil
}

func messageLabels(conn *sqlite.Conn, user engine.UserID, message string) ([]engine.LabelID, error) {
	var labels []engine.LabelID
	err := sqlitex.Execute(conn,
		"SELECT label FROM message_labels WHERE user = ? AND message = ? ORDER BY label",
		&sqlitex.ExecOptions{
			Args: []any{string(user), message},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				labels = append(labels, engine.LabelID(stmt.ColumnText(0)))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("labels of %s: %w", message, err)
	}
	return labels, nil
}

func attachLabels(conn *sqlite.Conn, user engine.UserID, messages []mail.Message) error {
	for i := range messages {
		labels, err := messageLabels(conn, user, messages[i].ID)
		if err != nil {
			return err
		}
		messages[i].Labels = labels
	}
	return nil
}

func conversationMessages(conn *sqlite.Conn, user engine.UserID, conversation string, withBody bool) ([]mail.Message, error) {
	columns := messageColumns
	if withBody {
		columns += ", m.body"
	}
	var messages []mail.Message
	err := sqlitex.Execute(conn,
		"SELECT "+columns+" FROM messages m WHERE m.user = ? AND m.conversation = ? ORDER BY m.time ASC, m.id ASC",
		&sqlitex.ExecOptions{
			Args: []any{string(user), conversation},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				message, err := scanMessage(stmt, withBody)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", conversation, err)
	}
	if err := attachLabels(conn, user, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// summarize builds the conversation summary from its messages, oldest
// first.
func summarize(id string, messages []mail.Message) mail.Conversation {
	summary := mail.Conversation{ID: id, MessageCount: len(messages)}
	for _, message := range messages {
		if summary.Subject == "" {
			summary.Subject = message.Subject
		}
		if message.From != "" && !slices.Contains(summary.Participants, message.From) {
			summary.Participants = append(summary.Participants, message.From)
		}
		for _, label := range message.Labels {
			if !slices.Contains(summary.Labels, label) {
				summary.Labels = append(summary.Labels, label)
			}
		}
		if message.Unread {
			summary.UnreadCount++
		}
		if message.Time.After(summary.LatestTime) {
			summary.LatestTime = message.Time
		}
	}
	slices.Sort(summary.Labels)
	return summary
}

func (s *Store) loadDetail(conn *sqlite.Conn, key engine.Key) (mail.ConversationDetail, error) {
	conversation := string(key.Entity)
	messages, err := conversationMessages(conn, key.User, conversation, true)
	if err != nil {
		return mail.ConversationDetail{}, err
	}
	if len(messages) == 0 {
		return mail.ConversationDetail{}, fmt.Errorf("conversation %s: %w", conversation, engine.ErrNotFound)
	}

	detail := mail.ConversationDetail{Conversation: summarize(conversation, messages)}
	label, scoped := mail.LabelOf(key)
	if !scoped || mail.ShowAll(key) {
		detail.Messages = messages
		return detail, nil
	}
	detail.Messages = make([]mail.Message, 0, len(messages))
	for _, message := range messages {
		if message.HasLabel(label) {
			detail.Messages = append(detail.Messages, message)
		}
	}
	return detail, nil
}

func loadAttachments(conn *sqlite.Conn, user engine.UserID, message string) ([]mail.Attachment, error) {
	attachments := []mail.Attachment{}
	err := sqlitex.Execute(conn,
		"SELECT id, meta FROM attachments WHERE user = ? AND message = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{string(user), message},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var meta attachmentMeta
				if err := codec.Unmarshal(readBlob(stmt, 1), &meta); err != nil {
					return fmt.Errorf("attachment %s: %w", stmt.ColumnText(0), err)
				}
				attachments = append(attachments, mail.Attachment{
					ID:          stmt.ColumnText(0),
					Message:     message,
					Name:        meta.Name,
					ContentType: meta.ContentType,
					Size:        meta.Size,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("attachments of %s: %w", message, err)
	}
	return attachments, nil
}

func loadSendResults(conn *sqlite.Conn, user engine.UserID, message string) ([]mail.SendResult, error) {
	results := []mail.SendResult{}
	err := sqlitex.Execute(conn,
		"SELECT record FROM send_results WHERE user = ? AND message = ? ORDER BY seq",
		&sqlitex.ExecOptions{
			Args: []any{string(user), message},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var record sendRecord
				if err := codec.Unmarshal(readBlob(stmt, 0), &record); err != nil {
					return err
				}
				results = append(results, mail.SendResult{
					Message: message,
					State:   record.State,
					Error:   record.Error,
					Time:    record.Time,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("send results of %s: %w", message, err)
	}
	return results, nil
}

// position is a keyset cursor: lists are ordered by (time DESC, id
// DESC), and a position is the last item returned.
type position struct {
	time int64
	id   string
}

// window selects a slice of a list. With after set, items strictly
// past after; with through set, every item up to and including
// through; with neither, items from the top. limit <= 0 is unbounded.
type window struct {
	after   *position
	through *position
	limit   int
}

func (w window) condition(timeExpr, idExpr string) (string, []any) {
	switch {
	case w.after != nil:
		return fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND %[2]s < ?))", timeExpr, idExpr),
			[]any{w.after.time, w.after.time, w.after.id}
	case w.through != nil:
		return fmt.Sprintf("(%[1]s > ? OR (%[1]s = ? AND %[2]s >= ?))", timeExpr, idExpr),
			[]any{w.through.time, w.through.time, w.through.id}
	default:
		return "", nil
	}
}

// listFilter is the decoded form of a list key.
type listFilter struct {
	user   engine.UserID
	label  engine.LabelID
	unread bool
}

func listFilterOf(key engine.Key) listFilter {
	label, _ := mail.LabelOf(key)
	return listFilter{user: key.User, label: label, unread: mail.UnreadOnly(key)}
}

// from returns the FROM/WHERE body shared by both list queries.
func (f listFilter) from() (string, []string, []any) {
	from := "messages m"
	conditions := []string{"m.user = ?"}
	args := []any{string(f.user)}
	if f.label != "" {
		from += " JOIN message_labels ml ON ml.user = m.user AND ml.message = m.id"
		conditions = append(conditions, "ml.label = ?")
		args = append(args, string(f.label))
	}
	if f.unread {
		conditions = append(conditions, "m.unread = 1")
	}
	return from, conditions, args
}

func loadMessagePage(conn *sqlite.Conn, filter listFilter, w window) ([]mail.Message, []position, error) {
	from, conditions, args := filter.from()
	if clause, clauseArgs := w.condition("m.time", "m.id"); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, clauseArgs...)
	}
	query := "SELECT " + messageColumns + " FROM " + from +
		" WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY m.time DESC, m.id DESC"
	if w.limit > 0 {
		query += " LIMIT ?"
		args = append(args, w.limit)
	}

	var messages []mail.Message
	var positions []position
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			message, err := scanMessage(stmt, false)
			if err != nil {
				return err
			}
			messages = append(messages, message)
			positions = append(positions, position{time: stmt.ColumnInt64(2), id: message.ID})
			return nil
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("message list: %w", err)
	}
	if err := attachLabels(conn, filter.user, messages); err != nil {
		return nil, nil, err
	}
	return messages, positions, nil
}

func loadConversationPage(conn *sqlite.Conn, filter listFilter, w window) ([]mail.Conversation, []position, error) {
	from, conditions, args := filter.from()
	query := "SELECT m.conversation, MAX(m.time) FROM " + from +
		" WHERE " + strings.Join(conditions, " AND ") +
		" GROUP BY m.conversation"
	if clause, clauseArgs := w.condition("MAX(m.time)", "m.conversation"); clause != "" {
		query += " HAVING " + clause
		args = append(args, clauseArgs...)
	}
	query += " ORDER BY MAX(m.time) DESC, m.conversation DESC"
	if w.limit > 0 {
		query += " LIMIT ?"
		args = append(args, w.limit)
	}

	var positions []position
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			positions = append(positions, position{time: stmt.ColumnInt64(1), id: stmt.ColumnText(0)})
			return nil
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("conversation list: %w", err)
	}

	conversations := make([]mail.Conversation, 0, len(positions))
	for _, at := range positions {
		messages, err := conversationMessages(conn, filter.user, at.id, false)
		if err != nil {
			return nil, nil, err
		}
		summary := summarize(at.id, messages)
		summary.LatestTime = fromUnixNanos(at.time)
		conversations = append(conversations, summary)
	}
	return conversations, positions, nil
}

// Labels returns user's label definitions ordered by id.
func (s *Store) Labels(ctx context.Context, user engine.UserID) ([]mail.Label, error) {
	var labels []mail.Label
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT id, name, system FROM labels WHERE user = ? ORDER BY id",
			&sqlitex.ExecOptions{
				Args: []any{string(user)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					labels = append(labels, mail.Label{
						ID:     engine.LabelID(stmt.ColumnText(0)),
						Name:   stmt.ColumnText(1),
						System: stmt.ColumnInt64(2) != 0,
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("mailstore: labels for %s: %w", user, err)
	}
	return labels, nil
}
