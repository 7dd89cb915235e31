// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mailstore

import (
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/mailbridge/lib/mail"
)

// messageMeta is the CBOR record in messages.meta. Fields that drive
// queries (conversation, time, unread, labels) are columns instead.
type messageMeta struct {
	From        string   `cbor:"from"`
	To          []string `cbor:"to,omitempty"`
	Subject     string   `cbor:"subject"`
	ContentType string   `cbor:"content_type,omitempty"`
}

func metaOf(message mail.Message) messageMeta {
	return messageMeta{
		From:        message.From,
		To:          message.To,
		Subject:     message.Subject,
		ContentType: message.ContentType,
	}
}

// attachmentMeta is the CBOR record in attachments.meta.
type attachmentMeta struct {
	Name        string `cbor:"name"`
	ContentType string `cbor:"content_type"`
	Size        int64  `cbor:"size"`
}

// sendRecord is the CBOR record in send_results.record.
type sendRecord struct {
	State mail.SendState `cbor:"state"`
	Error string         `cbor:"error,omitempty"`
	Time  time.Time      `cbor:"time"`
}

// readBlob copies a BLOB column out of stmt; the statement's buffer is
// only valid until the next step.
func readBlob(stmt *sqlite.Stmt, column int) []byte {
	blob := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, blob)
	return blob
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func unixNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
