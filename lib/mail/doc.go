// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mail defines the snapshot types the sync layer publishes
// and the [engine.Key] shapes that select them.
//
// Keys are built only through the constructors in this package
// ([ConversationKey], [ListKey], [MessageKey]) and read back through
// [LabelOf] and [UnreadOnly], so the filter naming used inside keys
// lives in one place.
package mail
