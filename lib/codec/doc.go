// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for records the mail store
// persists: message metadata, attachment descriptors, and send
// results.
//
// Encoding is Core Deterministic (RFC 8949 §4.2), so the same logical
// record always produces the same bytes. The store relies on that to
// recognize a write that changes nothing ([Same]) and skip firing
// watchers for it.
//
// Types stored through this package use `cbor` struct tags. Types that
// also appear in CLI JSON output use `json` tags only; fxamacker/cbor
// falls back to them.
package codec
