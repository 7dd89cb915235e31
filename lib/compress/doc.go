// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress frames message bodies for storage.
//
// [Pack] compresses a body with the requested [Algorithm] and prefixes
// it with a one-byte algorithm tag and the uncompressed length, so
// [Unpack] needs nothing but the stored bytes. When compression would
// not shrink the body, Pack stores it raw under [None]; callers never
// see the incompressible case.
//
// Tags are persisted in the mail store. Never renumber them.
package compress
