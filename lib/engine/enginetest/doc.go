// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package enginetest provides in-memory fakes of the native engine
// contracts in package engine. The fakes record every watcher and
// paginator they create and disconnect, so tests can assert the
// single-live-resource invariants directly, and they let tests fire
// change callbacks, inject failures, and hold queries open to stage
// races deterministically.
package enginetest
