// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource tracks live native resources for coarse teardown.
//
// Bridges and paginator machines own their native handles and release
// them through their own lifecycle (last unsubscribe, key change).
// Some events must release everything at once regardless of those
// lifecycles: signing out, or switching accounts. [Registry] is the
// hook for that. Owners register a resource when it goes live and
// unregister it when they disconnect it themselves; [Registry.DisconnectAll]
// disconnects whatever is still registered.
//
// [Default] returns the process-scoped registry that mailbridge
// components use when no registry is injected. Call DisconnectAll on
// it from the sign-out and account-switch paths.
package resource
