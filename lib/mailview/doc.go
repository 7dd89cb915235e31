// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mailview renders mail snapshots as styled terminal text for
// the mailbridge CLI. Styling goes through lipgloss; when the output
// is not a terminal the renderer drops to the ASCII profile so piped
// output carries no escape sequences.
package mailview
