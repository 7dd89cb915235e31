// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command tree behind the mailbridge binary:
// pflag-parsed subcommands with typo suggestions, a terminal-aware
// logger, and exit codes that bypass the error line.
package cli
