// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads mailbridge configuration.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the MAILBRIDGE_CONFIG environment variable (via
// [Load]). There is no discovery and no search path. Files ending in
// .json or .jsonc are read as JSON with comments and trailing commas;
// anything else is YAML.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. After the
// file, MAILBRIDGE_* environment variables override individual fields
// (for example MAILBRIDGE_STORE_PAGE_SIZE=50), and ${VAR} and
// ${VAR:-default} patterns in the store path are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Store, Watch, and Log sections
//   - [Default] -- development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
