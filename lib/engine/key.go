// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// UserID identifies the account that owns a query. Every native
// resource is scoped to exactly one user session.
type UserID string

// EntityID identifies the target of a query: a conversation, a
// message, a label, or a draft, depending on the instantiation.
type EntityID string

// LabelID identifies a label (system folders such as inbox and sent
// are labels too).
type LabelID string

// FilterSet is a normalized set of filter names. The zero value is the
// empty set. Construct with [NewFilterSet]; the names are sorted and
// deduplicated so that two sets with the same members compare equal
// regardless of construction order.
type FilterSet struct {
	names []string
}

// NewFilterSet builds a FilterSet from names. Empty names are dropped.
func NewFilterSet(names ...string) FilterSet {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized = append(normalized, name)
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)
	if len(normalized) == 0 {
		return FilterSet{}
	}
	return FilterSet{names: normalized}
}

// Names returns a copy of the sorted member names.
func (set FilterSet) Names() []string {
	return slices.Clone(set.names)
}

// Len returns the number of filters in the set.
func (set FilterSet) Len() int {
	return len(set.names)
}

// Contains reports whether name is a member of the set.
func (set FilterSet) Contains(name string) bool {
	_, found := slices.BinarySearch(set.names, name)
	return found
}

// Equal reports whether both sets have exactly the same members.
func (set FilterSet) Equal(other FilterSet) bool {
	return slices.Equal(set.names, other.names)
}

// String returns the members joined by commas, e.g. "label:inbox,unread".
func (set FilterSet) String() string {
	return strings.Join(set.names, ",")
}

// Key is the composite identity of a watcher or paginator. A bridge
// reuses its live native resource only when the requested Key is Equal
// to the one it holds; any difference in any field means a new native
// resource.
type Key struct {
	// User is the owning account.
	User UserID

	// Entity is the target of the query. Empty for collection queries
	// that are fully described by Filters (for example, a label list).
	Entity EntityID

	// Filters is the active filter set (label scope, unread-only, ...).
	Filters FilterSet

	// Variant selects an alternate view of the same entity, such as
	// "show all messages" for a conversation opened from a label that
	// would otherwise hide some of them.
	Variant bool
}

// Equal reports whether two keys identify the same query. All fields
// participate.
func (k Key) Equal(other Key) bool {
	return k.User == other.User &&
		k.Entity == other.Entity &&
		k.Variant == other.Variant &&
		k.Filters.Equal(other.Filters)
}

// IsZero reports whether the key has no user. A key without a user
// cannot be resolved to a session.
func (k Key) IsZero() bool {
	return k.User == ""
}

// String returns the canonical text form of the key. Equal keys have
// identical String output.
func (k Key) String() string {
	var builder strings.Builder
	builder.WriteString(string(k.User))
	builder.WriteByte('/')
	builder.WriteString(string(k.Entity))
	builder.WriteByte('/')
	builder.WriteString(k.Filters.String())
	builder.WriteByte('/')
	builder.WriteString(strconv.FormatBool(k.Variant))
	return builder.String()
}

// Fingerprint is a BLAKE3 digest of a key's canonical form.
type Fingerprint [32]byte

// String returns the first 8 bytes in hex, which is enough to tell
// keys apart in log output.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// fingerprintDomain keys the BLAKE3 hasher so that key fingerprints
// can never collide with digests computed for other purposes.
var fingerprintDomain = blake3.Sum256([]byte("mailbridge engine key fingerprint v1"))

// Fingerprint returns a keyed BLAKE3 digest of the canonical form.
// Equal keys have equal fingerprints.
func (k Key) Fingerprint() Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintDomain[:])
	if err != nil {
		panic("engine: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(k.String()))
	var digest Fingerprint
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Result is one element of an observe stream: either a snapshot
// (Value) or a failure (Err), tagged with the key that produced it.
type Result[S any] struct {
	Key   Key
	Value S
	Err   error
}

// OK reports whether the result carries a snapshot rather than an error.
func (r Result[S]) OK() bool {
	return r.Err == nil
}
