// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invalidation

import (
	"fmt"
	"strings"
)

// Source is one category of data that can be invalidated.
type Source uint8

const (
	Labels Source = iota
	Conversations
	Messages
	Drafts
	Attachments
	SendStatus

	sourceCount
)

var sourceNames = [sourceCount]string{
	Labels:        "labels",
	Conversations: "conversations",
	Messages:      "messages",
	Drafts:        "drafts",
	Attachments:   "attachments",
	SendStatus:    "send_status",
}

func (s Source) String() string {
	if s < sourceCount {
		return sourceNames[s]
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// Set is an immutable set of sources. The zero value is empty.
type Set struct {
	bits uint16
}

// NewSet returns the set containing sources. Values outside the known
// range are ignored.
func NewSet(sources ...Source) Set {
	var set Set
	for _, source := range sources {
		if source < sourceCount {
			set.bits |= 1 << source
		}
	}
	return set
}

// All is the set of every known source.
func All() Set {
	return Set{bits: 1<<sourceCount - 1}
}

func (s Set) Contains(source Source) bool {
	return source < sourceCount && s.bits&(1<<source) != 0
}

func (s Set) Union(other Set) Set {
	return Set{bits: s.bits | other.bits}
}

func (s Set) Intersect(other Set) Set {
	return Set{bits: s.bits & other.bits}
}

func (s Set) IsEmpty() bool {
	return s.bits == 0
}

// Sources returns the members in declaration order.
func (s Set) Sources() []Source {
	var sources []Source
	for source := range sourceCount {
		if s.Contains(source) {
			sources = append(sources, source)
		}
	}
	return sources
}

// String returns the member names in braces, e.g. "{labels,messages}".
func (s Set) String() string {
	var builder strings.Builder
	builder.WriteByte('{')
	for index, source := range s.Sources() {
		if index > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(source.String())
	}
	builder.WriteByte('}')
	return builder.String()
}
