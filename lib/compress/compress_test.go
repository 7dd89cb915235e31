// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func textBody() []byte {
	return []byte(strings.Repeat("Hi team, the quarterly numbers are attached. ", 200))
}

func TestPackRoundTrip(t *testing.T) {
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		body        []byte
		algorithm   Algorithm
		contentType string
		wantTag     Algorithm
	}{
		{"zstd text", textBody(), Zstd, "", Zstd},
		{"lz4 text", textBody(), LZ4, "", LZ4},
		{"none", textBody(), None, "", None},
		{"auto text", textBody(), Auto, "text/plain; charset=utf-8", Zstd},
		{"auto binary", textBody(), Auto, "application/octet-stream", LZ4},
		{"auto image", textBody(), Auto, "image/png", None},
		{"random falls back", random, Zstd, "", None},
		{"lz4 random falls back", random, LZ4, "", None},
		{"empty", nil, LZ4, "", None},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			blob, err := Pack(test.body, test.algorithm, test.contentType)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			tag, size, err := Inspect(blob)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if tag != test.wantTag {
				t.Fatalf("stored tag = %s, want %s", tag, test.wantTag)
			}
			if size != len(test.body) {
				t.Fatalf("stored size = %d, want %d", size, len(test.body))
			}
			if tag != None && len(blob) >= len(test.body) {
				t.Fatalf("compressed blob (%d bytes) not smaller than body (%d)", len(blob), len(test.body))
			}
			body, err := Unpack(blob)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if !bytes.Equal(body, test.body) {
				t.Fatal("round trip changed the body")
			}
		})
	}
}

func TestUnpackRejectsCorruptBlobs(t *testing.T) {
	valid, err := Pack(textBody(), Zstd, "")
	if err != nil {
		t.Fatal(err)
	}
	truncated := valid[:len(valid)/2]
	unknownTag := append([]byte{9}, valid[1:]...)

	for name, blob := range map[string][]byte{
		"empty":       nil,
		"truncated":   truncated,
		"unknown tag": unknownTag,
		"raw length":  {byte(None), 10, 'a'},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Unpack(blob); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Unpack error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestAlgorithmText(t *testing.T) {
	for _, algorithm := range []Algorithm{None, LZ4, Zstd, Auto} {
		text, err := algorithm.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var parsed Algorithm
		if err := parsed.UnmarshalText(text); err != nil || parsed != algorithm {
			t.Fatalf("UnmarshalText(%q) = %s, %v", text, parsed, err)
		}
	}
	var parsed Algorithm
	if err := parsed.UnmarshalText([]byte("brotli")); err == nil {
		t.Fatal("unknown algorithm accepted")
	}
}
