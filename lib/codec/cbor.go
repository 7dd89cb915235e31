// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	// engine.UserID, label ids, and time values marshal as text.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encOptions.Time = cbor.TimeRFC3339Nano

	var err error
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
		// Records come from our own database; anything over these
		// bounds means corruption, not data.
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 12,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return data, nil
}

// maxDiagnostic bounds the record rendering attached to decode errors.
const maxDiagnostic = 256

// Unmarshal decodes data into v. Unknown fields are ignored so older
// binaries can read records written by newer ones. When data is
// well-formed CBOR of the wrong shape, the error carries its
// diagnostic notation.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		if diagnostic, diagErr := Diagnose(data); diagErr == nil && len(diagnostic) <= maxDiagnostic {
			return fmt.Errorf("codec: unmarshal %T from %s: %w", v, diagnostic, err)
		}
		return fmt.Errorf("codec: unmarshal %T: %w", v, err)
	}
	return nil
}

// Same reports whether encoded is the deterministic encoding of v.
func Same(encoded []byte, v any) (bool, error) {
	data, err := Marshal(v)
	if err != nil {
		return false, err
	}
	return bytes.Equal(encoded, data), nil
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8), for
// debugging output.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
