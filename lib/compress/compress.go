// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm is the persisted compression tag.
type Algorithm uint8

const (
	// None stores the body as is.
	None Algorithm = 0

	// LZ4 is block LZ4: cheap to encode, modest ratio.
	LZ4 Algorithm = 1

	// Zstd is zstd at the default level: the better choice for text.
	Zstd Algorithm = 2

	// Auto picks per body: Zstd for text content, LZ4 otherwise. Never
	// persisted.
	Auto Algorithm = 255
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses "none", "lz4", "zstd", or "auto".
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, algorithm := range []Algorithm{None, LZ4, Zstd, Auto} {
		if algorithm.String() == name {
			return algorithm, nil
		}
	}
	return 0, fmt.Errorf("compress: unknown algorithm %q", name)
}

// MarshalText implements encoding.TextMarshaler so configuration files
// can name algorithms.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ForContentType resolves Auto for a body of the given MIME type.
func ForContentType(contentType string) Algorithm {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if base, _, found := strings.Cut(contentType, ";"); found {
		contentType = strings.TrimSpace(base)
	}
	switch {
	case strings.HasPrefix(contentType, "text/"),
		contentType == "message/rfc822",
		contentType == "application/json",
		contentType == "application/xml":
		return Zstd
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "video/"),
		strings.HasPrefix(contentType, "audio/"),
		contentType == "application/zip",
		contentType == "application/gzip":
		return None
	default:
		return LZ4
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible means the encoded form is not smaller than the
// input; Pack falls back to None.
var errIncompressible = errors.New("incompressible")

// ErrCorrupt means a packed blob could not be decoded.
var ErrCorrupt = errors.New("compress: corrupt packed body")

// Pack compresses body with algorithm (resolving Auto through
// contentType) and returns the framed blob:
//
//	tag (1 byte) | uncompressed length (uvarint) | payload
func Pack(body []byte, algorithm Algorithm, contentType string) ([]byte, error) {
	if algorithm == Auto {
		algorithm = ForContentType(contentType)
	}
	payload, err := encode(body, algorithm)
	if errors.Is(err, errIncompressible) {
		algorithm, payload = None, body
	} else if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	blob = append(blob, byte(algorithm))
	blob = binary.AppendUvarint(blob, uint64(len(body)))
	return append(blob, payload...), nil
}

// Unpack reverses Pack.
func Unpack(blob []byte) ([]byte, error) {
	algorithm, size, payload, err := parseFrame(blob)
	if err != nil {
		return nil, err
	}
	switch algorithm {
	case None:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: raw length %d, header says %d", ErrCorrupt, len(payload), size)
		}
		return append([]byte(nil), payload...), nil
	case LZ4:
		body := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, body)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if read != size {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, header says %d", ErrCorrupt, read, size)
		}
		return body, nil
	case Zstd:
		body, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(body) != size {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, header says %d", ErrCorrupt, len(body), size)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrCorrupt, uint8(algorithm))
	}
}

// Inspect returns the algorithm and uncompressed size recorded in a
// packed blob without decoding the payload.
func Inspect(blob []byte) (Algorithm, int, error) {
	algorithm, size, _, err := parseFrame(blob)
	return algorithm, size, err
}

func parseFrame(blob []byte) (Algorithm, int, []byte, error) {
	if len(blob) < 2 {
		return 0, 0, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(blob))
	}
	size, width := binary.Uvarint(blob[1:])
	if width <= 0 || size > uint64(maxBodySize) {
		return 0, 0, nil, fmt.Errorf("%w: bad length header", ErrCorrupt)
	}
	return Algorithm(blob[0]), int(size), blob[1+width:], nil
}

// maxBodySize bounds the allocation Unpack makes from an untrusted
// header.
const maxBodySize = 256 << 20

func encode(body []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case None:
		return body, nil
	case LZ4:
		if len(body) == 0 {
			return nil, errIncompressible
		}
		destination := make([]byte, lz4.CompressBlockBound(len(body)))
		written, err := lz4.CompressBlock(body, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if written == 0 || written >= len(body) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case Zstd:
		compressed := zstdEncoder.EncodeAll(body, nil)
		if len(compressed) >= len(body) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("compress: unsupported algorithm %s", algorithm)
	}
}
