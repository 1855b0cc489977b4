// Package codec provides the one deliberately non-gob serialization this
// repo carries: a fixed-layout binary encoding for block headers, needed
// because §6 requires a byte-for-byte canonical round trip and gob's
// self-describing wire format is not guaranteed byte-stable across
// processes. Everything else persisted by this repo uses encoding/gob.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/trust-net/go-forkstate/statedberr"
)

// HeaderVersion is the only version tag §6 accepts.
const HeaderVersion = byte(1)

// BlockHeader is the fixed-layout structure this repo validates. Layout:
// version(1) | height(8, BE) | previous_len(2, BE) | previous | id_len(2, BE) | id
type BlockHeader struct {
	Version  byte
	Height   uint64
	Previous []byte
	ID       []byte
}

// EncodeHeader produces the canonical byte encoding.
func EncodeHeader(h BlockHeader) []byte {
	buf := make([]byte, 0, 1+8+2+len(h.Previous)+2+len(h.ID))
	buf = append(buf, h.Version)
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], h.Height)
	buf = append(buf, height[:]...)
	buf = appendLenPrefixed(buf, h.Previous)
	buf = appendLenPrefixed(buf, h.ID)
	return buf
}

func appendLenPrefixed(buf, b []byte) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf = append(buf, l[:]...)
	buf = append(buf, b...)
	return buf
}

// DecodeHeader parses raw bytes and verifies the version tag (§6: "First
// byte of block_header_bytes is a version tag; accepted only for value
// 1"). Returns DecodeException on malformed input.
func DecodeHeader(raw []byte) (BlockHeader, error) {
	if len(raw) < 1 || raw[0] != HeaderVersion {
		return BlockHeader{}, statedberr.New(statedberr.DecodeException, "unsupported or missing version byte")
	}
	r := raw[1:]
	if len(r) < 8 {
		return BlockHeader{}, statedberr.New(statedberr.DecodeException, "truncated height")
	}
	height := binary.BigEndian.Uint64(r[:8])
	r = r[8:]

	prev, r, err := readLenPrefixed(r)
	if err != nil {
		return BlockHeader{}, err
	}
	id, r, err := readLenPrefixed(r)
	if err != nil {
		return BlockHeader{}, err
	}
	if len(r) != 0 {
		return BlockHeader{}, statedberr.New(statedberr.DecodeException, "trailing bytes after header")
	}
	return BlockHeader{Version: HeaderVersion, Height: height, Previous: prev, ID: id}, nil
}

func readLenPrefixed(r []byte) (value, rest []byte, err error) {
	if len(r) < 2 {
		return nil, nil, statedberr.New(statedberr.DecodeException, "truncated length prefix")
	}
	l := int(binary.BigEndian.Uint16(r[:2]))
	r = r[2:]
	if len(r) < l {
		return nil, nil, statedberr.New(statedberr.DecodeException, "truncated field")
	}
	return r[:l], r[l:], nil
}

// VerifyRoundTrip enforces §8: "Encoding a header then decoding yields
// the same structure; encoding it again yields the same bytes."
func VerifyRoundTrip(raw []byte) error {
	h, err := DecodeHeader(raw)
	if err != nil {
		return err
	}
	if !bytes.Equal(EncodeHeader(h), raw) {
		return statedberr.New(statedberr.DecodeException, "header did not round-trip canonically")
	}
	return nil
}

// EncodeObject and DecodeObject are the gob-based helpers used for
// dispatch overrides stored in system_call_dispatch and for thunk
// arguments and results. Delta writes reach the backend as raw bytes.
func EncodeObject(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeObject(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
