package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{Version: HeaderVersion, Height: 1000, Previous: []byte("prevhash"), ID: []byte("idhash")}
	raw := EncodeHeader(h)

	decoded, err := DecodeHeader(raw)
	require.NoError(t, err)
	require.Equal(t, h, decoded)

	require.Equal(t, raw, EncodeHeader(decoded))
	require.NoError(t, VerifyRoundTrip(raw))
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	_, err := DecodeHeader([]byte{0x02, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestDecodeHeaderRejectsTruncated(t *testing.T) {
	_, err := DecodeHeader([]byte{HeaderVersion, 0, 0})
	require.Error(t, err)
}

func TestEncodeDecodeObjectRoundTrip(t *testing.T) {
	type sample struct {
		A int
		B string
	}
	in := sample{A: 7, B: "hi"}
	raw, err := EncodeObject(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, DecodeObject(raw, &out))
	require.Equal(t, in, out)
}
