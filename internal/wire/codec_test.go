package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	want := Ping{Nonce: 0xdeadbeef}

	payload, err := Encode(MsgPing, &want)
	require.NoError(t, err)

	msgType, body, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, msgType)

	var got Ping
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, want, got)
}

func TestEncode_NilBody(t *testing.T) {
	payload, err := Encode(MsgQueryGpus, nil)
	require.NoError(t, err)

	msgType, body, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, MsgQueryGpus, msgType)
	assert.Empty(t, body)
}

func TestDecode_PayloadTooShortForTag(t *testing.T) {
	_, _, err := Decode([]byte{0x01})
	assert.Error(t, err)
}

func TestEncodeFrame_WrapsPayload(t *testing.T) {
	f, err := EncodeFrame(MsgPing, &Ping{Nonce: 42}, 3, FlagNone)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), f.StreamID)
	assert.NotEmpty(t, f.Payload)

	msgType, body, err := Decode(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, msgType)

	var got Ping
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, uint64(42), got.Nonce)
}

func TestEncodeBody_RoundTripsWithoutTag(t *testing.T) {
	body, err := EncodeBody(&GpuList{Gpus: []GpuInfo{{ServerID: 1, LocalOrdinal: 0}}})
	require.NoError(t, err)

	var got GpuList
	require.NoError(t, DecodeBody(body, &got))
	require.Len(t, got.Gpus, 1)
	assert.Equal(t, uint16(1), got.Gpus[0].ServerID)
}
