package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// typeTagSize is the fixed-width MessageType prefix every frame payload
// carries ahead of its XDR-encoded body.
const typeTagSize = 2

// Encode marshals msg into a frame payload: a 2-byte MessageType tag
// followed by the XDR encoding of msg's body, the same split dittofs's
// RPC layer uses between its program/procedure dispatch and the
// per-procedure XDR body (internal/protocol/nfs/mount/handlers).
func Encode(msgType MessageType, body any) ([]byte, error) {
	var buf bytes.Buffer
	var tag [typeTagSize]byte
	binary.BigEndian.PutUint16(tag[:], uint16(msgType))
	buf.Write(tag[:])
	if body != nil {
		if _, err := xdr.Marshal(&buf, body); err != nil {
			return nil, fmt.Errorf("wire: marshal %v body: %w", msgType, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode reads a frame payload's type tag and returns it along with the
// remaining XDR-encoded body bytes, for the caller to unmarshal into the
// concrete struct its dispatch table expects.
func Decode(payload []byte) (MessageType, []byte, error) {
	if len(payload) < typeTagSize {
		return 0, nil, fmt.Errorf("wire: payload too short for type tag (%d bytes)", len(payload))
	}
	msgType := MessageType(binary.BigEndian.Uint16(payload[:typeTagSize]))
	return msgType, payload[typeTagSize:], nil
}

// DecodeBody unmarshals an XDR body (as returned by Decode) into dst, which
// must be a pointer to the Go struct matching the wire MessageType.
func DecodeBody(body []byte, dst any) error {
	if len(body) == 0 {
		return nil
	}
	_, err := xdr.Unmarshal(bytes.NewReader(body), dst)
	if err != nil {
		return fmt.Errorf("wire: unmarshal body: %w", err)
	}
	return nil
}

// EncodeBody marshals body to XDR with no type tag, the form CudaCommand
// and VulkanCommand carry in their own Args field (the tag for those
// lives one level up, on the enclosing CudaCommand/VulkanCommand message
// itself).
func EncodeBody(body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if _, err := xdr.Marshal(&buf, body); err != nil {
			return nil, fmt.Errorf("wire: marshal body: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeFrame is a convenience wrapper that encodes msg and wraps it in a
// Frame ready for WriteFrame.
func EncodeFrame(msgType MessageType, body any, streamID uint16, flags uint16) (Frame, error) {
	payload, err := Encode(msgType, body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Flags: flags, StreamID: streamID, Payload: payload}, nil
}
