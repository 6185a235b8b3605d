// Package wire implements the length-delimited frame format and tagged
// message envelope used between the client daemon and every backend server,
// regardless of which Transport carries the bytes.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeaderSize is the fixed header every frame carries ahead of its
// payload: a 4-byte length, 2 bytes of flags, and a 2-byte stream id.
const FrameHeaderSize = 4 + 2 + 2

// MaxFramePayload guards against a corrupt or hostile length field
// forcing an unbounded allocation.
const MaxFramePayload = 64 << 20 // 64 MiB

// Flag bits carried in every frame header.
const (
	FlagNone     uint16 = 0
	FlagStream   uint16 = 1 << 0 // payload is part of a streamed command-buffer submission
	FlagLastPart uint16 = 1 << 1 // final fragment of a streamed payload
)

// Frame is a single length-delimited unit on the wire:
// [u32 payload_len][u16 flags][u16 stream_id][payload].
type Frame struct {
	Flags    uint16
	StreamID uint16
	Payload  []byte
}

// WriteFrame encodes f to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxFramePayload {
		return fmt.Errorf("wire: frame payload %d exceeds max %d", len(f.Payload), MaxFramePayload)
	}
	var hdr [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(f.Payload)))
	binary.BigEndian.PutUint16(hdr[4:6], f.Flags)
	binary.BigEndian.PutUint16(hdr[6:8], f.StreamID)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(f.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(f.Payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame decodes one frame from r. r should be buffered (*bufio.Reader)
// for anything other than a single-shot read, since ReadFrame always issues
// two reads (header, then payload).
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	if length > MaxFramePayload {
		return Frame{}, fmt.Errorf("wire: frame length %d exceeds max %d", length, MaxFramePayload)
	}
	f := Frame{
		Flags:    binary.BigEndian.Uint16(hdr[4:6]),
		StreamID: binary.BigEndian.Uint16(hdr[6:8]),
	}
	if length == 0 {
		return f, nil
	}
	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return f, nil
}

// NewFrameReader wraps r in a buffered reader sized for typical command
// payloads, to avoid a syscall per frame header.
func NewFrameReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 32*1024)
}
