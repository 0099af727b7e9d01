package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// frameHeaderLen is the little-endian length prefix, which counts itself.
	frameHeaderLen = 2
	// MaxFramePayload is the largest payload a frame can carry.
	MaxFramePayload = 0xFFFF - frameHeaderLen
)

// ErrFrameLength rejects empty payloads and payloads over MaxFramePayload.
var ErrFrameLength = errors.New("invalid frame length")

// ReadFrame reads one frame from r and returns its payload.
// Wire format: [2 bytes LE: total length including header][payload].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	payloadLen := totalLen - frameHeaderLen
	if payloadLen <= 0 {
		return nil, fmt.Errorf("%w: header says %d", ErrFrameLength, totalLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes payload to w as one frame. Header and payload go out in
// a single Write so concurrent writers on a shared conn cannot interleave
// them.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxFramePayload {
		return fmt.Errorf("%w: %d byte payload", ErrFrameLength, len(payload))
	}
	frame := make([]byte, frameHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(frame, uint16(len(frame)))
	copy(frame[frameHeaderLen:], payload)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
