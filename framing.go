package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadFrame reads one length-prefixed payload from r. The length prefix is
// a uint32 big-endian byte count. A declared length above max fails before
// any payload allocation. A peer close at any point, including mid-frame,
// surfaces as io.EOF; deadline expiries pass through untouched so callers
// can tell a silent peer from a gone one.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [LengthHeader]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if int64(n) > int64(max) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("frame of %d bytes exceeds limit %d", n, max)}
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload prefixed with its length as one buffer
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, LengthHeader+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[LengthHeader:], payload)
	_, err := w.Write(buf)
	return err
}
