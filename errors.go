package main

import (
	"errors"
	"net"
)

// Handshake rejections surfaced by the client as sentinel errors
var (
	ErrUsernameTaken = errors.New("username taken")
	ErrServerFull    = errors.New("server full")
	ErrNotConnected  = errors.New("not connected")
	ErrSessionClosed = errors.New("session closed")
)

// ProtocolError is a violation of the wire protocol: bad length prefix,
// oversized frame, missing or unknown packet type.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Reason }

// DecodeError is a well-framed packet whose body could not be decoded:
// a required field absent or of the wrong shape.
type DecodeError struct {
	Type   string // packet type, when the tag itself was readable
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return "decode: " + e.Reason
	}
	return "decode " + e.Type + ": " + e.Reason
}

// ValidationError is syntactically valid input that breaks a game rule,
// such as a display name outside the allowed length.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid: " + e.Reason }

// IsTimeout reports whether err is a network deadline expiry
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
