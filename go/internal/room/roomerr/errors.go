package roomerr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies room errors by how they should be surfaced.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConnection means the transport or backend was unreachable.
	KindConnection
	// KindValidation means the action was rejected locally and never sent.
	KindValidation
	// KindServerRejection means the server answered with a negative acknowledgment.
	KindServerRejection
	// KindStaleRoom means a result arrived after its room was left.
	KindStaleRoom
	// KindProtocol means the server answered with a payload the client could
	// not decode.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	case KindServerRejection:
		return "server_rejection"
	case KindStaleRoom:
		return "stale_room"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the error type returned by room operations.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Local validation errors
var (
	ErrBidTooLow     = &Error{Kind: KindValidation, Msg: "bid must be higher than the current price"}
	ErrInvalidAmount = &Error{Kind: KindValidation, Msg: "amount must be positive"}
	ErrNotJoined     = &Error{Kind: KindValidation, Msg: "no auction room joined"}
	ErrNotLive       = &Error{Kind: KindValidation, Msg: "auction is not live"}
)

// Outcome errors
var (
	ErrOutbid              = &Error{Kind: KindServerRejection, Msg: "bid superseded by a higher accepted bid"}
	ErrConfirmationTimeout = &Error{Kind: KindConnection, Msg: "no confirmation received"}
	ErrStaleRoom           = &Error{Kind: KindStaleRoom, Msg: "room was left"}
)

// Rejected wraps a server-side negative acknowledgment.
func Rejected(op, reason string, err error) error {
	return &Error{Kind: KindServerRejection, Op: op, Msg: reason, Err: err}
}

// Connection wraps a transport or network failure.
func Connection(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// Wrap annotates a sentinel with the operation that produced it, keeping errors.Is working.
func Wrap(op string, sentinel *Error) error {
	return fmt.Errorf("%s: %w", op, sentinel)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsServerRejection(err error) bool { return KindOf(err) == KindServerRejection }

func IsStale(err error) bool { return KindOf(err) == KindStaleRoom }

// Rejection is implemented by API errors that carry a server-provided reason.
type Rejection interface {
	error
	RejectionReason() string
}

// Malformed is implemented by errors for responses that arrived but could not
// be decoded.
type Malformed interface {
	error
	MalformedResponse() bool
}

// Protocol wraps a failure to decode a server response.
func Protocol(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// Classify turns a collaborator error into a room error. API rejections become
// KindServerRejection and undecodable responses KindProtocol; everything else
// is treated as a connectivity failure.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var rej Rejection
	if errors.As(err, &rej) {
		return Rejected(op, rej.RejectionReason(), err)
	}
	var bad Malformed
	if errors.As(err, &bad) && bad.MalformedResponse() {
		return Protocol(op, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return Protocol(op, err)
	}
	return Connection(op, err)
}
