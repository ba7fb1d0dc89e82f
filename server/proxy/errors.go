package proxy

import "errors"

var (
	// ErrHeadOutOfBounds is returned when a value is written to or read from a
	// message whose action has no slots left.
	ErrHeadOutOfBounds = errors.New("message head out of bounds")
	// ErrContentMismatch is returned when the type of the value written or read
	// does not match the next slot of the action.
	ErrContentMismatch = errors.New("message content type mismatch")
	// ErrIncomplete is returned when a message is encoded before every slot of
	// its action was written.
	ErrIncomplete = errors.New("message incomplete")
	// ErrOversized is returned when an encoded message exceeds MaxMessageSize.
	ErrOversized = errors.New("message exceeds maximum size")
	// ErrUnknownAction is returned when an incoming message names an action the
	// listener does not know.
	ErrUnknownAction = errors.New("unknown action")
	// ErrTruncated is returned when an incoming message ends before a value
	// could be read completely.
	ErrTruncated = errors.New("message truncated")
	// ErrMalformed is returned when an incoming value cannot be decoded.
	ErrMalformed = errors.New("message malformed")
	// ErrStringTooLong is returned when a string encodes to more than 65535
	// bytes.
	ErrStringTooLong = errors.New("encoded string too long")
	// ErrNilValue is returned when a nil value is written to a slot that
	// requires one.
	ErrNilValue = errors.New("nil value")
)
