package chain

import "fmt"

// ErrorKind classifies a chain error the way a caller needs to act on it:
// drop the peer, discard the block, or treat the node state as unrecoverable.
type ErrorKind string

const (
	KindUnknownParent   ErrorKind = "UNKNOWN_PARENT"
	KindInvalidBlock    ErrorKind = "INVALID_BLOCK"
	KindInvalidProtocol ErrorKind = "INVALID_PROTOCOL"
	KindTransportError  ErrorKind = "TRANSPORT_ERROR"
	KindOverBalance     ErrorKind = "OVER_BALANCE"
	KindOverLimit       ErrorKind = "OVER_LIMIT"
	KindFatal           ErrorKind = "FATAL"
)

// Error is the typed error chain, block and p2p operations return on
// failure: a stable Kind a caller can switch on, plus a human message.
// Errors from the trie package and the backing store are passed through
// unwrapped.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind ErrorKind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is a *Error,
// and ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if asError(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
