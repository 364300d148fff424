package backend

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a failed backend call.
type ErrorKind string

const (
	// KindTransport is a network-level failure: the request never got a response.
	KindTransport ErrorKind = "transport"
	// KindStatus is a response whose status code is not 2xx.
	KindStatus ErrorKind = "status"
	// KindApplication is a 2xx response whose body carries an error field.
	KindApplication ErrorKind = "application"
	// KindDecode is a 2xx response whose body could not be read or decoded.
	KindDecode ErrorKind = "decode"
)

// ClientError is returned by every Client method on failure.
type ClientError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Message  string
	Cause    error
}

func (e *ClientError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a ClientError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}
