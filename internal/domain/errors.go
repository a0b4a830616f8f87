package domain

import "fmt"

// ErrorKind categorises remote ingestion failures.
type ErrorKind string

const (
	ErrorNetwork          ErrorKind = "network"
	ErrorRateLimited      ErrorKind = "rate_limited"
	ErrorConnectionClosed ErrorKind = "connection_closed"
	ErrorDecode           ErrorKind = "decode"
	ErrorUnknown          ErrorKind = "unknown"
)

// ParseErrorKind maps a wire value onto a known kind.
func ParseErrorKind(value string) (ErrorKind, bool) {
	switch k := ErrorKind(value); k {
	case ErrorNetwork, ErrorRateLimited, ErrorConnectionClosed, ErrorDecode, ErrorUnknown:
		return k, true
	}
	return ErrorUnknown, false
}

// RemoteError is returned by adapters talking to the hosted backend.
type RemoteError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

// Error prefixes the message with the failure kind.
func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the underlying transport or decode error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}
