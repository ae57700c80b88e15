package core

import "fmt"

// CredentialError means no usable credentials were found.
type CredentialError struct {
	Source string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("credentials: %v", e.Err)
	}
	return fmt.Sprintf("credentials (%s): %v", e.Source, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// AuthError means the remote service rejected the credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication rejected: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError wraps a transport or service failure during Op.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return fmt.Sprintf("remote %s: %v", e.Op, e.Err) }

func (e *RemoteError) Unwrap() error { return e.Err }

// DecodeError reports a stored row that does not fit the 5-column schema.
// Row is the 1-based row number in the store, header included.
type DecodeError struct {
	Row    int
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("decode row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("decode row %d column %s: %v", e.Row, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RangeError reports a delete position outside [0, Len-1].
type RangeError struct {
	Position int
	Len      int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("position %d out of range [0, %d)", e.Position, e.Len)
}

// CheckPosition returns a *RangeError unless 0 <= position < length.
func CheckPosition(position, length int) error {
	if position < 0 || position >= length {
		return &RangeError{Position: position, Len: length}
	}
	return nil
}
