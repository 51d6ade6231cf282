package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKind      = errors.New("message type is required")
	ErrMissingPayload = errors.New("message has no payload")
)

// DecodeError reports a frame or payload that could not be decoded. It
// always indicates a protocol or serialization bug on the sending side.
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %q payload: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CallRequest is the payload of a __call frame.
type CallRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// CallResult is the payload of a __return frame.
type CallResult struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandlerFailure is the payload of an __error frame.
type HandlerFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
