package worker

import (
	"errors"
	"fmt"
)

var (
	ErrReservedKind      = errors.New("message type is reserved")
	ErrUnsupportedOption = errors.New("unsupported option value")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrRemoteFailed      = errors.New("remote worker failed")
)

// HandlerError reports a context-side handler that threw.
type HandlerError struct {
	Kind    string
	Message string
}

func (e *HandlerError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("worker: uncaught exception: %s", e.Message)
	}
	return fmt.Sprintf("worker: handler %q failed: %s", e.Kind, e.Message)
}

// OptionError reports an option that cannot be shipped to a context.
type OptionError struct {
	Name string
	Err  error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q: %v", e.Name, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }
