package bootstrap

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

var (
	ErrTerminated  = errors.New("worker terminated")
	ErrBootTimeout = errors.New("worker boot timed out")
	ErrNoScripts   = errors.New("no script loader configured")
	ErrAlreadyRan  = errors.New("context already ran")
)

// ScriptError reports JavaScript that failed while the context was booting:
// the blob itself, an option script or the worker main.
type ScriptError struct {
	Phase string
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, message(e.Err))
}

func (e *ScriptError) Unwrap() error { return e.Err }

// interrupted extracts the cause of a runtime interrupt.
func interrupted(err error) (error, bool) {
	var ie *goja.InterruptedError
	if !errors.As(err, &ie) {
		return nil, false
	}
	if cause, ok := ie.Value().(error); ok {
		return cause, true
	}
	return fmt.Errorf("interrupted: %v", ie.Value()), true
}

// message renders a script error without the stack trace.
func message(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value().String()
	}
	return err.Error()
}
