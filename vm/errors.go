package vm

import (
	"fmt"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// FatalError stops the interpreter. Run returns it for conditions that a
// program cannot catch: stack overflow, a call to a procedure that failed
// to compile, malformed bytecode, or an in-language error that nothing
// caught.
type FatalError struct {
	Procedure int
	Offset    int
	Message   string
	Err       error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("procedure %d at %d: %s: %v", e.Procedure, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("procedure %d at %d: %s", e.Procedure, e.Offset, e.Message)
}

func (e *FatalError) Unwrap() error { return e.Err }

// UncaughtError is the in-language error that reached the outermost frame.
type UncaughtError struct {
	Code    Value
	Message string
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("error %s: %s", decimal.Format(e.Code), e.Message)
}

// runtimeError is an in-language error raised by an opcode or system
// call. It sets the interpreter's error flag rather than stopping it.
type runtimeError struct {
	code    int
	message string
}

func (e *runtimeError) Error() string { return e.message }

func raise(code int, format string, args ...any) *runtimeError {
	return &runtimeError{code: code, message: fmt.Sprintf(format, args...)}
}
