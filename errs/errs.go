// Package errs implements the structured, component-tagged error values used
// throughout lattice. Every subsystem declares its own table of Codes rather
// than returning bare errors, so callers can switch on (Component, Number)
// without string matching.
package errs

import "fmt"

// Code identifies an error's owning component and a stable numeric code
// within that component, mirroring the WriteCompilationError / ExpressionCompileError
// style numbering used across the codebase.
type Code struct {
	Component string
	Number    int
	Name      string
}

func (c Code) String() string {
	return fmt.Sprintf("%s-%02d:%s", c.Component, c.Number, c.Name)
}

// Error is the concrete error value carried across package boundaries.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error target carrying the same Code, so
// errors.Is(err, Sentinel(SomeCode)) tests an error chain for a Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel builds a bare *Error carrying only a Code, suitable for
// errors.Is(err, errs.Sentinel(SomeCode)) comparisons in tests.
func Sentinel(code Code) *Error { return &Error{Code: code} }
