package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error the way callers of the engine see it
type Code int

const (
	CodeNoError Code = iota
	// CodeInternal marks a broken internal invariant (unexpected forest shape, lost toplevel interface)
	CodeInternal
	// CodeOther covers backend load/save failures and failed activation
	CodeOther
	// CodeNoMem is kept for completeness of the taxonomy
	CodeNoMem
	// CodeXMLParser means the descriptor is not well-formed XML
	CodeXMLParser
	// CodeXMLInvalid means the descriptor violates the descriptor rules
	CodeXMLInvalid
	// CodeNoEnt means the interface does not exist
	CodeNoEnt
	// CodeFile marks filesystem level problems
	CodeFile
	// CodeExec marks a failed external command
	CodeExec
	// CodeNetlink marks a failed live probe
	CodeNetlink
	// CodeInvalidOp means the operation is not valid in the current state
	CodeInvalidOp
)

var codeNames = map[Code]string{
	CodeNoError:    "NOERROR",
	CodeInternal:   "EINTERNAL",
	CodeOther:      "EOTHER",
	CodeNoMem:      "ENOMEM",
	CodeXMLParser:  "EXMLPARSER",
	CodeXMLInvalid: "EXMLINVALID",
	CodeNoEnt:      "ENOENT",
	CodeFile:       "EFILE",
	CodeExec:       "EEXEC",
	CodeNetlink:    "ENETLINK",
	CodeInvalidOp:  "EINVALIDOP",
}

// String returns the symbolic name of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// DomainError is the error type returned by every engine operation
type DomainError struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is compares errors by code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Constructors

// NewInternalError reports a broken internal invariant
func NewInternalError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeInternal, Message: message, Cause: cause}
}

// NewOtherError reports backend and activation failures
func NewOtherError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeOther, Message: message, Cause: cause}
}

// NewXMLParserError reports a descriptor that could not be parsed
func NewXMLParserError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeXMLParser, Message: message, Cause: cause}
}

// NewXMLInvalidError reports a descriptor rule violation at a given line
func NewXMLInvalidError(message string, line int, detail string) *DomainError {
	return &DomainError{
		Code:    CodeXMLInvalid,
		Message: message,
		Details: fmt.Sprintf("line %d: %s", line, detail),
	}
}

// NewNotFoundError reports a missing interface
func NewNotFoundError(message string) *DomainError {
	return &DomainError{Code: CodeNoEnt, Message: message}
}

// NewFileError reports a filesystem problem
func NewFileError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeFile, Message: message, Cause: cause}
}

// NewExecError reports a failed external command together with its output
func NewExecError(message string, output string, cause error) *DomainError {
	return &DomainError{Code: CodeExec, Message: message, Details: output, Cause: cause}
}

// NewNetlinkError reports a failed live probe
func NewNetlinkError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeNetlink, Message: message, Cause: cause}
}

// NewInvalidOpError reports an operation that is not valid right now
func NewInvalidOpError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeInvalidOp, Message: message, Cause: cause}
}

// Helpers

// CodeOf extracts the code of err; nil maps to CodeNoError and foreign errors to CodeOther
func CodeOf(err error) Code {
	if err == nil {
		return CodeNoError
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeOther
}

// HasCode reports whether err carries code
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFoundError reports whether err means a missing interface
func IsNotFoundError(err error) bool {
	return HasCode(err, CodeNoEnt)
}

// IsExecError reports whether err comes from a failed external command
func IsExecError(err error) bool {
	return HasCode(err, CodeExec)
}
