// Package errors defines the typed error used by folio components.
//
// Most failures are recovered locally (a missing post becomes a redirect, a
// bad date becomes an empty string). SiteError is for the ones that travel:
// generator filesystem failures, configuration problems and template
// resolution errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
)

// Kind classifies a SiteError.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindIO         Kind = "io"
	KindConfig     Kind = "config"
	KindTemplate   Kind = "template"
	KindValidation Kind = "validation"
)

// Error codes carried alongside the kind.
const (
	CodeMissingFile    = "ERR_MISSING_FILE"
	CodeReadFailed     = "ERR_READ_FAILED"
	CodeWriteFailed    = "ERR_WRITE_FAILED"
	CodeInvalidConfig  = "ERR_INVALID_CONFIG"
	CodeInvalidPath    = "ERR_INVALID_PATH"
	CodePartialDepth   = "ERR_PARTIAL_DEPTH"
	CodePartialMissing = "ERR_PARTIAL_MISSING"
)

// SiteError is the structured error returned by folio packages.
type SiteError struct {
	Kind    Kind
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface
func (e *SiteError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SiteError of the same kind and code.
// An empty code in target matches any code.
func (e *SiteError) Is(target error) bool {
	t, ok := target.(*SiteError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// WithPath returns a copy of the error bound to path.
func (e *SiteError) WithPath(path string) *SiteError {
	c := *e
	c.Path = path
	return &c
}

// New creates a SiteError.
func New(kind Kind, code, message string) *SiteError {
	return &SiteError{Kind: kind, Code: code, Message: message}
}

// Wrap creates a SiteError with a cause.
func Wrap(kind Kind, code, message string, cause error) *SiteError {
	return &SiteError{Kind: kind, Code: code, Message: message, Cause: cause}
}

// NewNotFound reports a missing file or post.
func NewNotFound(path string) *SiteError {
	return &SiteError{Kind: KindNotFound, Code: CodeMissingFile, Message: "not found", Path: path}
}

// NewIO wraps a filesystem failure. A cause matching fs.ErrNotExist produces
// a not_found error instead.
func NewIO(code, path string, cause error) *SiteError {
	if stderrors.Is(cause, fs.ErrNotExist) {
		return &SiteError{Kind: KindNotFound, Code: CodeMissingFile, Message: "not found", Path: path, Cause: cause}
	}
	return &SiteError{Kind: KindIO, Code: code, Message: "filesystem operation failed", Path: path, Cause: cause}
}

// NewConfig reports an invalid configuration value.
func NewConfig(message string, cause error) *SiteError {
	return &SiteError{Kind: KindConfig, Code: CodeInvalidConfig, Message: message, Cause: cause}
}

// NewTemplate reports a template resolution failure.
func NewTemplate(code, message string) *SiteError {
	return &SiteError{Kind: KindTemplate, Code: code, Message: message}
}

// NewValidation reports rejected input.
func NewValidation(code, message string) *SiteError {
	return &SiteError{Kind: KindValidation, Code: code, Message: message}
}

// KindOf returns the kind of the first SiteError in err's chain, or "".
func KindOf(err error) Kind {
	var se *SiteError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not_found SiteError or fs.ErrNotExist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound || stderrors.Is(err, fs.ErrNotExist)
}

// IsValidation reports whether err is a validation SiteError.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsConfig reports whether err is a config SiteError.
func IsConfig(err error) bool {
	return KindOf(err) == KindConfig
}
