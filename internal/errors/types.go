// Package errors defines the structured error taxonomy used across hotplate.
//
// Every failure that crosses a package boundary is a *HotplateError carrying
// a Type (compile, render, watch, config, io), a stable Code for programmatic
// handling, and whatever location data is known: template name, file path,
// line, column and the offending context variable.
//
// Compile errors are fatal at construction and recoverable at reload. Render
// errors are always recoverable. Watch setup errors are surfaced to whoever
// asked for hot reload; failures while already watching are only logged.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeCompile ErrorType = "compile"
	ErrorTypeRender  ErrorType = "render"
	ErrorTypeWatch   ErrorType = "watch"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeIO      ErrorType = "io"
)

// Common error codes.
const (
	ErrCodeCompileFailed     = "ERR_COMPILE_FAILED"
	ErrCodeUndefinedTemplate = "ERR_UNDEFINED_TEMPLATE"
	ErrCodeTemplateNotFound  = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeMissingVariable   = "ERR_MISSING_VARIABLE"
	ErrCodeExtensionFailed   = "ERR_EXTENSION_FAILED"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeWatchSetup        = "ERR_WATCH_SETUP"
	ErrCodeRootNotFound      = "ERR_ROOT_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileRead          = "ERR_FILE_READ"
)

// HotplateError is a structured error type with context.
type HotplateError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Template    string
	Variable    string
	FilePath    string
	Line        int
	Column      int
	Problems    []Problem
	Recoverable bool
}

// Error implements the error interface.
func (e *HotplateError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	if e.Variable != "" {
		parts = append(parts, "variable:"+e.Variable)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *HotplateError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *HotplateError) Is(target error) bool {
	var t *HotplateError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *HotplateError) WithContext(key string, value interface{}) *HotplateError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *HotplateError) WithLocation(filePath string, line, column int) *HotplateError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithTemplate records the template being compiled or rendered.
func (e *HotplateError) WithTemplate(name string) *HotplateError {
	e.Template = name

	return e
}

// WithVariable records the context variable involved.
func (e *HotplateError) WithVariable(name string) *HotplateError {
	e.Variable = name

	return e
}

// NewCompileError creates a compile error. Callers decide whether it is
// fatal: at construction it is, at reload it is not.
func NewCompileError(code, message string, cause error) *HotplateError {
	return &HotplateError{
		Type:        ErrorTypeCompile,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewRenderError creates a render error.
func NewRenderError(code, message string, cause error) *HotplateError {
	return &HotplateError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewWatchSetupError creates an error for a watcher that could not attach.
func NewWatchSetupError(code, message string, cause error) *HotplateError {
	return &HotplateError{
		Type:        ErrorTypeWatch,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *HotplateError {
	return &HotplateError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *HotplateError {
	return &HotplateError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var he *HotplateError
	if errors.As(err, &he) {
		return he.Recoverable
	}

	return false
}

// IsCompileError checks if an error came from (re)compiling templates.
func IsCompileError(err error) bool {
	return isType(err, ErrorTypeCompile)
}

// IsRenderError checks if an error came from rendering.
func IsRenderError(err error) bool {
	return isType(err, ErrorTypeRender)
}

// IsWatchSetupError checks if an error came from attaching a watcher.
func IsWatchSetupError(err error) bool {
	return isType(err, ErrorTypeWatch)
}

// CodeOf returns the code of the outermost HotplateError in the chain.
func CodeOf(err error) string {
	var he *HotplateError
	if errors.As(err, &he) {
		return he.Code
	}

	return ""
}

func isType(err error, t ErrorType) bool {
	var he *HotplateError
	if errors.As(err, &he) {
		return he.Type == t
	}

	return false
}

// ExtensionError wraps a failure raised by a registered function, filter or
// tester while a template was executing.
type ExtensionError struct {
	Kind string // "function", "filter" or "tester"
	Name string
	Err  error
}

// Error implements the error interface.
func (e *ExtensionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

// Unwrap returns the error raised by the extension.
func (e *ExtensionError) Unwrap() error {
	return e.Err
}
