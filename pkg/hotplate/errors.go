package hotplate

import (
	"github.com/conneroisu/hotplate/internal/errors"
)

// Error is the structured error returned by every operation.
type Error = errors.HotplateError

// Problem locates one failure in one template file.
type Problem = errors.Problem

// ExtensionError wraps an error raised by a function, filter or tester.
type ExtensionError = errors.ExtensionError

// Error codes.
const (
	CodeCompileFailed     = errors.ErrCodeCompileFailed
	CodeUndefinedTemplate = errors.ErrCodeUndefinedTemplate
	CodeTemplateNotFound  = errors.ErrCodeTemplateNotFound
	CodeMissingVariable   = errors.ErrCodeMissingVariable
	CodeExtensionFailed   = errors.ErrCodeExtensionFailed
	CodeRenderFailed      = errors.ErrCodeRenderFailed
	CodeWatchSetup        = errors.ErrCodeWatchSetup
	CodeRootNotFound      = errors.ErrCodeRootNotFound
	CodeConfigInvalid     = errors.ErrCodeConfigInvalid
	CodeFileRead          = errors.ErrCodeFileRead
)

// IsCompileError reports whether err came from compiling templates.
func IsCompileError(err error) bool { return errors.IsCompileError(err) }

// IsRenderError reports whether err came from Render.
func IsRenderError(err error) bool { return errors.IsRenderError(err) }

// IsWatchSetupError reports whether err came from Watch.
func IsWatchSetupError(err error) bool { return errors.IsWatchSetupError(err) }

// Code returns the error code of err, or "" when it has none.
func Code(err error) string { return errors.CodeOf(err) }

// Problems lists every template problem carried by a compile error.
func Problems(err error) []Problem { return errors.ProblemsOf(err) }
