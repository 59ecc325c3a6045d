package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a HotplateError if
// the input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *HotplateError {
	if err == nil {
		return nil
	}

	// If it's already a HotplateError, keep its location data
	var he *HotplateError
	if errors.As(err, &he) {
		return &HotplateError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       he,
			Context:     he.Context,
			Template:    he.Template,
			Variable:    he.Variable,
			FilePath:    he.FilePath,
			Line:        he.Line,
			Column:      he.Column,
			Problems:    he.Problems,
			Recoverable: he.Recoverable,
		}
	}

	return &HotplateError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeCompile || errType == ErrorTypeRender,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *HotplateError {
	he := Wrap(err, ErrorTypeIO, code, message)
	if he != nil {
		he.Recoverable = false
	}
	return he
}
