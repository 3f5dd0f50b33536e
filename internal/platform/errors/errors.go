package errors

import (
	stderrors "errors"

	"github.com/louisbranch/tradebook/internal/platform/errors/i18n"
)

// Error is a coded failure. Message is for logs; Metadata fills the
// localized text returned by UserMessage.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func build(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// New returns an error with no metadata.
func New(code Code, message string) *Error {
	return build(code, message, nil, nil)
}

// WithMetadata returns an error whose user message is filled from metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return build(code, message, metadata, nil)
}

// Wrap returns an error with cause in its chain.
func Wrap(code Code, message string, cause error) *Error {
	return build(code, message, nil, cause)
}

// WrapWithMetadata combines WithMetadata and Wrap.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return build(code, message, metadata, cause)
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so callers can test
// errors.Is(err, apperrors.New(CodeNotFound, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

// UserMessage renders the text shown to end users in locale.
func (e *Error) UserMessage(locale string) string {
	if e == nil {
		return ""
	}
	return i18n.For(locale).Render(string(e.Code), e.Metadata)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if !stderrors.As(err, &coded) {
		return nil, false
	}
	return coded, true
}

// CodeOf is the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	coded, ok := As(err)
	if !ok {
		return CodeUnknown
	}
	return coded.Code
}
