package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies terminal pipeline failures.
type Kind string

const (
	KindDocumentParse     Kind = "document_parse_error"
	KindImageGeneration   Kind = "image_generation_error"
	KindImageFetch        Kind = "image_fetch_error"
	KindImageUpload       Kind = "image_upload_error"
	KindImageVerification Kind = "image_verification_error"
	KindScriptTooLong     Kind = "script_too_long_error"
	KindAudioUpload       Kind = "audio_upload_error"
	KindAudioURL          Kind = "audio_url_error"
	KindPersistence       Kind = "persistence_error"
)

// Error is a stage failure carrying its classification. Every Error is
// terminal for the run; nothing is retried above the upload policy.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain; empty when the
// error is not a pipeline stage failure.
func KindOf(err error) Kind {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
