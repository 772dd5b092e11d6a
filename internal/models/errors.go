package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindUnsupportedContentType    ErrorKind = "UnsupportedContentType"
	KindDownloadFailure           ErrorKind = "DownloadFailure"
	KindExtractionFailure         ErrorKind = "ExtractionFailure"
	KindStructuringServiceFailure ErrorKind = "StructuringServiceFailure"
	KindMalformedModelOutput      ErrorKind = "MalformedModelOutput"
	KindPersistenceFailure        ErrorKind = "PersistenceFailure"
)

// ProcessingError is a classified failure of one pipeline phase.
type ProcessingError struct {
	Kind ErrorKind
	Err  error
	// Raw holds the unparsed model response for MalformedModelOutput.
	Raw string
}

func (e *ProcessingError) Error() string {
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError wraps err with kind.
func NewProcessingError(kind ErrorKind, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Err: err}
}

// Errorf is a shorthand for NewProcessingError(kind, fmt.Errorf(format, args...)).
func Errorf(kind ErrorKind, format string, args ...any) *ProcessingError {
	return &ProcessingError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first ProcessingError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
