package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/labelscan/internal/admission"
)

// Kind classifies a fatal request failure.
type Kind string

const (
	KindTooLarge        Kind = "too_large"
	KindUnsupportedType Kind = "unsupported_type"
	KindDecode          Kind = "decode_failed"
	KindRecognition     Kind = "recognition_failed"
	KindCanceled        Kind = "canceled"
)

// Error is a fatal failure of one request. Stage is the stage that failed.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

func admissionKind(err error) Kind {
	if errors.Is(err, admission.ErrTooLarge) {
		return KindTooLarge
	}
	return KindUnsupportedType
}

