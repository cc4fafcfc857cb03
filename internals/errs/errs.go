// file: internals/errs/errs.go
package errs

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies domain failures so handlers can map them to HTTP codes
// and decide which message reaches the user.
type Kind string

const (
	KindConflict          Kind = "conflict"
	KindQuotaExhausted    Kind = "quota_exhausted"
	KindInvalidSchedule   Kind = "invalid_schedule"
	KindNotFound          Kind = "not_found"
	KindStateConflict     Kind = "state_conflict"
	KindTransientUpstream Kind = "transient_upstream"
)

// DomainError carries a user-facing message alongside the classification.
// Conflict and quota errors are user-correctable; everything else is
// surfaced as a generic failure with internal logging only.
type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

func New(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// Conflict reports an overlapping booking together with the conflicting window.
func Conflict(message string) *DomainError { return New(KindConflict, message) }

func QuotaExhausted(message string) *DomainError { return New(KindQuotaExhausted, message) }

func InvalidSchedule(message string) *DomainError { return New(KindInvalidSchedule, message) }

func NotFound(message string) *DomainError { return New(KindNotFound, message) }

func StateConflict(message string) *DomainError { return New(KindStateConflict, message) }

func TransientUpstream(message string, err error) *DomainError {
	return Wrap(KindTransientUpstream, message, err)
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// HTTPStatus maps a domain error kind to the response status.
func HTTPStatus(err error) int {
	var de *DomainError
	if !errors.As(err, &de) {
		return fiber.StatusInternalServerError
	}
	switch de.Kind {
	case KindConflict, KindStateConflict:
		return fiber.StatusConflict
	case KindQuotaExhausted:
		return fiber.StatusUnprocessableEntity
	case KindInvalidSchedule:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindTransientUpstream:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// UserMessage returns the message safe to show the caller. Conflict and
// quota errors keep their localized domain message; the rest collapse to
// a generic retry hint.
func UserMessage(err error) string {
	var de *DomainError
	if !errors.As(err, &de) {
		return "حدث خطأ، يرجى المحاولة مرة أخرى"
	}
	switch de.Kind {
	case KindConflict, KindQuotaExhausted, KindInvalidSchedule, KindNotFound, KindStateConflict:
		return de.Message
	}
	return "حدث خطأ، يرجى المحاولة مرة أخرى"
}
