package approval

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicatePending
	KindAlreadyReviewed
	KindNotFound
	KindInvalidOrExpiredToken
	KindConflict
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicatePending:
		return "duplicate_pending"
	case KindAlreadyReviewed:
		return "already_reviewed"
	case KindNotFound:
		return "not_found"
	case KindInvalidOrExpiredToken:
		return "invalid_or_expired_token"
	case KindConflict:
		return "conflict"
	case KindStoreFailure:
		return "store_failure"
	}
	return "unknown"
}

// Error is returned by every engine operation. Field names the offending
// input ("username", "email", "password") when one applies.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can test against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrDuplicatePending      = &Error{Kind: KindDuplicatePending}
	ErrAlreadyReviewed       = &Error{Kind: KindAlreadyReviewed}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrStoreFailure          = &Error{Kind: KindStoreFailure}
)

// KindOf reports the Kind carried by err, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// tokenMessage is the only text a link holder ever sees for a failed token.
const tokenMessage = "this link is invalid or has expired"

func invalidToken() *Error {
	return &Error{Kind: KindInvalidOrExpiredToken, Message: tokenMessage}
}

func alreadyReviewed(id string) *Error {
	return &Error{Kind: KindAlreadyReviewed, Message: "registration " + id + " has already been reviewed"}
}

func storeFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: op + " failed", Err: err}
}

func duplicatePending(field string) *Error {
	return &Error{Kind: KindDuplicatePending, Field: field, Message: "a registration for this " + field + " is already awaiting approval"}
}

func userConflict(field string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: "an account with this " + field + " already exists"}
}
