package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure; the HTTP layer maps it to a status code
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a failure with a client-safe Detail. Err, when set, is the
// underlying cause and is never shown to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and detail so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Detail == t.Detail
}

var (
	ErrUserNotFound       = &Error{Kind: KindUnauthorized, Detail: "User not found"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Detail: "Invalid username or password"}
	ErrUsernameTaken      = &Error{Kind: KindValidation, Detail: "A user with that username already exists."}

	ErrPostNotFound    = &Error{Kind: KindNotFound, Detail: "Post not found"}
	ErrSubPostNotFound = &Error{Kind: KindNotFound, Detail: "Sub-post not found"}
	ErrNotPostAuthor   = &Error{Kind: KindForbidden, Detail: "You do not have permission to perform this action."}
	ErrEmptyBulk       = &Error{Kind: KindValidation, Detail: "Expected a non-empty list of posts."}
	ErrParentMissing   = &Error{Kind: KindValidation, Detail: "post: Invalid pk - object does not exist."}
	ErrPostReassigned  = &Error{Kind: KindValidation, Detail: "post: A sub-post cannot be moved to another post."}

	ErrAlreadyLiked  = &Error{Kind: KindConflict, Detail: "You already liked this post"}
	ErrAlreadyViewed = &Error{Kind: KindConflict, Detail: "You already viewed this post"}
)

func validationError(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func internalError(detail string, err error) *Error {
	return &Error{Kind: KindInternal, Detail: detail, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}
