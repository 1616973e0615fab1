package service

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindForbidden
	KindDependencyUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindDependencyUnavailable:
		return "dependency_unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the status the HTTP layer responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is what every service method returns on failure. Message is safe to show callers;
// Err keeps the cause for logs.
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

// Messages returned to callers
const (
	MsgInvalidInput          = "Invalid input data or IDs"
	MsgPostNotFound          = "Post does not exist"
	MsgCommentNotFound       = "Comment not found"
	MsgParentNotFound        = "Parent comment not found on this post"
	MsgNotCommentOwner       = "You can only modify your own comments"
	MsgUserNotFound          = "User not found"
	MsgValidatePostFailed    = "Failed to validate post"
	MsgFetchUserFailed       = "Failed to fetch user identity"
	MsgCreateCommentFailed   = "Failed to create comment"
	MsgEditCommentFailed     = "Failed to edit comment"
	MsgDeleteCommentFailed   = "Failed to delete comment"
	MsgToggleLikeFailed      = "Failed to toggle like status"
	MsgGetCommentsFailed     = "Failed to get post comments"
	MsgGetRepliesFailed      = "Failed to get comment replies"
	MsgUpdateLikeFailed      = "Failed to update reaction"
	MsgGetLikeStatusFailed   = "Failed to get reaction status"
	MsgGetPostLikesFailed    = "Failed to get post reactions"
	MsgGetLikeCountFailed    = "Failed to get reaction count"
	MsgReconcileFailed       = "Failed to reconcile counters"
	MsgGetInteractionsFailed = "Failed to get post interaction counts"
)

func invalidInput(err error) *Error {
	return &Error{Kind: KindInvalidInput, Message: MsgInvalidInput, Err: err}
}

func notFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func unavailable(msg string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Message: msg, Err: err}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the kind of err; errors that are not *Error are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
