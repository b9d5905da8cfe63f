// Package services defines the business logic for chats, memberships,
// messages, friendships, and previews. This file centralizes service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Every sentinel belongs to exactly one Kind. Translation into HTTP status
// codes happens in the handler layer through KindOf.
package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for callers that only care about the
// category of failure.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindNotFound
	KindConflict
	KindStorage
)

// String returns the snake_case label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(k Kind, msg string) error { return &kindError{kind: k, msg: msg} }

// Member directory errors.
var (
	// ErrUnknownMember indicates that an email, username, or id does not
	// resolve to a member.
	ErrUnknownMember = newError(KindNotFound, "member not found")

	// ErrInvalidEmail is returned for addresses that are not well formed.
	ErrInvalidEmail = newError(KindInvalidInput, "invalid email address")
)

// Chat and membership errors.
var (
	ErrChatNotFound = newError(KindNotFound, "chat not found")

	// ErrSelfChat is returned when a member tries to open a direct chat with themself.
	ErrSelfChat = newError(KindInvalidInput, "cannot create a chat with yourself")

	// ErrDuplicateChat is returned when a direct chat already exists for the pair.
	ErrDuplicateChat = newError(KindConflict, "chat already exists")

	ErrNoMembers = newError(KindInvalidInput, "member list is empty")

	ErrAlreadyMember = newError(KindConflict, "already a member of this chat")

	// ErrDirectChatClosed rejects joins that would grow a direct chat past two members.
	ErrDirectChatClosed = newError(KindConflict, "direct chats cannot be joined")

	ErrNotAMember = newError(KindNotFound, "not a member of this chat")

	ErrEmptyName = newError(KindInvalidInput, "chat name is empty")
)

// Message errors.
var (
	ErrEmptyBody   = newError(KindInvalidInput, "message body is empty")
	ErrBodyTooLong = newError(KindInvalidInput, "message body too long")

	ErrMessageNotFound = newError(KindNotFound, "message not found")
)

// Friend and preview errors.
var (
	ErrSelfFriend     = newError(KindInvalidInput, "cannot add yourself as a friend")
	ErrAlreadyFriends = newError(KindConflict, "already friends")

	// ErrNoChatRooms is returned by previews when the caller belongs to no chat.
	ErrNoChatRooms = newError(KindNotFound, "no chat room found")
)

// StorageError wraps an unexpected failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that carry no kind (including StorageError)
// are KindStorage. err must be non-nil.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindStorage
}

// storage passes classified errors through and wraps everything else in a
// StorageError tagged with op.
func storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
