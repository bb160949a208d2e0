package service

import (
	"errors"
	"fmt"
)

// Kind classifies the failures callers are expected to show to users.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a rejection with a message safe to show to the caller. Anything
// that is not an *Error is an infrastructure failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// asValidation wraps a model validation failure.
func asValidation(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error()}
}

// KindOf returns the kind of a service error, or 0 for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

const (
	msgUserNotFound    = "User not found"
	msgUsernameTaken   = "Username already exists"
	msgGroupNotFound   = "Group not found"
	msgNotGroupMember  = "You are not a member of this group"
	msgNotAdminAdd     = "Only admins can add members"
	msgNotAdminRemove  = "Only admins can remove members"
	msgNotAdminUpdate  = "Only admins can update group info"
	msgAlreadyMember   = "User is already a member"
	msgAtCapacity      = "Group is at maximum capacity"
	msgNotMember       = "User is not a member"
	msgLastAdmin       = "Cannot remove the last admin"
	msgImageNotFound   = "Image not found"
	msgInvalidImageID  = "Invalid image ID"
	msgMessageNotFound = "Message not found"
	msgSelfMessage     = "You cannot message yourself"
	msgNoValidUserIDs  = "No valid user IDs provided"
	msgNotAnImage      = "File must be an image"
	msgSearchTooShort  = "Search query must be at least 2 characters long"
	msgSearchRequired  = "Search query is required"
)
