package forum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDenied     = errors.New("authorization denied")
	ErrValidation = errors.New("validation failed")
)

// DenyReason says why the Authorizer refused an action.
type DenyReason string

const (
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonNewbie          DenyReason = "newbie"
	ReasonForbidden       DenyReason = "forbidden"
	ReasonBlocked         DenyReason = "blocked"
	ReasonTopicBanned     DenyReason = "topic_banned"
	ReasonTopicClosed     DenyReason = "topic_closed"
)

type DeniedError struct {
	Op     Operation
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Op, e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// NotFoundError names the missing record kind, e.g. "topic" or "node".
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// IsUnauthenticated reports whether err is a denial that signing in
// could fix.
func IsUnauthenticated(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied) && denied.Reason == ReasonUnauthenticated
}

func notFound(kind string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("get %s %d: %w", kind, id, err)
}
