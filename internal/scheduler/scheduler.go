// Package scheduler holds the notification scheduler collaborators the
// reconciler drives: the Scheduler contract, an in-process heap dispatcher
// and a shadow wrapper that gives query-less dispatchers a ListActive.
package scheduler

import (
	"context"
	"errors"

	"chronoloom/internal/models"
)

var (
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrQuotaExceeded    = errors.New("notification quota exceeded")
	ErrUnavailable      = errors.New("notification scheduler unavailable")
)

// Scheduler creates and cancels notifications by id.
// Create with an id that is already active replaces it; Cancel of an
// unknown id succeeds.
type Scheduler interface {
	Create(ctx context.Context, id string, payload models.Payload, trigger models.Trigger) error
	Cancel(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]models.ScheduledNotification, error)
}

// Dispatcher is a scheduler that cannot enumerate what it has scheduled.
// Wrap it in a Shadow to use it as a Scheduler.
type Dispatcher interface {
	Schedule(ctx context.Context, id string, payload models.Payload, trigger models.Trigger) error
	Cancel(ctx context.Context, id string) error
}

// ErrorKind is the coarse classification reported for a failed operation.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindQuotaExceeded    ErrorKind = "quota_exceeded"
	KindUnavailable      ErrorKind = "unavailable"
	KindCanceled         ErrorKind = "canceled"
	KindUnknown          ErrorKind = "unknown"
)

// KindOf classifies err. It returns "" for a nil error.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
