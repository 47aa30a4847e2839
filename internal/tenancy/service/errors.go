package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gabinete/pkg/slogx"
)

// Every service error wraps exactly one of these. Callers switch on them with
// errors.Is; the wrapped text is safe to show to the client.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrInternal        = errors.New("internal error")
)

// isExpected reports whether err is a typed outcome rather than a failure.
func isExpected(err error) bool {
	for _, target := range []error{
		ErrUnauthenticated, ErrUnauthorized, ErrNotFound,
		ErrValidation, ErrConflict, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// invalid wraps a domain validation error so both errors.Is(err,
// ErrValidation) and errors.Is(err, domain.ErrXxx) hold.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// internal logs err with its detail and hands back a bare ErrInternal, so
// store and notifier messages never reach the client.
func internal(ctx context.Context, msg string, err error, attrs ...any) error {
	attrs = append(attrs, slog.Any("error", err))
	slogx.FromContext(ctx).Error(msg, attrs...)
	return ErrInternal
}
