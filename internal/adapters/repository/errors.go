package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/playstats/internal/domain/model"
)

// Sentinel kinds for store and leaderboard errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidArgument    = model.ErrInvalidArgument

	errOffline = errors.New("store marked offline")
)

// Unavailable wraps a backend failure of op so that it matches
// ErrStorageUnavailable while keeping the cause inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// IsUnavailable reports whether err is a storage outage or timeout.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
