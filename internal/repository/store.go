package repository

import (
	"context"
	"errors"
	"time"

	"otp-auth-service/internal/model"
)

var (
	// ErrNotFound is returned when no live record exists for an email.
	ErrNotFound = errors.New("otp record not found")
	// ErrConflict is returned when an update kept losing to concurrent writers.
	ErrConflict = errors.New("otp record update conflict")
)

// Mutation tells Update what to do with the record after inspection.
type Mutation int

const (
	// Keep leaves the stored record untouched.
	Keep Mutation = iota
	// Save writes the (possibly modified) record back.
	Save
	// Delete removes the record.
	Delete
)

// UpdateFunc inspects a copy of the stored record and decides its fate. The
// returned error is handed back to the caller of Update after the mutation
// has been applied.
type UpdateFunc func(rec *model.OTPRecord) (Mutation, error)

// OTPStore holds outstanding challenges keyed by normalized email. All
// operations on the same email are linearized.
type OTPStore interface {
	// Put stores rec, replacing any prior record for the same email.
	Put(ctx context.Context, rec *model.OTPRecord) error
	Get(ctx context.Context, email string) (*model.OTPRecord, error)
	Delete(ctx context.Context, email string) error
	// Update runs fn under the per-email exclusion. Returns ErrNotFound
	// without calling fn when no record exists.
	Update(ctx context.Context, email string, fn UpdateFunc) error
	// SweepExpired removes every record with now > ExpiresAt and returns
	// how many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// RateLimiter caps send requests per email over a trailing window.
type RateLimiter interface {
	// Allow records the request and returns true, or returns false without
	// recording it when the window is already full.
	Allow(ctx context.Context, email string) (bool, error)
}

// Pruner is implemented by limiters whose idle windows need periodic cleanup.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}
