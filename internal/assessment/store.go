package assessment

import (
	"context"
	"errors"
)

// Sentinel errors. Policy violations are ordinary values the HTTP layer maps
// to reason codes; they never corrupt attempt state.
var (
	ErrTestNotFound        = errors.New("test not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrTestNotPublished    = errors.New("test not published")
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	ErrAttemptNotActive    = errors.New("attempt not active")
	ErrTimeExpired         = errors.New("time limit expired")
	ErrUnknownQuestion     = errors.New("question not part of attempt")
	ErrNotGraded           = errors.New("attempt not graded")
	ErrVersionConflict     = errors.New("attempt modified concurrently")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// AttemptListOpts filters attempt listings.
type AttemptListOpts struct {
	TestID string
	UserID string
	State  string
	Limit  int
	Offset int
}

// TestStore is the persistence port for test definitions.
type TestStore interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error)
	// SetTestStatus performs the lifecycle change as a compare-and-swap;
	// a wrong current status returns ErrInvalidTransition.
	SetTestStatus(ctx context.Context, id string, from, to TestStatus) error
	ListTests(ctx context.Context, limit, offset int) ([]Test, error)
}

// AttemptStore is the persistence port for attempts and their results.
//
// Implementations must guarantee:
//   - CreateAttempt atomically assigns the next attempt number per
//     (test, user) and enforces maxAttempts (0 = unlimited), returning
//     ErrAttemptLimitReached without creating anything when exhausted.
//   - UpdateAttempt is an optimistic write: it matches a.Version, bumps it
//     by one, and returns ErrVersionConflict on a mismatch.
//   - MarkSubmitted/MarkExpired/MarkGraded are compare-and-swap transitions;
//     MarkSubmitted reports whether this caller won the transition.
//   - SaveResult stores at most one result per attempt; a duplicate save is
//     a no-op.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a Attempt, maxAttempts int) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	MarkSubmitted(ctx context.Context, id string, atUnix int64) (Attempt, bool, error)
	MarkExpired(ctx context.Context, id string, atUnix int64) (Attempt, error)
	MarkGraded(ctx context.Context, id string) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	CountAttempts(ctx context.Context, testID string) (int, error)

	SaveResult(ctx context.Context, r TestResult) error
	GetResult(ctx context.Context, attemptID string) (TestResult, error)
	ListResults(ctx context.Context, testID string) ([]TestResult, error)
	ListUserResults(ctx context.Context, userID string) ([]TestResult, error)
}
