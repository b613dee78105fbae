package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const lockRetryInterval = 50 * time.Millisecond

// TimetableLock serializes every writer of the stored timetable: generation
// runs and manual moves. A process-local semaphore covers this instance and
// the optional locker covers the others.
type TimetableLock struct {
	local  chan struct{}
	remote generationLocker
	ttl    time.Duration
	logger *zap.Logger
}

// NewTimetableLock builds the lock. A nil remote keeps it process-local.
func NewTimetableLock(remote generationLocker, ttl time.Duration, logger *zap.Logger) *TimetableLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableLock{local: make(chan struct{}, 1), remote: remote, ttl: ttl, logger: logger}
}

// Run calls fn while holding the lock. It waits at most wait for a holder to
// finish; with wait zero it fails at once. A held lock yields
// appErrors.ErrGenerationInProgress.
func (l *TimetableLock) Run(ctx context.Context, wait time.Duration, fn func(ctx context.Context) error) error {
	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case l.local <- struct{}{}:
	default:
		if deadline == nil {
			return appErrors.ErrGenerationInProgress
		}
		select {
		case l.local <- struct{}{}:
		case <-deadline:
			return appErrors.ErrGenerationInProgress
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() { <-l.local }()

	if l.remote == nil {
		return fn(ctx)
	}
	token, err := l.acquire(ctx, deadline)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.remote.Release(context.WithoutCancel(ctx), token); err != nil {
			l.logger.Warn("failed to release timetable lock", zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (l *TimetableLock) acquire(ctx context.Context, deadline <-chan time.Time) (string, error) {
	for {
		token, err := l.remote.Acquire(ctx, l.ttl)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, repository.ErrLockHeld) {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire timetable lock")
		}
		if deadline == nil {
			return "", appErrors.ErrGenerationInProgress
		}
		retry := time.NewTimer(lockRetryInterval)
		select {
		case <-retry.C:
		case <-deadline:
			retry.Stop()
			return "", appErrors.ErrGenerationInProgress
		case <-ctx.Done():
			retry.Stop()
			return "", ctx.Err()
		}
	}
}
