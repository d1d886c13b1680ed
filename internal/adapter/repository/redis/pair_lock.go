package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PairLocker implements usecase.PairLocker with a redsync mutex per member
// pair, so concurrent server instances cannot settle the same pair twice.
type PairLocker struct {
	rs      *redsync.Redsync
	prefix  string
	expiry  time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPairLocker creates a new PairLocker. A held lock is extended every third
// of expiry until it is released, so expiry only bounds how long a crashed
// holder blocks the pair.
func NewPairLocker(client *redis.Client, expiry time.Duration, logger zerolog.Logger) *PairLocker {
	return &PairLocker{
		rs:      redsync.New(goredis.NewPool(client)),
		prefix:  "settlement-lock:",
		expiry:  expiry,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// TryLock attempts the lock once and never waits for a busy pair.
func (l *PairLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	lockKey := l.prefix + key
	mutex := l.rs.NewMutex(
		lockKey,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isLockContention(err) {
			l.logger.Debug().Str("key", lockKey).Msg("settlement lock busy")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to attempt lock acquisition for %s: %w", lockKey, err)
	}

	// The holder keeps working after its caller goes away, so the lock
	// follows the holder and not ctx.
	bg := context.WithoutCancel(ctx)
	done := make(chan struct{})
	go l.keepAlive(bg, mutex, lockKey, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)

			ctx, cancel := context.WithTimeout(bg, l.timeout)
			defer cancel()

			ok, err := mutex.UnlockContext(ctx)
			if err != nil || !ok {
				l.logger.Warn().Err(err).Str("key", lockKey).Bool("ok", ok).Msg("failed to release settlement lock")
			}
		})
	}

	return release, true, nil
}

// keepAlive extends mutex until done is closed or an extension fails.
func (l *PairLocker) keepAlive(ctx context.Context, mutex *redsync.Mutex, lockKey string, done <-chan struct{}) {
	ticker := time.NewTicker(l.expiry / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, l.timeout)
			ok, err := mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				l.logger.Error().Err(err).Str("key", lockKey).Msg("settlement lock lost before release")
				return
			}
		}
	}
}

func isLockContention(err error) bool {
	msg := err.Error()
	return errors.Is(err, redsync.ErrFailed) ||
		strings.Contains(msg, "lock already taken") ||
		strings.Contains(msg, "failed to acquire lock")
}
