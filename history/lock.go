package history

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// ErrLocked means another process held the history lock for the whole wait.
var ErrLocked = errors.New("history file is locked")

const lockPollInterval = 50 * time.Millisecond

// acquireLock takes an advisory flock on path, polling until wait elapses.
// The kernel drops the lock when the holder exits, so a killed run never
// leaves the store wedged.
func acquireLock(path string, wait time.Duration) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockPollInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, errors.Wrap(err, "lock history")
	}
	if !ok {
		return nil, errors.Wrap(ErrLocked, path)
	}
	return func() { _ = fl.Unlock() }, nil
}
