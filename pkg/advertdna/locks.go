package advertdna

import (
	"context"
	"crypto/sha1"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockRetryDelay = 20 * time.Millisecond
	// lockStripes bounds the number of lock files. Keys sharing a stripe
	// serialize against each other.
	lockStripes = 256
)

// lockSet holds exclusive file locks for a registration. Locks live on disk
// so separate server and CLI processes sharing a workspace serialize too.
// Lock files are reused and never removed: unlinking a flock file while
// another process waits on it would let two holders in at once.
type lockSet struct {
	locks []*flock.Flock
}

// lockPath maps key onto one of lockStripes files in dir.
func lockPath(dir, key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(dir, fmt.Sprintf("stripe-%02x.lock", int(sum[0])%lockStripes))
}

// acquireLocks locks the stripe of every key in sorted path order, so two
// requests that share stripes cannot deadlock.
func acquireLocks(ctx context.Context, dir string, keys ...string) (*lockSet, error) {
	paths := make([]string, 0, len(keys))
	owner := make(map[string]string, len(keys))
	for _, key := range keys {
		path := lockPath(dir, key)
		if _, ok := owner[path]; ok {
			continue
		}
		owner[path] = key
		paths = append(paths, path)
	}
	sort.Strings(paths)

	set := &lockSet{}
	for _, path := range paths {
		fl := flock.New(path)
		ok, err := fl.TryLockContext(ctx, lockRetryDelay)
		if err != nil || !ok {
			set.release()
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("locking %q: %w", owner[path], err)
		}
		set.locks = append(set.locks, fl)
	}
	return set, nil
}

func (s *lockSet) release() error {
	var firstErr error
	for i := len(s.locks) - 1; i >= 0; i-- {
		if err := s.locks[i].Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.locks = nil
	return firstErr
}
