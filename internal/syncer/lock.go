package syncer

import (
	"sync"
	"time"
)

// defaultLockTTL bounds how long a crashed run can block its team.
const defaultLockTTL = 2 * time.Hour

// TeamLocker is an in-process advisory lock keyed by team id. A second
// acquire for a held team fails instead of waiting.
type TeamLocker struct {
	mu    sync.Mutex
	locks map[int64]hold
	seq   uint64
	ttl   time.Duration
	nowFn func() time.Time
}

// hold is one acquisition. The token keeps an expired holder's release from
// dropping a newer hold on the same team.
type hold struct {
	token uint64
	until time.Time
}

// NewTeamLocker returns a locker whose holds expire after ttl.
func NewTeamLocker(ttl time.Duration) *TeamLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &TeamLocker{
		locks: make(map[int64]hold),
		ttl:   ttl,
		nowFn: time.Now,
	}
}

// Acquire takes the team's lock. The returned func releases it and is safe
// to call more than once.
func (l *TeamLocker) Acquire(teamID int64) (release func(), err error) {
	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.locks[teamID]; ok && now.Before(h.until) {
		return nil, ErrSyncInProgress
	}
	l.seq++
	token := l.seq
	l.locks[teamID] = hold{token: token, until: now.Add(l.ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.locks[teamID].token == token {
				delete(l.locks, teamID)
			}
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether the team is locked.
func (l *TeamLocker) Held(teamID int64) bool {
	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.locks[teamID]
	return ok && now.Before(h.until)
}
