package pipeline

import (
	"strings"
	"sync"
)

// ScopeLocks serializes work per (project, category) within this process.
// Concurrent invocations for one scope would otherwise race between the
// duplicate read and the insert.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	sync.Mutex
	refs int
}

// NewScopeLocks returns an empty lock set.
func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[string]*scopeLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (l *ScopeLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &scopeLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// ScopeKey names a dedupe scope. The category id wins over the name; with
// neither the key covers the whole project.
func ScopeKey(projectID, categoryID, categoryName string) string {
	category := categoryID
	if category == "" {
		category = strings.ToLower(strings.TrimSpace(categoryName))
	}
	if category == "" {
		category = "*"
	}
	return projectID + "|" + category
}
