package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScopeLocks_Serialize(t *testing.T) {
	l := NewScopeLocks()
	unlock := l.Lock("p|architects")

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		u := l.Lock("p|architects")
		close(acquired)
		u()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(30 * time.Millisecond):
	}

	// A different scope is not blocked.
	other := l.Lock("p|engineers")
	other()

	unlock()
	<-acquired
	<-released

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "p1|cat-1", ScopeKey("p1", "cat-1", "Architects"))
	assert.Equal(t, "p1|architects", ScopeKey("p1", "", " Architects "))
	assert.Equal(t, "p1|*", ScopeKey("p1", "", ""))
}
