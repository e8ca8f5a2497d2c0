package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when another replay owns the injector.
var ErrBusy = errors.New("another replay is running")

// Token grants exclusive ownership of the injection resource to one replay at
// a time: the replay scheduler, a cron fire, or a manual playback.
type Token struct {
	slot  chan struct{}
	mu    sync.Mutex
	owner string
}

// NewToken returns a free token.
func NewToken() *Token {
	return &Token{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the token without waiting. The returned release func is
// idempotent.
func (t *Token) TryAcquire(owner string) (func(), error) {
	select {
	case t.slot <- struct{}{}:
		return t.claim(owner), nil
	default:
		return nil, fmt.Errorf("%w: held by %s", ErrBusy, t.Owner())
	}
}

// Acquire waits for the token or for ctx to be done.
func (t *Token) Acquire(ctx context.Context, owner string) (func(), error) {
	select {
	case t.slot <- struct{}{}:
		return t.claim(owner), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Owner names the current holder, or "" when free.
func (t *Token) Owner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}

// Held reports whether the token is taken.
func (t *Token) Held() bool {
	return len(t.slot) == 1
}

func (t *Token) claim(owner string) func() {
	t.mu.Lock()
	t.owner = owner
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.owner = ""
			t.mu.Unlock()
			<-t.slot
		})
	}
}
