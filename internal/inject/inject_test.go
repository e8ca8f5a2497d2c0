package inject

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type overlapInjector struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int32
}

func (o *overlapInjector) enter() {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	time.Sleep(time.Millisecond)
	o.inFlight.Add(-1)
	o.calls.Add(1)
}

func (o *overlapInjector) InjectClick(x, y int) error  { o.enter(); return nil }
func (o *overlapInjector) InjectKeyPress(string) error { o.enter(); return nil }
func (o *overlapInjector) InjectText(string) error     { o.enter(); return nil }

func TestLocked_SerializesCalls(t *testing.T) {
	inner := &overlapInjector{}
	l := NewLocked(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_ = l.InjectClick(i, i)
			case 1:
				_ = l.InjectKeyPress("enter")
			default:
				_ = l.InjectText("abc")
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(8), inner.calls.Load())
	require.Zero(t, inner.overlaps.Load())
}

func TestNewLocked_DoesNotDoubleWrap(t *testing.T) {
	l := NewLocked(&overlapInjector{})
	require.Same(t, l, NewLocked(l))
}

func TestLog_NeverFails(t *testing.T) {
	var inj Injector = Log{}
	require.NoError(t, inj.InjectClick(1, 2))
	require.NoError(t, inj.InjectKeyPress("enter"))
	require.NoError(t, inj.InjectText("hello"))
}
