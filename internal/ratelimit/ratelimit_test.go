package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hilite-live/hilite/internal/ratelimit"
)

func TestCheckAndRecord_CooldownWindow(t *testing.T) {
	l := ratelimit.New()
	t0 := time.Unix(1000, 0)

	require.NoError(t, l.CheckAndRecord("form/feedback", "x", 5*time.Second, t0))

	err := l.CheckAndRecord("form/feedback", "x", 5*time.Second, t0.Add(3*time.Second))
	var cdErr *ratelimit.CooldownError
	require.ErrorAs(t, err, &cdErr)
	require.Equal(t, 2*time.Second, cdErr.RetryAfter)

	// Rejections must not refresh the record: t=6 is 6s after the last
	// accepted action, so it passes.
	require.NoError(t, l.CheckAndRecord("form/feedback", "x", 5*time.Second, t0.Add(6*time.Second)))
}

func TestCheckAndRecord_ZeroCooldownAlwaysAccepts(t *testing.T) {
	l := ratelimit.New()
	now := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.CheckAndRecord("buttons/main", "x", 0, now))
		require.NoError(t, l.CheckAndRecord("buttons/main", "x", -time.Second, now))
	}
}

func TestCheckAndRecord_ScopesAndClientsAreIndependent(t *testing.T) {
	l := ratelimit.New()
	now := time.Unix(1000, 0)

	require.NoError(t, l.CheckAndRecord("form/a", "x", time.Minute, now))
	require.NoError(t, l.CheckAndRecord("form/b", "x", time.Minute, now))
	require.NoError(t, l.CheckAndRecord("form/a", "y", time.Minute, now))
	require.Error(t, l.CheckAndRecord("form/a", "x", time.Minute, now))
}

func TestCheckAndRecord_ConcurrentSingleWinner(t *testing.T) {
	l := ratelimit.New()
	now := time.Unix(1000, 0)

	const attempts = 32
	var wg sync.WaitGroup
	accepted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("form/feedback", "x", time.Minute, now) == nil {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	require.Len(t, accepted, 1)
}

func TestSeedSnapshotReset(t *testing.T) {
	l := ratelimit.New()
	at := time.Unix(2000, 0)

	l.Seed("form/feedback", "x", at)
	require.Error(t, l.CheckAndRecord("form/feedback", "x", time.Minute, at.Add(time.Second)))

	snap := l.Snapshot("form/feedback")
	require.Equal(t, map[string]time.Time{"x": at}, snap)

	l.Reset("form/feedback")
	require.Empty(t, l.Snapshot("form/feedback"))
	require.NoError(t, l.CheckAndRecord("form/feedback", "x", time.Minute, at.Add(time.Second)))
}
