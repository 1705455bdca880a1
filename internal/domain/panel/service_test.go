package panel

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hilite-live/hilite/internal/ratelimit"
	"github.com/hilite-live/hilite/internal/store"
)

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var testButtons = []Button{
	{ID: "suspension", Label: "Suspension"},
	{ID: "extension", Label: "Extension"},
}

func newTestManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return newManagerWith(st)
}

func newManagerWith(st store.Store) (*Manager, *testClock) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	m := NewManager(st, ratelimit.New(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		DefaultButtons: testButtons,
	})
	m.now = func() time.Time { return clock.now }
	return m, clock
}

func TestFireFoldsCounts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	ev, err := m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)
	require.Equal(t, int64(1), ev.Seq)
	require.Equal(t, "Suspension", ev.Label)

	_, err = m.Fire(ctx, "main", "bob", "suspension", DirectionPlus)
	require.NoError(t, err)
	_, err = m.Fire(ctx, "main", "carol", "suspension", DirectionMinus)
	require.NoError(t, err)

	state, err := m.State(ctx, "main", 0)
	require.NoError(t, err)
	require.Len(t, state.Events, 3)
	require.Equal(t, 3, state.Total)
	require.Equal(t, Counts{Label: "Suspension", Minus: 1, Plus: 2}, state.Counts["suspension"])
	// Never-pressed buttons still show up zeroed.
	require.Equal(t, Counts{Label: "Extension"}, state.Counts["extension"])
}

func TestFireValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Fire(ctx, "main", "alice", "suspension", "sideways")
	require.ErrorIs(t, err, ErrInvalidDirection)

	_, err = m.Fire(ctx, "main", "alice", "warp", DirectionPlus)
	require.ErrorIs(t, err, ErrUnknownButton)
}

func TestFireLocked(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.SetLocked(ctx, "main", true)
	require.NoError(t, err)

	_, err = m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.ErrorIs(t, err, ErrLocked)

	_, err = m.SetLocked(ctx, "main", false)
	require.NoError(t, err)
	_, err = m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)
}

func TestFireCooldown(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	cooldown := 5.0
	_, err := m.UpdateConfig(ctx, "main", ConfigUpdate{Cooldown: &cooldown})
	require.NoError(t, err)

	_, err = m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)

	clock.advance(3 * time.Second)
	_, err = m.Fire(ctx, "main", "alice", "extension", DirectionPlus)
	var cerr *ratelimit.CooldownError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, 2*time.Second, cerr.RetryAfter)

	// The cooldown is per client, not per button.
	_, err = m.Fire(ctx, "main", "bob", "suspension", DirectionPlus)
	require.NoError(t, err)

	clock.advance(3 * time.Second)
	_, err = m.Fire(ctx, "main", "alice", "extension", DirectionPlus)
	require.NoError(t, err)
}

func TestStateSinceCursor(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, client := range []string{"a", "b", "c"} {
		_, err := m.Fire(ctx, "main", client, "suspension", DirectionPlus)
		require.NoError(t, err)
	}

	tail, err := m.State(ctx, "main", 2)
	require.NoError(t, err)
	require.Len(t, tail.Events, 1)
	require.Equal(t, int64(3), tail.Events[0].Seq)
	// Counts are always the full fold, not just the tail.
	require.Equal(t, 3, tail.Counts["suspension"].Plus)
}

func TestResetRestartsNumberingAndCooldowns(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	cooldown := 60.0
	_, err := m.UpdateConfig(ctx, "main", ConfigUpdate{Cooldown: &cooldown})
	require.NoError(t, err)
	_, err = m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx, "main"))

	state, err := m.State(ctx, "main", 0)
	require.NoError(t, err)
	require.Empty(t, state.Events)
	require.Equal(t, Counts{Label: "Suspension"}, state.Counts["suspension"])

	ev, err := m.Fire(ctx, "main", "alice", "suspension", DirectionMinus)
	require.NoError(t, err)
	require.Equal(t, int64(1), ev.Seq)
}

func TestUpdateConfigReplacesButtonsKeepsCounts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)

	cfg, err := m.UpdateConfig(ctx, "main", ConfigUpdate{
		Buttons: []Button{{ID: "speed", Label: "Speed"}},
	})
	require.NoError(t, err)
	require.Equal(t, []Button{{ID: "speed", Label: "Speed"}}, cfg.Buttons)

	// Old presses stay in the log and the counts.
	state, err := m.State(ctx, "main", 0)
	require.NoError(t, err)
	require.Equal(t, 1, state.Counts["suspension"].Plus)
	require.Equal(t, Counts{Label: "Speed"}, state.Counts["speed"])

	_, err = m.UpdateConfig(ctx, "main", ConfigUpdate{Buttons: []Button{{Label: "no id"}}})
	require.Error(t, err)
}

func TestStateSurvivesRestart(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	m, _ := newManagerWith(st)
	cooldown := 300.0
	_, err = m.UpdateConfig(ctx, "main", ConfigUpdate{Cooldown: &cooldown})
	require.NoError(t, err)
	_, err = m.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)

	m2, clock2 := newManagerWith(st)
	clock2.advance(time.Minute)

	// Alice's cooldown record was reseeded from disk.
	_, err = m2.Fire(ctx, "main", "alice", "suspension", DirectionPlus)
	var cerr *ratelimit.CooldownError
	require.ErrorAs(t, err, &cerr)

	ev, err := m2.Fire(ctx, "main", "bob", "extension", DirectionMinus)
	require.NoError(t, err)
	require.Equal(t, int64(2), ev.Seq)

	state, err := m2.State(ctx, "main", 0)
	require.NoError(t, err)
	require.Equal(t, 1, state.Counts["suspension"].Plus)
	require.Equal(t, 1, state.Counts["extension"].Minus)
}

func TestListIDs(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Fire(ctx, "aux", "alice", "suspension", DirectionPlus)
	require.NoError(t, err)

	ids, err := m.ListIDs(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, []string{"aux", "main"}, ids)
}
