package highlight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hilite-live/hilite/internal/store"
)

type fakeSource struct {
	tokens []string
	err    error
}

func (f *fakeSource) Tokenize(name string) ([]string, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	resolved := name
	if resolved == "" {
		resolved = "text.txt"
	}
	tokens := make([]string, len(f.tokens))
	copy(tokens, f.tokens)
	return tokens, resolved, nil
}

func newTestManager(t *testing.T, tokens []string) *Manager {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return newManagerWith(st, tokens)
}

func newManagerWith(st store.Store, tokens []string) *Manager {
	m := NewManager(st, &fakeSource{tokens: tokens}, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		MaxSpan: 8,
		Palette: []string{"yellow", "green", "blue", "pink", "orange"},
	})
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m
}

func TestEnsureTokensLazyTokenize(t *testing.T) {
	m := newTestManager(t, []string{"The", "cat", "sat"})
	ctx := context.Background()

	snap, err := m.EnsureTokens(ctx, "doc1", "")
	require.NoError(t, err)
	require.Equal(t, []string{"The", "cat", "sat"}, snap.Tokens)
	require.Equal(t, "text.txt", snap.SourceName)
	require.False(t, snap.Locked)
	require.NotZero(t, snap.Updated)

	// Second call must not retokenize or bump the timestamp.
	again, err := m.EnsureTokens(ctx, "doc1", "other.txt")
	require.NoError(t, err)
	require.Equal(t, snap.Tokens, again.Tokens)
	require.Equal(t, snap.SourceName, again.SourceName)
}

func TestEnsureTokensSourceError(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srcErr := errors.New("no such source")
	m := NewManager(st, &fakeSource{err: srcErr}, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Palette: []string{"yellow"}})

	_, err = m.EnsureTokens(context.Background(), "doc1", "")
	require.ErrorIs(t, err, srcErr)
}

func TestApplyVoteAndDominantRanges(t *testing.T) {
	m := newTestManager(t, []string{"The", "cat", "sat"})
	ctx := context.Background()

	applied, err := m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)
	require.Equal(t, Applied{Start: 0, End: 1, Color: "yellow", Changed: true}, applied)

	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 1, "yellow")
	require.NoError(t, err)
	_, err = m.ApplyVote(ctx, "doc1", "carol", 1, 1, "green")
	require.NoError(t, err)

	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 1, Color: "yellow"}}, ranges)
}

func TestDominantTieBreaksLexicographically(t *testing.T) {
	m := newTestManager(t, []string{"word"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 0, "yellow")
	require.NoError(t, err)
	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 0, "green")
	require.NoError(t, err)

	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 0, Color: "green"}}, ranges)
}

func TestDominantTieOnOneTokenKeepsNeighbors(t *testing.T) {
	m := newTestManager(t, []string{"The", "cat", "sat"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)

	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 1, Color: "yellow"}}, ranges)

	// A second client ties token 0; the tie breaks to the
	// lexicographically-first color while token 1 stays yellow.
	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 0, "green")
	require.NoError(t, err)

	ranges, err = m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []Range{
		{Start: 0, End: 0, Color: "green"},
		{Start: 1, End: 1, Color: "yellow"},
	}, ranges)
}

func TestDominantRangesOrderIndependent(t *testing.T) {
	votes := []struct {
		client     string
		start, end int
		color      string
	}{
		{"alice", 0, 2, "yellow"},
		{"bob", 1, 3, "green"},
		{"carol", 2, 2, "green"},
	}
	tokens := []string{"a", "b", "c", "d"}
	ctx := context.Background()

	forward := newTestManager(t, tokens)
	for _, v := range votes {
		_, err := forward.ApplyVote(ctx, "doc1", v.client, v.start, v.end, v.color)
		require.NoError(t, err)
	}
	backward := newTestManager(t, tokens)
	for i := len(votes) - 1; i >= 0; i-- {
		v := votes[i]
		_, err := backward.ApplyVote(ctx, "doc1", v.client, v.start, v.end, v.color)
		require.NoError(t, err)
	}

	a, err := forward.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	b, err := backward.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestApplyVoteSwapsReversedIndices(t *testing.T) {
	m := newTestManager(t, []string{"a", "b", "c"})

	applied, err := m.ApplyVote(context.Background(), "doc1", "alice", 2, 0, "blue")
	require.NoError(t, err)
	require.Equal(t, 0, applied.Start)
	require.Equal(t, 2, applied.End)
}

func TestApplyVoteToggleOff(t *testing.T) {
	m := newTestManager(t, []string{"a", "b", "c"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 2, "pink")
	require.NoError(t, err)

	applied, err := m.ApplyVote(ctx, "doc1", "alice", 0, 2, "pink")
	require.NoError(t, err)
	require.Equal(t, "", applied.Color)
	require.True(t, applied.Changed)

	ranges, err := m.MyRanges(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.Empty(t, ranges)
}

func TestApplyVotePartialOverlapDoesNotToggle(t *testing.T) {
	m := newTestManager(t, []string{"a", "b", "c"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 0, "pink")
	require.NoError(t, err)

	// Span extends past the painted token, so it paints instead of toggling.
	applied, err := m.ApplyVote(ctx, "doc1", "alice", 0, 2, "pink")
	require.NoError(t, err)
	require.Equal(t, "pink", applied.Color)

	ranges, err := m.MyRanges(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 2, Color: "pink"}}, ranges)
}

func TestApplyVoteClampsSpan(t *testing.T) {
	tokens := make([]string, 20)
	for i := range tokens {
		tokens[i] = "w"
	}
	m := newTestManager(t, tokens)

	applied, err := m.ApplyVote(context.Background(), "doc1", "alice", 0, 19, "yellow")
	require.NoError(t, err)
	require.Equal(t, 0, applied.Start)
	require.Equal(t, 7, applied.End)
}

func TestApplyVoteStopsAtBreakToken(t *testing.T) {
	m := newTestManager(t, []string{"a", "b", "\n", "c", "d"})
	ctx := context.Background()

	applied, err := m.ApplyVote(ctx, "doc1", "alice", 0, 4, "green")
	require.NoError(t, err)
	require.Equal(t, 1, applied.End)
	require.True(t, applied.Changed)

	// Starting on a break token paints nothing.
	applied, err = m.ApplyVote(ctx, "doc1", "alice", 2, 4, "green")
	require.NoError(t, err)
	require.False(t, applied.Changed)
}

func TestApplyVoteValidation(t *testing.T) {
	m := newTestManager(t, []string{"a", "b"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 5, "yellow")
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = m.ApplyVote(ctx, "doc1", "alice", -1, 0, "yellow")
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = m.ApplyVote(ctx, "doc1", "alice", 0, 0, "ultraviolet")
	require.ErrorIs(t, err, ErrUnknownColor)
}

func TestLockedRejectsVotesButServesReads(t *testing.T) {
	m := newTestManager(t, []string{"a", "b"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)

	require.NoError(t, m.SetLocked(ctx, "doc1", true))
	locked, err := m.IsLocked(ctx, "doc1")
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 1, "green")
	require.ErrorIs(t, err, ErrLocked)

	// Existing votes survive the lock and reads keep working.
	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, ranges, 1)

	changed, err := m.ClearClient(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, m.SetLocked(ctx, "doc1", false))
	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 1, "green")
	require.NoError(t, err)
}

func TestClearClient(t *testing.T) {
	m := newTestManager(t, []string{"a", "b", "c"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 2, "yellow")
	require.NoError(t, err)
	_, err = m.ApplyVote(ctx, "doc1", "bob", 0, 1, "green")
	require.NoError(t, err)

	changed, err := m.ClearClient(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.True(t, changed)

	ranges, err := m.MyRanges(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.Empty(t, ranges)

	ranges, err = m.MyRanges(ctx, "doc1", "bob")
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 1, Color: "green"}}, ranges)

	changed, err = m.ClearClient(ctx, "doc1", "alice")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestClearAllIgnoresLock(t *testing.T) {
	m := newTestManager(t, []string{"a", "b"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)
	require.NoError(t, m.SetLocked(ctx, "doc1", true))

	require.NoError(t, m.ClearAll(ctx, "doc1"))

	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Empty(t, ranges)

	// Tokens survive a clear.
	snap, err := m.EnsureTokens(ctx, "doc1", "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, snap.Tokens)
}

func TestRetokenizeResetsVotes(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	src := &fakeSource{tokens: []string{"old", "text"}}
	m := NewManager(st, src, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Palette: []string{"yellow"}})
	ctx := context.Background()

	_, err = m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)

	src.tokens = []string{"new", "and", "longer", "text"}
	snap, err := m.Retokenize(ctx, "doc1", "new.txt")
	require.NoError(t, err)
	require.Equal(t, []string{"new", "and", "longer", "text"}, snap.Tokens)
	require.Equal(t, "new.txt", snap.SourceName)

	ranges, err := m.DominantRanges(ctx, "doc1")
	require.NoError(t, err)
	require.Empty(t, ranges)
}

func TestStateSurvivesRestart(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	m := newManagerWith(st, []string{"a", "b", "c"})
	_, err = m.ApplyVote(ctx, "doc1", "alice", 0, 1, "yellow")
	require.NoError(t, err)

	// Fresh manager over the same store reloads votes from disk.
	m2 := newManagerWith(st, []string{"a", "b", "c"})
	export, err := m2.Export(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, export.Tokens)
	require.Equal(t, "yellow", export.Votes[0]["alice"])
	require.Equal(t, "yellow", export.Votes[1]["alice"])
	require.Empty(t, export.Votes[2])
}

func TestCorruptStateYieldsEmptySession(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, store.KindState, "doc1", []byte("{not json")))

	m := newManagerWith(st, []string{"a", "b"})
	snap, err := m.EnsureTokens(ctx, "doc1", "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, snap.Tokens)
}

func TestListIDs(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	m := newManagerWith(st, []string{"a"})
	_, err = m.EnsureTokens(ctx, "zeta", "")
	require.NoError(t, err)

	ids, err := m.ListIDs(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc1", "zeta"}, ids)
}

func TestPhraseRecordsHashClientIDs(t *testing.T) {
	m := newTestManager(t, []string{"free", "the", "robots", "\n", "now"})
	ctx := context.Background()

	_, err := m.ApplyVote(ctx, "doc1", "alice", 0, 2, "yellow")
	require.NoError(t, err)
	_, err = m.ApplyVote(ctx, "doc1", "alice", 4, 4, "green")
	require.NoError(t, err)

	records, err := m.PhraseRecords(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "free the robots", records[0].Text)
	require.Equal(t, "yellow", records[0].Color)
	require.Equal(t, "now", records[1].Text)
	require.Len(t, records[0].Clients, 1)
	require.NotEqual(t, "alice", records[0].Clients[0])
	require.Len(t, records[0].Clients[0], 10)
}

func TestApplyVoteProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tokens := rapid.SliceOfN(rapid.SampledFrom([]string{"word", "other", "\n", ","}), 1, 30).Draw(rt, "tokens")
		st, err := store.NewFileStore(t.TempDir())
		if err != nil {
			rt.Fatalf("file store: %v", err)
		}
		m := newManagerWith(st, tokens)
		ctx := context.Background()

		start := rapid.IntRange(0, len(tokens)-1).Draw(rt, "start")
		end := rapid.IntRange(0, len(tokens)-1).Draw(rt, "end")
		color := rapid.SampledFrom([]string{"yellow", "green", "blue"}).Draw(rt, "color")

		applied, err := m.ApplyVote(ctx, "doc1", "client", start, end, color)
		if err != nil {
			rt.Fatalf("apply vote: %v", err)
		}

		lo, hi := start, end
		if lo > hi {
			lo, hi = hi, lo
		}
		if applied.Start < lo || applied.End > hi {
			rt.Fatalf("applied [%d,%d] escaped requested [%d,%d]", applied.Start, applied.End, lo, hi)
		}
		if span := applied.End - applied.Start + 1; span > 8 {
			rt.Fatalf("applied span %d exceeds cap", span)
		}

		ranges, err := m.MyRanges(ctx, "doc1", "client")
		if err != nil {
			rt.Fatalf("my ranges: %v", err)
		}
		for _, r := range ranges {
			for i := r.Start; i <= r.End; i++ {
				if tokens[i] == "\n" || tokens[i] == "," {
					rt.Fatalf("break token %d inside range [%d,%d]", i, r.Start, r.End)
				}
			}
		}
	})
}
