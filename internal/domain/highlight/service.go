package highlight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hilite-live/hilite/internal/cluster"
	"github.com/hilite-live/hilite/internal/registry"
	"github.com/hilite-live/hilite/internal/store"
	"github.com/hilite-live/hilite/internal/tokenizer"
)

// TokenSource loads and tokenizes a named source document. An empty name
// selects the library default.
type TokenSource interface {
	Tokenize(name string) (tokens []string, resolved string, err error)
}

// Options tune highlight behavior.
type Options struct {
	// MaxSpan caps how many tokens one stroke may cover. Defaults to 8.
	MaxSpan int
	// Palette is the set of accepted colors.
	Palette []string
}

// Manager owns every highlight session in the process. Sessions are
// created implicitly on first access and live for the process lifetime;
// the durable store is only a crash-recovery mirror read once per id.
type Manager struct {
	store   store.Store
	sources TokenSource
	logger  *slog.Logger
	maxSpan int
	palette map[string]struct{}
	reg     *registry.Registry[*session]
	now     func() time.Time
}

type session struct {
	docID string

	mu         sync.RWMutex
	tokens     []string
	votes      []map[string]string
	locked     bool
	sourceName string
	updated    float64
	rev        uint64

	// saveMu serializes disk writes for this session; savedRev ensures a
	// delayed save can never clobber a newer snapshot.
	saveMu   sync.Mutex
	savedRev uint64
}

// NewManager creates a highlight manager.
func NewManager(st store.Store, sources TokenSource, logger *slog.Logger, opts Options) *Manager {
	maxSpan := opts.MaxSpan
	if maxSpan < 1 {
		maxSpan = 8
	}
	palette := make(map[string]struct{}, len(opts.Palette))
	for _, color := range opts.Palette {
		palette[color] = struct{}{}
	}
	m := &Manager{
		store:   st,
		sources: sources,
		logger:  logger,
		maxSpan: maxSpan,
		palette: palette,
		now:     time.Now,
	}
	m.reg = registry.New(m.loadSession)
	return m
}

// loadSession reads persisted state for a document id. A missing or
// unreadable file yields an empty session: sessions are implicitly
// created, and a corrupt mirror must not take the document down.
func (m *Manager) loadSession(ctx context.Context, docID string) (*session, error) {
	s := &session{docID: docID}
	data, err := m.store.Load(ctx, store.KindState, docID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("failed to load document state", "doc", docID, "error", err)
		}
		return s, nil
	}
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		m.logger.Error("failed to parse document state", "doc", docID, "error", err)
		return s, nil
	}
	s.tokens = doc.Tokens
	s.votes = doc.Votes
	s.updated = doc.Updated
	s.sourceName = doc.SourceName
	normalizeVotes(s)
	return s, nil
}

func (m *Manager) session(ctx context.Context, docID string) (*session, error) {
	return m.reg.Get(ctx, docID)
}

func (m *Manager) unixNow() float64 {
	return float64(m.now().UnixNano()) / float64(time.Second)
}

// normalizeVotes keeps the votes slice parallel to the token sequence.
func normalizeVotes(s *session) {
	for len(s.votes) < len(s.tokens) {
		s.votes = append(s.votes, map[string]string{})
	}
	s.votes = s.votes[:len(s.tokens)]
	for i, bucket := range s.votes {
		if bucket == nil {
			s.votes[i] = map[string]string{}
		}
	}
}

func emptyVotes(n int) []map[string]string {
	votes := make([]map[string]string, n)
	for i := range votes {
		votes[i] = map[string]string{}
	}
	return votes
}

func (s *session) snapshotLocked() Snapshot {
	tokens := make([]string, len(s.tokens))
	copy(tokens, s.tokens)
	return Snapshot{
		DocID:      s.docID,
		Tokens:     tokens,
		Locked:     s.locked,
		SourceName: s.sourceName,
		Updated:    s.updated,
	}
}

func (s *session) docLocked() stateDoc {
	votes := make([]map[string]string, len(s.votes))
	for i, bucket := range s.votes {
		cp := make(map[string]string, len(bucket))
		for client, color := range bucket {
			cp[client] = color
		}
		votes[i] = cp
	}
	return stateDoc{
		Tokens:     s.tokens,
		Votes:      votes,
		Updated:    s.updated,
		SourceName: s.sourceName,
	}
}

// persist writes a snapshot taken under the session lock. Saves are
// serialized per session and stale snapshots are skipped, so the disk
// mirror always converges on the newest state even when saves race.
func (m *Manager) persist(ctx context.Context, s *session, doc stateDoc, rev uint64) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document state: %w", err)
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if rev <= s.savedRev {
		return nil
	}
	if err := m.store.Save(ctx, store.KindState, s.docID, data); err != nil {
		return fmt.Errorf("saving document state: %w", err)
	}
	s.savedRev = rev
	return nil
}

// EnsureTokens returns the session snapshot, tokenizing the document's
// source first if the session has no tokens yet. sourceName overrides the
// stored source only for that initial tokenization.
func (m *Manager) EnsureTokens(ctx context.Context, docID, sourceName string) (Snapshot, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	if len(s.tokens) > 0 {
		snap := s.snapshotLocked()
		s.mu.RUnlock()
		return snap, nil
	}
	name := sourceName
	if name == "" {
		name = s.sourceName
	}
	s.mu.RUnlock()

	tokens, resolved, err := m.sources.Tokenize(name)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if len(s.tokens) == 0 {
		s.tokens = tokens
		s.votes = emptyVotes(len(tokens))
		s.sourceName = resolved
		if s.updated == 0 {
			s.updated = m.unixNow()
		}
		s.rev++
	}
	doc, rev := s.docLocked(), s.rev
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := m.persist(ctx, s, doc, rev); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Retokenize replaces the token sequence from a source file and clears
// every vote. This is the operator reset and ignores the locked flag.
func (m *Manager) Retokenize(ctx context.Context, docID, sourceName string) (Snapshot, error) {
	tokens, resolved, err := m.sources.Tokenize(sourceName)
	if err != nil {
		return Snapshot{}, err
	}
	s, err := m.session(ctx, docID)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.tokens = tokens
	s.votes = emptyVotes(len(tokens))
	s.sourceName = resolved
	s.updated = m.unixNow()
	s.rev++
	doc, rev := s.docLocked(), s.rev
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := m.persist(ctx, s, doc, rev); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ApplyVote records one client's highlight stroke. The requested span is
// clamped to MaxSpan tokens walking from start toward end and stops at the
// first break token. A stroke over a span the client already painted in
// exactly this color toggles those votes off. Returns what was actually
// applied.
func (m *Manager) ApplyVote(ctx context.Context, docID, clientID string, start, end int, color string) (Applied, error) {
	if color != "" {
		if _, ok := m.palette[color]; !ok {
			return Applied{}, fmt.Errorf("%w: %q", ErrUnknownColor, color)
		}
	}
	if _, err := m.EnsureTokens(ctx, docID, ""); err != nil {
		m.logger.Debug("ensure tokens before vote", "doc", docID, "error", err)
	}
	s, err := m.session(ctx, docID)
	if err != nil {
		return Applied{}, err
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return Applied{}, ErrLocked
	}
	n := len(s.tokens)
	if n == 0 || start < 0 || end < 0 || start >= n || end >= n {
		s.mu.Unlock()
		return Applied{}, fmt.Errorf("%w: [%d,%d] against %d tokens", ErrInvalidRange, start, end, n)
	}
	if start > end {
		start, end = end, start
	}

	// Walk forward from start; break tokens are hard boundaries.
	last := start - 1
	for i := start; i <= end && i-start < m.maxSpan; i++ {
		if tokenizer.IsBreak(s.tokens[i]) {
			break
		}
		last = i
	}
	if last < start {
		s.mu.Unlock()
		return Applied{Start: start, End: start, Color: "", Changed: false}, nil
	}

	applyColor := color
	if color != "" {
		toggle := true
		for i := start; i <= last; i++ {
			if s.votes[i][clientID] != color {
				toggle = false
				break
			}
		}
		if toggle {
			applyColor = ""
		}
	}

	changed := false
	for i := start; i <= last; i++ {
		bucket := s.votes[i]
		if applyColor == "" {
			if _, ok := bucket[clientID]; ok {
				delete(bucket, clientID)
				changed = true
			}
		} else if bucket[clientID] != applyColor {
			bucket[clientID] = applyColor
			changed = true
		}
	}

	var doc stateDoc
	var rev uint64
	if changed {
		s.updated = m.unixNow()
		s.rev++
		doc, rev = s.docLocked(), s.rev
	}
	s.mu.Unlock()

	if changed {
		if err := m.persist(ctx, s, doc, rev); err != nil {
			return Applied{}, err
		}
	}
	return Applied{Start: start, End: last, Color: applyColor, Changed: changed}, nil
}

// ClearClient removes every vote one client holds across the document.
// A no-op on locked sessions. Reports whether anything changed.
func (m *Manager) ClearClient(ctx context.Context, docID, clientID string) (bool, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return false, nil
	}
	changed := false
	for _, bucket := range s.votes {
		if _, ok := bucket[clientID]; ok {
			delete(bucket, clientID)
			changed = true
		}
	}
	var doc stateDoc
	var rev uint64
	if changed {
		s.updated = m.unixNow()
		s.rev++
		doc, rev = s.docLocked(), s.rev
	}
	s.mu.Unlock()

	if changed {
		if err := m.persist(ctx, s, doc, rev); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// ClearAll removes every vote from every client. This is a facilitator
// control and works on locked sessions too.
func (m *Manager) ClearAll(ctx context.Context, docID string) error {
	if _, err := m.EnsureTokens(ctx, docID, ""); err != nil {
		m.logger.Debug("ensure tokens before clear", "doc", docID, "error", err)
	}
	s, err := m.session(ctx, docID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.votes = emptyVotes(len(s.tokens))
	s.updated = m.unixNow()
	s.rev++
	doc, rev := s.docLocked(), s.rev
	s.mu.Unlock()

	return m.persist(ctx, s, doc, rev)
}

// SetLocked flips the write gate. Locking never clears votes, and locked
// sessions still serve reads.
func (m *Manager) SetLocked(ctx context.Context, docID string, locked bool) error {
	s, err := m.session(ctx, docID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.locked = locked
	s.mu.Unlock()
	return nil
}

// IsLocked reports the write gate.
func (m *Manager) IsLocked(ctx context.Context, docID string) (bool, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked, nil
}

// DominantRanges computes the majority-color view of the document.
func (m *Manager) DominantRanges(ctx context.Context, docID string) ([]Range, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dominantRanges(s.votes), nil
}

// MyRanges computes one client's own highlight view; other clients' votes
// never leak into it.
func (m *Manager) MyRanges(ctx context.Context, docID, clientID string) ([]Range, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clientRanges(s.tokens, s.votes, clientID), nil
}

// PhraseRecords extracts the raw phrase records feeding the word cloud.
func (m *Manager) PhraseRecords(ctx context.Context, docID string) ([]cluster.Record, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return phraseRecords(s.tokens, s.votes), nil
}

// Export dumps the whole session.
func (m *Manager) Export(ctx context.Context, docID string) (Export, error) {
	s, err := m.session(ctx, docID)
	if err != nil {
		return Export{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.docLocked()
	return Export{
		DocID:      s.docID,
		Locked:     s.locked,
		Tokens:     doc.Tokens,
		Votes:      doc.Votes,
		Updated:    s.updated,
		SourceName: s.sourceName,
	}, nil
}

// ListIDs returns every known document id: loaded sessions, persisted
// documents, and any extra ids the caller always wants present.
func (m *Manager) ListIDs(ctx context.Context, extra ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range m.reg.Loaded() {
		seen[id] = struct{}{}
	}
	stored, err := m.store.List(ctx, store.KindState)
	if err != nil {
		return nil, err
	}
	for _, id := range stored {
		seen[id] = struct{}{}
	}
	for _, id := range extra {
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
