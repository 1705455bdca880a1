// Package panel implements minus/plus button panels: a fixed button set,
// an append-only press log, and per-button counters folded from it.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hilite-live/hilite/internal/domain/eventlog"
	"github.com/hilite-live/hilite/internal/ratelimit"
	"github.com/hilite-live/hilite/internal/registry"
	"github.com/hilite-live/hilite/internal/store"
)

const limiterScope = "panel/"

// Options tune panel defaults.
type Options struct {
	// DefaultButtons seed panels that have never been configured.
	DefaultButtons []Button
}

// Manager owns every panel session in the process.
type Manager struct {
	store   store.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	reg     *registry.Registry[*panelSession]

	defaultButtons []Button
	now            func() time.Time
}

// buttonCounts is the press-log aggregate, keyed by button id.
type buttonCounts map[string]Counts

type panelSession struct {
	panelID string

	mu       sync.Mutex
	log      *eventlog.Log[Event, buttonCounts]
	buttons  []Button
	cooldown time.Duration
	locked   bool
	updated  float64
	rev      uint64

	saveMu   sync.Mutex
	savedRev uint64
}

// NewManager creates a panel manager.
func NewManager(st store.Store, limiter *ratelimit.Limiter, logger *slog.Logger, opts Options) *Manager {
	m := &Manager{
		store:          st,
		limiter:        limiter,
		logger:         logger,
		defaultButtons: opts.DefaultButtons,
		now:            time.Now,
	}
	m.reg = registry.New(m.loadSession)
	return m
}

func newPressLog() *eventlog.Log[Event, buttonCounts] {
	return eventlog.New(
		func() buttonCounts { return buttonCounts{} },
		func(a buttonCounts, e Event) buttonCounts {
			c := a[e.ButtonID]
			if c.Label == "" {
				c.Label = e.Label
			}
			switch e.Direction {
			case DirectionMinus:
				c.Minus++
			case DirectionPlus:
				c.Plus++
			}
			a[e.ButtonID] = c
			return a
		},
	)
}

func (m *Manager) loadSession(ctx context.Context, panelID string) (*panelSession, error) {
	s := &panelSession{
		panelID: panelID,
		log:     newPressLog(),
		buttons: append([]Button(nil), m.defaultButtons...),
	}
	data, err := m.store.Load(ctx, store.KindButtons, panelID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("failed to load panel state", "panel", panelID, "error", err)
		}
		return s, nil
	}
	var doc buttonsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		m.logger.Error("failed to parse panel state", "panel", panelID, "error", err)
		return s, nil
	}
	if len(doc.Buttons) > 0 {
		s.buttons = doc.Buttons
	}
	s.cooldown = time.Duration(doc.Cooldown * float64(time.Second))
	s.locked = doc.Locked
	s.updated = doc.Updated
	s.log.Restore(doc.Events, doc.NextSeq)
	for clientID, last := range doc.LastByClient {
		m.limiter.Seed(limiterScope+panelID, clientID, time.Unix(0, int64(last*float64(time.Second))))
	}
	return s, nil
}

func (m *Manager) session(ctx context.Context, panelID string) (*panelSession, error) {
	return m.reg.Get(ctx, panelID)
}

func (m *Manager) unixNow() float64 {
	return float64(m.now().UnixNano()) / float64(time.Second)
}

func (m *Manager) docLocked(s *panelSession) buttonsDoc {
	lastByClient := make(map[string]float64)
	for clientID, last := range m.limiter.Snapshot(limiterScope + s.panelID) {
		lastByClient[clientID] = float64(last.UnixNano()) / float64(time.Second)
	}
	return buttonsDoc{
		PanelID:      s.panelID,
		Buttons:      append([]Button(nil), s.buttons...),
		Cooldown:     s.cooldown.Seconds(),
		Locked:       s.locked,
		Events:       s.log.Events(),
		LastByClient: lastByClient,
		NextSeq:      s.log.NextSeq(),
		Updated:      s.updated,
	}
}

func (m *Manager) persist(ctx context.Context, s *panelSession, doc buttonsDoc, rev uint64) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding panel state: %w", err)
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if rev <= s.savedRev {
		return nil
	}
	if err := m.store.Save(ctx, store.KindButtons, s.panelID, data); err != nil {
		return fmt.Errorf("saving panel state: %w", err)
	}
	s.savedRev = rev
	return nil
}

func (s *panelSession) configLocked() Config {
	return Config{
		PanelID:  s.panelID,
		Buttons:  append([]Button(nil), s.buttons...),
		Cooldown: s.cooldown.Seconds(),
		Locked:   s.locked,
	}
}

// countsLocked merges configured buttons (zero counts included) with the
// log aggregate, which may still carry buttons removed from the config.
func (s *panelSession) countsLocked() map[string]Counts {
	agg := s.log.Aggregate()
	counts := make(map[string]Counts, len(s.buttons)+len(agg))
	for _, b := range s.buttons {
		counts[b.ID] = Counts{Label: b.Label}
	}
	for id, c := range agg {
		if cfg, ok := counts[id]; ok && cfg.Label != "" {
			c.Label = cfg.Label
		}
		counts[id] = c
	}
	return counts
}

// Fire records one client's press. Gates apply in order: direction and
// button validation, then locked, then cooldown.
func (m *Manager) Fire(ctx context.Context, panelID, clientID, buttonID, direction string) (Event, error) {
	if direction != DirectionMinus && direction != DirectionPlus {
		return Event{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	s, err := m.session(ctx, panelID)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	var button *Button
	for i := range s.buttons {
		if s.buttons[i].ID == buttonID {
			button = &s.buttons[i]
			break
		}
	}
	if button == nil {
		s.mu.Unlock()
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownButton, buttonID)
	}
	if s.locked {
		s.mu.Unlock()
		return Event{}, ErrLocked
	}
	if err := m.limiter.CheckAndRecord(limiterScope+panelID, clientID, s.cooldown, m.now()); err != nil {
		s.mu.Unlock()
		return Event{}, err
	}
	pressed := m.unixNow()
	ev := s.log.Append(func(seq int64) Event {
		return Event{
			Seq:       seq,
			ButtonID:  button.ID,
			Label:     button.Label,
			Direction: direction,
			ClientID:  clientID,
			Timestamp: pressed,
		}
	})
	s.updated = pressed
	s.rev++
	doc, rev := m.docLocked(s), s.rev
	s.mu.Unlock()

	if err := m.persist(ctx, s, doc, rev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// State returns presses with seq > since plus the current counts. A caller
// polling with its last seen seq never receives a press twice.
func (m *Manager) State(ctx context.Context, panelID string, since int64) (State, error) {
	s, err := m.session(ctx, panelID)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		PanelID:  s.panelID,
		Buttons:  append([]Button(nil), s.buttons...),
		Counts:   s.countsLocked(),
		Events:   s.log.Since(since),
		Total:    s.log.Len(),
		Cooldown: s.cooldown.Seconds(),
		Locked:   s.locked,
		Updated:  s.updated,
	}, nil
}

// Reset wipes every press and restarts sequence numbering. Cooldown
// records for the panel are dropped too; the button set stays.
func (m *Manager) Reset(ctx context.Context, panelID string) error {
	s, err := m.session(ctx, panelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.log.Reset()
	m.limiter.Reset(limiterScope + panelID)
	s.updated = m.unixNow()
	s.rev++
	doc, rev := m.docLocked(s), s.rev
	s.mu.Unlock()

	return m.persist(ctx, s, doc, rev)
}

// UpdateConfig applies the non-nil fields and returns the resulting config.
// Buttons must keep non-empty ids.
func (m *Manager) UpdateConfig(ctx context.Context, panelID string, upd ConfigUpdate) (Config, error) {
	for _, b := range upd.Buttons {
		if b.ID == "" {
			return Config{}, fmt.Errorf("%w: button id cannot be empty", ErrUnknownButton)
		}
	}

	s, err := m.session(ctx, panelID)
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	if upd.Buttons != nil {
		s.buttons = append([]Button(nil), upd.Buttons...)
	}
	if upd.Cooldown != nil && *upd.Cooldown >= 0 {
		s.cooldown = time.Duration(*upd.Cooldown * float64(time.Second))
	}
	if upd.Locked != nil {
		s.locked = *upd.Locked
	}
	s.updated = m.unixNow()
	s.rev++
	doc, rev := m.docLocked(s), s.rev
	cfg := s.configLocked()
	s.mu.Unlock()

	if err := m.persist(ctx, s, doc, rev); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetLocked flips the press gate.
func (m *Manager) SetLocked(ctx context.Context, panelID string, locked bool) (Config, error) {
	return m.UpdateConfig(ctx, panelID, ConfigUpdate{Locked: &locked})
}

// Config returns the current panel configuration.
func (m *Manager) Config(ctx context.Context, panelID string) (Config, error) {
	s, err := m.session(ctx, panelID)
	if err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked(), nil
}

// ListIDs returns every known panel id: loaded sessions, persisted panels,
// and any extra ids the caller always wants present.
func (m *Manager) ListIDs(ctx context.Context, extra ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range m.reg.Loaded() {
		seen[id] = struct{}{}
	}
	stored, err := m.store.List(ctx, store.KindButtons)
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
