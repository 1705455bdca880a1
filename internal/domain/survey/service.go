// Package survey implements open-ended question forms: one question per
// form, an append-only response log, and per-client cooldown and repeat
// gates.
package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hilite-live/hilite/internal/domain/eventlog"
	"github.com/hilite-live/hilite/internal/ratelimit"
	"github.com/hilite-live/hilite/internal/registry"
	"github.com/hilite-live/hilite/internal/store"
)

const (
	maxAnswerRunes   = 1024
	maxQuestionRunes = 280

	limiterScope = "form/"
)

// Options tune form defaults.
type Options struct {
	// DefaultQuestion seeds forms that have never been configured.
	DefaultQuestion string
}

// Manager owns every form session in the process.
type Manager struct {
	store   store.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	reg     *registry.Registry[*formSession]

	defaultQuestion string
	now             func() time.Time
}

// clientSet is the response-log aggregate: the set of clients that have
// submitted, which is all the repeat gate needs.
type clientSet map[string]struct{}

type formSession struct {
	formID string

	mu          sync.Mutex
	log         *eventlog.Log[Response, clientSet]
	question    string
	cooldown    time.Duration
	allowRepeat bool
	locked      bool
	updated     float64
	rev         uint64

	saveMu   sync.Mutex
	savedRev uint64
}

// NewManager creates a survey manager.
func NewManager(st store.Store, limiter *ratelimit.Limiter, logger *slog.Logger, opts Options) *Manager {
	question := opts.DefaultQuestion
	if question == "" {
		question = "Share your thoughts with us."
	}
	m := &Manager{
		store:           st,
		limiter:         limiter,
		logger:          logger,
		defaultQuestion: question,
		now:             time.Now,
	}
	m.reg = registry.New(m.loadSession)
	return m
}

func newResponseLog() *eventlog.Log[Response, clientSet] {
	return eventlog.New(
		func() clientSet { return clientSet{} },
		func(a clientSet, r Response) clientSet {
			a[r.ClientID] = struct{}{}
			return a
		},
	)
}

func (m *Manager) loadSession(ctx context.Context, formID string) (*formSession, error) {
	s := &formSession{
		formID:   formID,
		log:      newResponseLog(),
		question: m.defaultQuestion,
	}
	data, err := m.store.Load(ctx, store.KindForm, formID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("failed to load form state", "form", formID, "error", err)
		}
		return s, nil
	}
	var doc formDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		m.logger.Error("failed to parse form state", "form", formID, "error", err)
		return s, nil
	}
	if doc.Question != "" {
		s.question = doc.Question
	}
	s.cooldown = secondsToDuration(doc.Cooldown)
	s.allowRepeat = doc.AllowRepeat
	s.locked = doc.Locked
	s.updated = doc.Updated
	s.log.Restore(doc.Responses, doc.NextSeq)
	for clientID, last := range doc.LastByClient {
		m.limiter.Seed(limiterScope+formID, clientID, unixToTime(last))
	}
	return s, nil
}

func (m *Manager) session(ctx context.Context, formID string) (*formSession, error) {
	return m.reg.Get(ctx, formID)
}

func (m *Manager) unixNow() float64 {
	return float64(m.now().UnixNano()) / float64(time.Second)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func durationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

func unixToTime(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// docLocked snapshots the persisted form under the session lock.
func (m *Manager) docLocked(s *formSession) formDoc {
	lastByClient := make(map[string]float64)
	for clientID, last := range m.limiter.Snapshot(limiterScope + s.formID) {
		lastByClient[clientID] = timeToUnix(last)
	}
	return formDoc{
		FormID:       s.formID,
		Question:     s.question,
		Cooldown:     durationToSeconds(s.cooldown),
		AllowRepeat:  s.allowRepeat,
		Locked:       s.locked,
		Responses:    s.log.Events(),
		LastByClient: lastByClient,
		NextSeq:      s.log.NextSeq(),
		Updated:      s.updated,
	}
}

func (m *Manager) persist(ctx context.Context, s *formSession, doc formDoc, rev uint64) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding form state: %w", err)
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if rev <= s.savedRev {
		return nil
	}
	if err := m.store.Save(ctx, store.KindForm, s.formID, data); err != nil {
		return fmt.Errorf("saving form state: %w", err)
	}
	s.savedRev = rev
	return nil
}

func (s *formSession) configLocked() Config {
	return Config{
		FormID:      s.formID,
		Question:    s.question,
		Cooldown:    durationToSeconds(s.cooldown),
		AllowRepeat: s.allowRepeat,
		Locked:      s.locked,
	}
}

// Submit records one client's answer. Gates apply in order: locked, then
// cooldown, then the repeat check. The answer is whitespace-trimmed and
// truncated to 1024 runes.
func (m *Manager) Submit(ctx context.Context, formID, clientID, answer string) (Response, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Response{}, ErrEmptyAnswer
	}
	if runes := []rune(answer); len(runes) > maxAnswerRunes {
		answer = string(runes[:maxAnswerRunes])
	}

	s, err := m.session(ctx, formID)
	if err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return Response{}, ErrLocked
	}
	if err := m.limiter.CheckAndRecord(limiterScope+formID, clientID, s.cooldown, m.now()); err != nil {
		s.mu.Unlock()
		return Response{}, err
	}
	if !s.allowRepeat {
		if _, ok := s.log.Aggregate()[clientID]; ok {
			s.mu.Unlock()
			return Response{}, ErrDuplicate
		}
	}
	submitted := m.unixNow()
	resp := s.log.Append(func(seq int64) Response {
		return Response{
			Seq:       seq,
			ClientID:  clientID,
			Answer:    answer,
			Question:  s.question,
			Submitted: submitted,
		}
	})
	s.updated = submitted
	s.rev++
	doc, rev := m.docLocked(s), s.rev
	s.mu.Unlock()

	if err := m.persist(ctx, s, doc, rev); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Results returns responses with seq > since plus the config echo. A
// caller polling with its last seen seq never receives a response twice.
func (m *Manager) Results(ctx context.Context, formID string, since int64) (Results, error) {
	s, err := m.session(ctx, formID)
	if err != nil {
		return Results{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Results{
		FormID:      s.formID,
		Question:    s.question,
		Cooldown:    durationToSeconds(s.cooldown),
		AllowRepeat: s.allowRepeat,
		Locked:      s.locked,
		Responses:   s.log.Since(since),
		Total:       s.log.Len(),
		Updated:     s.updated,
	}, nil
}

// Clear wipes every response and restarts sequence numbering. Cooldown
// records for the form are dropped too. Works on locked forms; clearing is
// a facilitator action.
func (m *Manager) Clear(ctx context.Context, formID string) error {
	s, err := m.session(ctx, formID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.log.Reset()
	m.limiter.Reset(limiterScope + formID)
	s.updated = m.unixNow()
	s.rev++
	doc, rev := m.docLocked(s), s.rev
	s.mu.Unlock()

	return m.persist(ctx, s, doc, rev)
}

// UpdateConfig applies the non-nil fields and returns the resulting config.
func (m *Manager) UpdateConfig(ctx context.Context, formID string, upd ConfigUpdate) (Config, error) {
	if upd.Question != nil {
		q := strings.TrimSpace(*upd.Question)
		if q == "" || len([]rune(q)) > maxQuestionRunes {
			return Config{}, fmt.Errorf("%w: must be 1-%d characters", ErrInvalidQuestion, maxQuestionRunes)
		}
		*upd.Question = q
	}

	s, err := m.session(ctx, formID)
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	if upd.Question != nil {
		s.question = *upd.Question
	}
	if upd.Cooldown != nil && *upd.Cooldown >= 0 {
		s.cooldown = secondsToDuration(*upd.Cooldown)
	}
	if upd.AllowRepeat != nil {
		s.allowRepeat = *upd.AllowRepeat
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

// SetLocked flips the submission gate.
func (m *Manager) SetLocked(ctx context.Context, formID string, locked bool) (Config, error) {
	return m.UpdateConfig(ctx, formID, ConfigUpdate{Locked: &locked})
}

// Config returns the current form configuration.
func (m *Manager) Config(ctx context.Context, formID string) (Config, error) {
	s, err := m.session(ctx, formID)
	if err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked(), nil
}

// ListIDs returns every known form id: loaded sessions, persisted forms,
// and any extra ids the caller always wants present.
func (m *Manager) ListIDs(ctx context.Context, extra ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range m.reg.Loaded() {
		seen[id] = struct{}{}
	}
	stored, err := m.store.List(ctx, store.KindForm)
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
