package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dunamismax/imaginify/internal/cdn"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/dunamismax/imaginify/internal/transform"
	"github.com/dunamismax/imaginify/internal/upload"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

type Config struct {
	TTL         time.Duration
	QuietWindow time.Duration
}

// Manager owns the live editing sessions of the process.
type Manager struct {
	store  store.ImageStore
	urls   cdn.Builder
	ttl    time.Duration
	quiet  time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(imageStore store.ImageStore, urls cdn.Builder, cfg Config, logger zerolog.Logger) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	quiet := cfg.QuietWindow
	if quiet <= 0 {
		quiet = transform.DefaultQuietWindow
	}
	return &Manager{
		store:    imageStore,
		urls:     urls,
		ttl:      ttl,
		quiet:    quiet,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for owner. With existing set the session edits
// that record; otherwise it builds a new image of the given kind.
func (m *Manager) Create(owner string, kind domain.TransformationType, existing *domain.ImageRecord) (*Session, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported transformation type %q", domain.ErrValidation, kind)
	}

	id := uuid.NewString()
	s := &Session{
		ID:     id,
		Owner:  owner,
		Action: domain.SessionActionAdd,
		Kind:   kind,
		store:  m.store,
		urls:   m.urls,
		quiet:  m.quiet,
		logger: m.logger.With().Str("session_id", id).Logger(),
		image:  domain.ImageRecord{TransformationType: kind},
	}

	var committed *domain.Transformations
	if existing != nil {
		if existing.Owner != owner {
			return nil, fmt.Errorf("%w: image %s belongs to another user", domain.ErrForbidden, existing.ID)
		}
		if existing.TransformationType != kind {
			return nil, fmt.Errorf("%w: image %s is a %s image", domain.ErrValidation, existing.ID, existing.TransformationType)
		}
		s.Action = domain.SessionActionUpdate
		s.image = *existing
		if existing.Config != nil {
			c := existing.Config.Clone()
			s.image.Config = &c
			committed = &c
		}
		s.form = Form{
			Title:       existing.Title,
			AspectRatio: existing.AspectRatio,
			Color:       existing.Color,
			Prompt:      existing.Prompt,
			AssetID:     existing.AssetID,
		}
	}

	s.reconciler = transform.NewReconciler(kind, committed, m.quiet)
	s.coordinator = upload.NewCoordinator(s, s.logger)
	if s.image.AssetID != "" {
		s.seedFieldlessKind()
	}

	now := m.now()
	s.touch(now, m.ttl)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug().Str("session_id", id).Str("owner", owner).Str("type", string(kind)).Str("action", s.Action).Msg("session created")
	return s, nil
}

// Get returns a live session owned by owner and extends its lifetime.
func (m *Manager) Get(owner, id string) (*Session, error) {
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.expired(now) {
		delete(m.sessions, id)
		ok = false
		defer s.Close()
	}
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if s.Owner != owner {
		return nil, fmt.Errorf("%w: session %s belongs to another user", domain.ErrForbidden, id)
	}
	s.touch(now, m.ttl)
	return s, nil
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.expired(now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug().Int("expired", n).Msg("swept editing sessions")
			}
		}
	}
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
