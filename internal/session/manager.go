package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Store persists session snapshots between runs.
type Store interface {
	SaveSession(ctx context.Context, snap Snapshot) error
	LoadSession(ctx context.Context, site string) (*Snapshot, error)
}

// Manager is the process-wide registry of sessions by site.
type Manager struct {
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty registry.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log.With("component", "sessions"), sessions: make(map[string]*Session)}
}

// Add registers s, replacing any session for the same site.
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Site()] = s
}

// Get returns the session for site.
func (m *Manager) Get(site string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[site]
	return s, ok
}

// Sites lists registered sites in name order.
func (m *Manager) Sites() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sites := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		sites = append(sites, name)
	}
	sort.Strings(sites)
	return sites
}

// Load restores every session that has a stored snapshot. Missing or
// mismatched snapshots are skipped.
func (m *Manager) Load(ctx context.Context, store Store) error {
	var errs []error
	for _, site := range m.Sites() {
		s, _ := m.Get(site)
		snap, err := store.LoadSession(ctx, site)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", site, err))
			continue
		}
		if snap == nil {
			continue
		}
		if err := s.Restore(*snap); err != nil {
			m.log.Warn("ignoring stored session", "site", site, "error", err)
			continue
		}
		m.log.Debug("session restored", "site", site, "cookies", len(snap.Cookies))
	}
	return errors.Join(errs...)
}

// Save stores a snapshot of every authenticated session.
func (m *Manager) Save(ctx context.Context, store Store) error {
	var errs []error
	for _, site := range m.Sites() {
		s, _ := m.Get(site)
		if !s.Authenticated() {
			continue
		}
		if err := store.SaveSession(ctx, s.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", site, err))
		}
	}
	return errors.Join(errs...)
}
