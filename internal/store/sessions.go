package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmunix/scrapearr/internal/session"
)

// SaveSession stores snap, replacing the previous snapshot of the site.
func (s *Store) SaveSession(ctx context.Context, snap session.Snapshot) error {
	cookies, err := json.Marshal(snap.Cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (site, url, cookies, authenticated, saved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(site) DO UPDATE SET url = excluded.url, cookies = excluded.cookies,
		   authenticated = excluded.authenticated, saved_at = excluded.saved_at`,
		snap.Site, snap.URL, string(cookies), snap.Authenticated, snap.SavedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.Site, err)
	}
	return nil
}

// LoadSession returns the stored snapshot of site, or nil when there is none.
func (s *Store) LoadSession(ctx context.Context, site string) (*session.Snapshot, error) {
	var (
		snap    = session.Snapshot{Site: site}
		cookies string
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT url, cookies, authenticated, saved_at FROM sessions WHERE site = ?", site,
	).Scan(&snap.URL, &cookies, &snap.Authenticated, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", site, err)
	}
	if err := json.Unmarshal([]byte(cookies), &snap.Cookies); err != nil {
		return nil, fmt.Errorf("decode cookies of %s: %w", site, err)
	}
	snap.SavedAt = time.Unix(0, savedAt).UTC()
	return &snap, nil
}

// DeleteSession forgets the stored snapshot of site.
func (s *Store) DeleteSession(ctx context.Context, site string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE site = ?", site); err != nil {
		return fmt.Errorf("delete session %s: %w", site, err)
	}
	return nil
}
