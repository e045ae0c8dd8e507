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

// SaveChallenge keeps the id, answer field and cookies of a CAPTCHA so a
// later run can answer it. The image is not stored.
func (s *Store) SaveChallenge(ctx context.Context, site string, ch session.Challenge) error {
	cookies, err := json.Marshal(ch.Cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO challenges (site, sid, field, cookies, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(site) DO UPDATE SET sid = excluded.sid, field = excluded.field,
		   cookies = excluded.cookies, created_at = excluded.created_at`,
		site, ch.SID, ch.Field, string(cookies), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save challenge %s: %w", site, err)
	}
	return nil
}

// LoadChallenge returns the stored challenge of site, or nil when there is none.
func (s *Store) LoadChallenge(ctx context.Context, site string) (*session.Challenge, error) {
	var (
		ch      session.Challenge
		cookies string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT sid, field, cookies FROM challenges WHERE site = ?", site,
	).Scan(&ch.SID, &ch.Field, &cookies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge %s: %w", site, err)
	}
	if err := json.Unmarshal([]byte(cookies), &ch.Cookies); err != nil {
		return nil, fmt.Errorf("decode challenge cookies of %s: %w", site, err)
	}
	return &ch, nil
}

// DeleteChallenge forgets the stored challenge of site.
func (s *Store) DeleteChallenge(ctx context.Context, site string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM challenges WHERE site = ?", site); err != nil {
		return fmt.Errorf("delete challenge %s: %w", site, err)
	}
	return nil
}
