package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

// PreferenceStore persists per-user notification preferences as a single
// record. Writes replace the whole record: last write wins, no merging.
type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the stored preferences for a user, or nil if the user has
// never saved any. Absence is not an error.
func (s *PreferenceStore) Get(userID string) (*model.NotificationPreferences, error) {
	var (
		p          model.NotificationPreferences
		categories string
		quietOn    int
		rtl        int
		start, end sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT user_id, categories, quiet_hours_enabled, quiet_hours_start, quiet_hours_end, language_code, rtl_support, updated_at
		 FROM notification_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &categories, &quietOn, &start, &end, &p.LanguageCode, &rtl, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
		return nil, fmt.Errorf("decode category map: %w", err)
	}
	p.QuietHoursEnabled = quietOn != 0
	p.RTLSupport = rtl != 0
	p.QuietHoursStart = start.String
	p.QuietHoursEnd = end.String
	return &p, nil
}

// Put stores the full preference record, creating or replacing it, and
// returns the stored copy with its updated timestamp.
func (s *PreferenceStore) Put(p *model.NotificationPreferences) (*model.NotificationPreferences, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("preferences missing user_id")
	}
	if p.Categories == nil {
		p.Categories = map[model.CategoryKey]bool{}
	}
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return nil, fmt.Errorf("encode category map: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO notification_preferences (user_id, categories, quiet_hours_enabled, quiet_hours_start, quiet_hours_end, language_code, rtl_support, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   categories = excluded.categories,
		   quiet_hours_enabled = excluded.quiet_hours_enabled,
		   quiet_hours_start = excluded.quiet_hours_start,
		   quiet_hours_end = excluded.quiet_hours_end,
		   language_code = excluded.language_code,
		   rtl_support = excluded.rtl_support,
		   updated_at = excluded.updated_at`,
		p.UserID, string(categories), boolInt(p.QuietHoursEnabled), nullable(p.QuietHoursStart), nullable(p.QuietHoursEnd), p.LanguageCode, boolInt(p.RTLSupport), now,
	)
	if err != nil {
		return nil, fmt.Errorf("put notification preferences: %w", err)
	}
	return s.Get(p.UserID)
}

// Delete removes a user's preference record.
func (s *PreferenceStore) Delete(userID string) error {
	_, err := s.db.Exec(`DELETE FROM notification_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete notification preferences: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
