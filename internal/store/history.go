package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

// maxHistoryPerUser bounds the per-user delivery log; older entries are
// trimmed on insert.
const maxHistoryPerUser = 200

// HistoryStore persists a bounded per-user log of delivered notifications.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record appends a delivery entry and trims the user's log to its bound.
func (s *HistoryStore) Record(e model.HistoryEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO notification_history (id, user_id, title, body, category, url, delivery_timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Body, string(e.Category), nullable(e.URL), e.DeliveryTimestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record notification history: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM notification_history WHERE user_id = ? AND id NOT IN (
		   SELECT id FROM notification_history WHERE user_id = ?
		   ORDER BY delivery_timestamp DESC LIMIT ?)`,
		e.UserID, e.UserID, maxHistoryPerUser,
	)
	if err != nil {
		return fmt.Errorf("trim notification history: %w", err)
	}
	return nil
}

// ListByUser returns the newest entries first, capped at limit.
func (s *HistoryStore) ListByUser(userID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > maxHistoryPerUser {
		limit = maxHistoryPerUser
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, title, body, category, url, delivery_timestamp
		 FROM notification_history WHERE user_id = ?
		 ORDER BY delivery_timestamp DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var (
			e   model.HistoryEntry
			cat string
			url sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Body, &cat, &url, &e.DeliveryTimestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Category = model.CategoryKey(cat)
		e.URL = url.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes history entries older than the given time.
func (s *HistoryStore) Cleanup(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM notification_history WHERE delivery_timestamp < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup notification history: %w", err)
	}
	return nil
}
