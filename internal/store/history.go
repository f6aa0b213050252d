package store

import (
	"context"
	"fmt"
	"time"

	"postpilot/internal/history"
)

// HistoryStore is the SQLite history backend.
type HistoryStore struct {
	s *Store
}

var _ history.Store = (*HistoryStore)(nil)

// History returns the history backend sharing this database.
func (s *Store) History() *HistoryStore {
	return &HistoryStore{s: s}
}

// Add implements history.Store.
func (h *HistoryStore) Add(ctx context.Context, e history.Entry) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	tx, err := h.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (id, title, text, date) VALUES (?, ?, ?, ?)`,
		e.ID, e.Title, e.Text, e.Date.UnixMicro()); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY seq DESC LIMIT ?)`,
		history.Limit); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return tx.Commit()
}

// List implements history.Store.
func (h *HistoryStore) List(ctx context.Context) ([]history.Entry, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()

	rows, err := h.s.db.QueryContext(ctx,
		`SELECT id, title, text, date FROM history ORDER BY seq DESC LIMIT ?`, history.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e    history.Entry
			date int64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Text, &date); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Date = time.UnixMicro(date).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear implements history.Store.
func (h *HistoryStore) Clear(ctx context.Context) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if _, err := h.s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
