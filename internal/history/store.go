package history

import (
	"context"
	"encoding/json"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// DefaultListLimit caps List when the caller does not provide a limit.
const DefaultListLimit = domain.HistoryCapacity

// Store keeps the bounded, per-user record of completed generations. Entries
// are immutable; the only writes are the insert-with-eviction at completion
// time and explicit user deletes.
type Store struct {
	SQL infra.SQLExecutor
}

func New(sq infra.SQLExecutor) *Store {
	return &Store{SQL: sq}
}

// Append inserts the entry and evicts the oldest rows past capacity in one
// atomic statement. Returns the number of evicted entries so the caller can
// emit an eviction notice only when one actually occurred.
func (s *Store) Append(ctx context.Context, entry domain.HistoryEntry) (int, error) {
	finalURLs, err := json.Marshal(entry.FinalURLs)
	if err != nil {
		return 0, fmt.Errorf("history: encode final urls: %w", err)
	}
	var evicted int
	err = s.SQL.QueryRow(ctx, sqlinline.QAppendHistory,
		entry.UserID,
		entry.JobID,
		string(entry.Module),
		entry.PreviewURL,
		finalURLs,
		entry.CreditCost,
		domain.HistoryCapacity,
	).Scan(&evicted)
	if err != nil {
		return 0, fmt.Errorf("history: append: %w", err)
	}
	return evicted, nil
}

// List returns the newest entries first, optionally filtered by module. The
// read is non-blocking and restartable; there is no subscription semantics.
func (s *Store) List(ctx context.Context, userID string, limit int, module domain.Module) ([]domain.HistoryEntry, error) {
	if limit <= 0 || limit > domain.HistoryCapacity {
		limit = DefaultListLimit
	}
	rows, err := s.SQL.Query(ctx, sqlinline.QListHistory, userID, limit, string(module))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var finalURLs []byte
		if err := rows.Scan(
			&entry.UserID,
			&entry.JobID,
			&entry.Module,
			&entry.PreviewURL,
			&finalURLs,
			&entry.CreditCost,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if len(finalURLs) > 0 {
			if err := json.Unmarshal(finalURLs, &entry.FinalURLs); err != nil {
				return nil, fmt.Errorf("history: decode final urls: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes a single entry at the user's request, independent of
// automatic eviction.
func (s *Store) Delete(ctx context.Context, userID, jobID string) error {
	tag, err := s.SQL.Exec(ctx, sqlinline.QDeleteHistory, userID, jobID)
	if err != nil {
		return fmt.Errorf("history: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
