package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/backoffice/internal/action"
)

// RecordAction appends a finished request to the journal.
// Uses ON CONFLICT(request_id) DO NOTHING - recording the same request
// twice is silently ignored. Implements action.Journal.
func (s *Store) RecordAction(ctx context.Context, e action.Entry) error {
	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	partial := 0
	if e.Partial {
		partial = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log
		(request_id, page, action, record_id, status, failed_step, partial, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`,
		e.RequestID,
		e.Page,
		e.Action,
		e.RecordID,
		e.Status,
		e.FailedStep,
		partial,
		e.Error,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record action %s: %w", e.RequestID, err)
	}
	return nil
}

// ActionQuery narrows ListActions.
type ActionQuery struct {
	Page        string
	PartialOnly bool

	// Limit keeps the most recent n entries; 0 means all.
	Limit int
}

// ListActions returns journal entries oldest first.
func (s *Store) ListActions(ctx context.Context, q ActionQuery) ([]action.Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.Page != "" {
		where = append(where, "page = ?")
		args = append(args, q.Page)
	}
	if q.PartialOnly {
		where = append(where, "partial = 1")
	}

	const cols = `request_id, page, action, record_id, status, failed_step, partial, error, at`
	query := `SELECT seq, ` + cols + ` FROM action_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Limit > 0 {
		// newest n, then back to oldest first
		query = `SELECT ` + cols + ` FROM (` + query + ` ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`
		args = append(args, q.Limit)
	} else {
		query = `SELECT ` + cols + ` FROM (` + query + `) ORDER BY seq ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []action.Entry
	for rows.Next() {
		var (
			e       action.Entry
			partial int
			at      string
		)
		if err := rows.Scan(&e.RequestID, &e.Page, &e.Action, &e.RecordID, &e.Status, &e.FailedStep, &partial, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("list actions: scan: %w", err)
		}
		e.Partial = partial == 1
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("list actions: bad timestamp %q: %w", at, err)
		}
		e.At = ts
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return out, nil
}
