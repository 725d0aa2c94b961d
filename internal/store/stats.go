package store

import (
	"context"
)

// Stats summarises the gateway's stored state.
type Stats struct {
	Memories          int            `json:"memories"`
	Tombstoned        int            `json:"tombstoned"`
	ByType            map[string]int `json:"by_type"`
	ByBranch          map[string]int `json:"by_branch"`
	PendingCandidates int            `json:"pending_candidates"`
	Clients           int            `json:"clients"`
	AuditEvents       int            `json:"audit_events"`
}

// Stats computes summary counts across all tables.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByType:   map[string]int{},
		ByBranch: map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&st.Memories); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE deleted_at IS NOT NULL`).Scan(&st.Tombstoned); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM memories WHERE deleted_at IS NULL GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		st.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	branchRows, err := s.db.QueryContext(ctx,
		`SELECT branch, COUNT(*) FROM memories WHERE deleted_at IS NULL GROUP BY branch ORDER BY branch`)
	if err != nil {
		return nil, err
	}
	defer branchRows.Close()
	for branchRows.Next() {
		var b string
		var n int
		if err := branchRows.Scan(&b, &n); err != nil {
			return nil, err
		}
		st.ByBranch[b] = n
	}
	if err := branchRows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candidates WHERE status = 'proposed'`).Scan(&st.PendingCandidates); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&st.Clients); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&st.AuditEvents); err != nil {
		return nil, err
	}

	return st, nil
}
