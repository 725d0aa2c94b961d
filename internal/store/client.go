package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/memgate/memgate/internal/model"
)

// PutClient creates or replaces a client registration.
func (s *SQLiteStore) PutClient(ctx context.Context, c *model.Client) error {
	if c.ID == "" {
		return fmt.Errorf("%w: client id is empty", model.ErrInvalidArgument)
	}
	if c.SensitivityMax.Rank() > model.SensitivityHigh.Rank() {
		return fmt.Errorf("%w: unknown sensitivity %q", model.ErrInvalidArgument, c.SensitivityMax)
	}

	enabled := 0
	if c.Enabled {
		enabled = 1
	}
	var lastAccess *string
	if c.LastAccess != nil {
		t := c.LastAccess.UTC().Format(time.RFC3339)
		lastAccess = &t
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, branches, types, sensitivity_max, enabled, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			branches = excluded.branches,
			types = excluded.types,
			sensitivity_max = excluded.sensitivity_max,
			enabled = excluded.enabled`,
		c.ID, c.Name, mustJSON(c.Branches), mustJSON(c.Types),
		string(c.SensitivityMax), enabled, lastAccess)
	return err
}

// GetClient returns a client by id.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, branches, types, sensitivity_max, enabled, last_access FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns all registered clients ordered by id.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, branches, types, sensitivity_max, enabled, last_access FROM clients ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchClientAccess stamps the client's last access time.
func (s *SQLiteStore) TouchClientAccess(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `UPDATE clients SET last_access = ? WHERE id = ?`, now, id)
	return err
}

func scanClient(row scanner) (model.Client, error) {
	var c model.Client
	var branches, types string
	var enabled int
	var lastAccess sql.NullString

	err := row.Scan(&c.ID, &c.Name, &branches, &types, &c.SensitivityMax, &enabled, &lastAccess)
	if err != nil {
		return c, err
	}
	c.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(branches), &c.Branches); err != nil {
		return c, fmt.Errorf("decode branches for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(types), &c.Types); err != nil {
		return c, fmt.Errorf("decode types for %s: %w", c.ID, err)
	}
	if lastAccess.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccess.String)
		c.LastAccess = &t
	}
	return c, nil
}
