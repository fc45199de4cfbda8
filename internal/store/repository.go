package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
)

// AttributeValue is one persisted attribute report.
type AttributeValue struct {
	Address   string
	Name      string
	Value     float64
	UpdatedAt time.Time
}

// SQLiteRepository persists camera nodes and last attribute values.
// It implements camera.NodeStore.
type SQLiteRepository struct {
	db *sql.DB
}

var _ camera.NodeStore = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveNode inserts or updates a camera node. created_at is kept on update.
func (r *SQLiteRepository) SaveNode(ctx context.Context, n camera.Node) error {
	if n.ID == "" || n.Family == "" {
		return fmt.Errorf("%w: id and family are required", ErrInvalidNode)
	}

	var override sql.NullInt64
	if n.AuthOverride != nil {
		override = sql.NullInt64{Int64: int64(*n.AuthOverride), Valid: true}
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO camera_nodes (id, name, vendor_family, model, auth_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vendor_family = excluded.vendor_family,
			model = excluded.model,
			auth_override = excluded.auth_override,
			updated_at = excluded.updated_at`,
		n.ID, n.Name, string(n.Family), n.Model, override, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving camera node: %w", err)
	}
	return nil
}

// GetNode retrieves one camera node.
// Returns ErrNodeNotFound if it does not exist.
func (r *SQLiteRepository) GetNode(ctx context.Context, id string) (camera.Node, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, vendor_family, model, auth_override
		FROM camera_nodes
		WHERE id = ?`, id)

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return camera.Node{}, ErrNodeNotFound
	}
	if err != nil {
		return camera.Node{}, fmt.Errorf("querying camera node: %w", err)
	}
	return n, nil
}

// ListNodes returns every persisted camera node ordered by id.
func (r *SQLiteRepository) ListNodes(ctx context.Context) ([]camera.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, vendor_family, model, auth_override
		FROM camera_nodes
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying camera nodes: %w", err)
	}
	defer rows.Close()

	var nodes []camera.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning camera node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating camera nodes: %w", err)
	}
	return nodes, nil
}

// DeleteNode removes a camera node and its attribute values, including
// those of its motion entity.
func (r *SQLiteRepository) DeleteNode(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, "DELETE FROM camera_nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting camera node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNodeNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attribute_values WHERE address IN (?, ?)",
		id, camera.MotionAddress(id),
	); err != nil {
		return fmt.Errorf("deleting attribute values: %w", err)
	}
	return tx.Commit()
}

// SaveValue upserts the last value of one attribute.
func (r *SQLiteRepository) SaveValue(ctx context.Context, address, name string, value float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attribute_values (address, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		address, name, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving attribute value: %w", err)
	}
	return nil
}

// ListValues returns every persisted attribute value.
func (r *SQLiteRepository) ListValues(ctx context.Context) ([]AttributeValue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, name, value, updated_at
		FROM attribute_values
		ORDER BY address, name`)
	if err != nil {
		return nil, fmt.Errorf("querying attribute values: %w", err)
	}
	defer rows.Close()

	var values []AttributeValue
	for rows.Next() {
		var v AttributeValue
		var updated string
		if err := rows.Scan(&v.Address, &v.Name, &v.Value, &updated); err != nil {
			return nil, fmt.Errorf("scanning attribute value: %w", err)
		}
		v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated) //nolint:errcheck // zero time on legacy rows
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute values: %w", err)
	}
	return values, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (camera.Node, error) {
	var n camera.Node
	var family string
	var override sql.NullInt64
	if err := s.Scan(&n.ID, &n.Name, &family, &n.Model, &override); err != nil {
		return camera.Node{}, err
	}
	n.Family = camera.VendorFamily(family)
	if override.Valid {
		mode := camera.AuthMode(override.Int64)
		n.AuthOverride = &mode
	}
	return n, nil
}
