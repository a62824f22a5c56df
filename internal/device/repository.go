package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ShapeRepository persists the device directory shape across restarts.
// Attribute values are deliberately excluded: they are cheap to refetch and
// stale values are worse than absent ones.
type ShapeRepository interface {
	// Save upserts the given shapes in one transaction.
	Save(ctx context.Context, shapes []Shape) error

	// Load returns all persisted shapes.
	Load(ctx context.Context) ([]Shape, error)

	// DeleteAll removes every persisted shape.
	DeleteAll(ctx context.Context) error
}

// SQLiteShapeRepository implements ShapeRepository using SQLite.
type SQLiteShapeRepository struct {
	db *sql.DB
}

// NewSQLiteShapeRepository creates a new SQLite-backed shape repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteShapeRepository(db *sql.DB) *SQLiteShapeRepository {
	return &SQLiteShapeRepository{db: db}
}

// Save upserts the given shapes in one transaction.
func (r *SQLiteShapeRepository) Save(ctx context.Context, shapes []Shape) error {
	if len(shapes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO devices (
			id, name, type_hint, manufacturer, room_id, room_name,
			components, capabilities, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type_hint = excluded.type_hint,
			manufacturer = excluded.manufacturer,
			room_id = excluded.room_id,
			room_name = excluded.room_name,
			components = excluded.components,
			capabilities = excluded.capabilities,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range shapes {
		if s.ID == "" {
			return fmt.Errorf("%w: missing id", ErrInvalidShape)
		}

		componentsJSON, err := json.Marshal(s.Components)
		if err != nil {
			return fmt.Errorf("marshalling components: %w", err)
		}
		capsJSON, err := json.Marshal(s.Capabilities)
		if err != nil {
			return fmt.Errorf("marshalling capabilities: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			s.ID,
			s.Name,
			s.TypeHint,
			s.Manufacturer,
			s.RoomID,
			s.RoomName,
			string(componentsJSON),
			string(capsJSON),
			now,
		); err != nil {
			return fmt.Errorf("upserting device %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing shapes: %w", err)
	}
	return nil
}

// Load returns all persisted shapes.
func (r *SQLiteShapeRepository) Load(ctx context.Context) ([]Shape, error) {
	query := `
		SELECT id, name, type_hint, manufacturer, room_id, room_name,
			components, capabilities
		FROM devices
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying device shapes: %w", err)
	}
	defer rows.Close()

	var shapes []Shape
	for rows.Next() {
		var s Shape
		var componentsJSON, capsJSON string

		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.TypeHint,
			&s.Manufacturer,
			&s.RoomID,
			&s.RoomName,
			&componentsJSON,
			&capsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning device shape: %w", err)
		}

		if err := json.Unmarshal([]byte(componentsJSON), &s.Components); err != nil {
			return nil, fmt.Errorf("unmarshalling components: %w", err)
		}
		if err := json.Unmarshal([]byte(capsJSON), &s.Capabilities); err != nil {
			return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
		}

		shapes = append(shapes, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device shapes: %w", err)
	}

	return shapes, nil
}

// DeleteAll removes every persisted shape.
func (r *SQLiteShapeRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM devices"); err != nil {
		return fmt.Errorf("deleting device shapes: %w", err)
	}
	return nil
}
