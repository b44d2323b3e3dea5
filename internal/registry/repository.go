package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
)

// Repository defines the interface for registry persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Key material is deliberately outside its scope: keys come from config or
// flags at runtime and are never written to disk.
type Repository interface {
	// Save inserts or replaces the persisted form of a record.
	Save(ctx context.Context, rec Record) error

	// List retrieves all persisted records.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record by unit id. Removing an unknown unit id is
	// not an error.
	Delete(ctx context.Context, unitID device.UnitID) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository and ensures
// the devices table exists. The db parameter should be an open SQLite
// connection.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS devices (
			unit_id     TEXT PRIMARY KEY,
			product_id  TEXT NOT NULL DEFAULT '',
			class       TEXT NOT NULL DEFAULT 'unknown',
			local_addr  TEXT NOT NULL DEFAULT '',
			last_seen   TEXT,
			cloud_known INTEGER NOT NULL DEFAULT 0
		)`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating devices table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Save inserts or replaces a record.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO devices (unit_id, product_id, class, local_addr, last_seen, cloud_known)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			product_id = excluded.product_id,
			class = excluded.class,
			local_addr = excluded.local_addr,
			last_seen = excluded.last_seen,
			cloud_known = excluded.cloud_known`

	_, err := r.db.ExecContext(ctx, query,
		string(rec.Identity.UnitID),
		rec.Identity.ProductID,
		string(rec.Identity.Class),
		rec.LocalAddr,
		nullableTime(rec.LastSeen),
		boolToInt(rec.CloudKnown),
	)
	if err != nil {
		return fmt.Errorf("saving device record: %w", err)
	}
	return nil
}

// List retrieves all persisted records.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT unit_id, product_id, class, local_addr, last_seen, cloud_known
		FROM devices
		ORDER BY unit_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying device records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device records: %w", err)
	}

	return records, nil
}

// Delete removes a record by unit id.
func (r *SQLiteRepository) Delete(ctx context.Context, unitID device.UnitID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE unit_id = ?", string(unitID))
	if err != nil {
		return fmt.Errorf("deleting device record: %w", err)
	}
	return nil
}

// scanRecord scans a rows result into a Record.
func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var unitID, productID, class string
	var lastSeen sql.NullString
	var cloudKnown int

	err := rows.Scan(&unitID, &productID, &class, &rec.LocalAddr, &lastSeen, &cloudKnown)
	if err != nil {
		return Record{}, err
	}

	rec.Identity = device.Identity{
		UnitID:    device.UnitID(unitID),
		ProductID: productID,
		Class:     device.Class(class),
	}
	rec.CloudKnown = cloudKnown != 0

	if lastSeen.Valid && lastSeen.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastSeen.String)
		if err != nil {
			return Record{}, fmt.Errorf("parsing last_seen: %w", err)
		}
		rec.LastSeen = t
	}

	return rec, nil
}

// nullableTime returns a sql.NullString for zero-able timestamps
// (as RFC3339 strings).
func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
