// Package store is the backend's persistence layer. Free functions over a
// *sql.DB, one file per aggregate.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/germz92/gearbook/internal/model"
)

// CreateGearUnit inserts a new unit. A missing ID is generated; a missing
// quantity defaults to 1.
func CreateGearUnit(ctx context.Context, db *sql.DB, unit model.GearUnit) (*model.GearUnit, error) {
	if unit.Label == "" {
		return nil, fmt.Errorf("gear label is required")
	}
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if unit.Quantity < 1 {
		unit.Quantity = 1
	}
	if unit.Status == "" {
		unit.Status = model.StatusAvailable
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO gear_units (id, label, category, serial, quantity, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		unit.ID, unit.Label, unit.Category, unit.Serial, unit.Quantity, unit.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating gear unit: %w", err)
	}

	return GetGearUnit(ctx, db, unit.ID)
}

// GetGearUnit returns a unit with its full reservation ledger, or nil if it
// does not exist.
func GetGearUnit(ctx context.Context, db *sql.DB, id string) (*model.GearUnit, error) {
	unit := &model.GearUnit{}
	var photoMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, label, category, serial, quantity, status, checked_out_by, photo_mime
		 FROM gear_units WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&unit.ID, &unit.Label, &unit.Category, &unit.Serial, &unit.Quantity,
		&unit.Status, &unit.CheckedOutBy, &photoMime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting gear unit: %w", err)
	}
	unit.PhotoMIME = photoMime.String

	if err := attachLedger(ctx, db, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ListGearUnits returns all non-deleted units with their ledgers, ordered
// by label. This backs GET /api/gear-inventory, so the availability
// calculator on the client sees the same evidence the server arbitrates on.
func ListGearUnits(ctx context.Context, db *sql.DB) ([]model.GearUnit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, label, category, serial, quantity, status, checked_out_by, photo_mime
		 FROM gear_units WHERE deleted_at IS NULL ORDER BY label`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing gear units: %w", err)
	}
	defer rows.Close()

	var units []model.GearUnit
	for rows.Next() {
		var unit model.GearUnit
		var photoMime sql.NullString
		if err := rows.Scan(&unit.ID, &unit.Label, &unit.Category, &unit.Serial,
			&unit.Quantity, &unit.Status, &unit.CheckedOutBy, &photoMime); err != nil {
			return nil, fmt.Errorf("scanning gear unit: %w", err)
		}
		unit.PhotoMIME = photoMime.String
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range units {
		if err := attachLedger(ctx, db, &units[i]); err != nil {
			return nil, err
		}
	}
	return units, nil
}

// UpdateGearUnit updates a unit's metadata.
func UpdateGearUnit(ctx context.Context, db *sql.DB, id, label, category, serial string, quantity int, status string) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	_, err := db.ExecContext(ctx,
		`UPDATE gear_units SET label = ?, category = ?, serial = ?, quantity = ?, status = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		label, category, serial, quantity, status, id,
	)
	if err != nil {
		return fmt.Errorf("updating gear unit: %w", err)
	}
	return nil
}

// DeleteGearUnit soft-deletes a unit. Its reservation ledger is retained.
func DeleteGearUnit(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE gear_units SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting gear unit: %w", err)
	}
	return nil
}

// SetGearPhoto stores a unit's photo.
func SetGearPhoto(ctx context.Context, db *sql.DB, id string, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE gear_units SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting gear photo: %w", err)
	}
	return nil
}

// GetGearPhoto returns a unit's photo bytes and MIME type.
func GetGearPhoto(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM gear_units WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting gear photo: %w", err)
	}
	return photo, mime.String, nil
}

// attachLedger loads a unit's active reservations and released history.
func attachLedger(ctx context.Context, db *sql.DB, unit *model.GearUnit) error {
	rows, err := db.QueryContext(ctx,
		`SELECT id, event_id, check_out, check_in, quantity, released_at IS NOT NULL
		 FROM gear_reservations WHERE gear_id = ? ORDER BY check_out, created_at`, unit.ID,
	)
	if err != nil {
		return fmt.Errorf("loading reservation ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Reservation
		var checkOut, checkIn string
		var released bool
		if err := rows.Scan(&r.ID, &r.EventID, &checkOut, &checkIn, &r.Quantity, &released); err != nil {
			return fmt.Errorf("scanning reservation: %w", err)
		}
		if r.CheckOutDate, err = model.ParseDay(checkOut); err != nil {
			return fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		if r.CheckInDate, err = model.ParseDay(checkIn); err != nil {
			return fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		if released {
			unit.History = append(unit.History, r)
		} else {
			unit.Reservations = append(unit.Reservations, r)
		}
	}
	return rows.Err()
}
