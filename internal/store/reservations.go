package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/germz92/gearbook/internal/availability"
	"github.com/germz92/gearbook/internal/model"
)

// ErrGearNotFound is returned when a reservation action names a gear unit
// that does not exist (or was deleted).
var ErrGearNotFound = errors.New("gear does not exist")

// ConflictError reports that a checkout was refused because the gear is
// reserved for overlapping dates. The reason is shown to the operator.
type ConflictError struct {
	GearID string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("gear %s unavailable: %s", e.GearID, e.Reason)
}

// Checkout reserves a unit for an event. The whole read-check-insert runs in
// one transaction so concurrent checkouts for the same unit serialize; the
// server is the arbiter even when clients pre-checked availability.
func Checkout(ctx context.Context, db *sql.DB, gearID, eventID string, rng model.DateRange, quantity int) (*model.Reservation, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("checking out gear: %w", err)
	}
	if quantity < 1 {
		quantity = 1
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning checkout: %w", err)
	}
	defer tx.Rollback()

	unit, err := getUnitTx(ctx, tx, gearID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("gear %s: %w", gearID, ErrGearNotFound)
	}
	if unit.Status == model.StatusMaintenance || unit.Status == model.StatusRetired {
		return nil, &ConflictError{GearID: gearID, Reason: fmt.Sprintf("gear is %s", unit.Status)}
	}

	check := availability.Check{Range: rng, EventID: eventID}
	avail := availability.AvailableQuantity(unit, check)
	if avail < quantity {
		conflicts := availability.Conflicts(unit, check)
		reason := fmt.Sprintf("only %d of %d available for %s", avail, quantity, rng)
		if len(conflicts) > 0 {
			reason = fmt.Sprintf("%s, reserved by %s", reason, conflicts[0].EventID)
		}
		return nil, &ConflictError{GearID: gearID, Reason: reason}
	}

	r := model.Reservation{
		ID:           uuid.NewString(),
		EventID:      eventID,
		CheckOutDate: rng.Start,
		CheckInDate:  rng.End,
		Quantity:     quantity,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO gear_reservations (id, gear_id, event_id, check_out, check_in, quantity)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, gearID, eventID, r.CheckOutDate.String(), r.CheckInDate.String(), quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting reservation: %w", err)
	}

	// Serialized units carry a coarse status so legacy clients that only
	// look at checked_out_by still see the holder.
	if !unit.Pooled() {
		_, err = tx.ExecContext(ctx,
			`UPDATE gear_units SET status = ?, checked_out_by = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.StatusCheckedOut, eventID, gearID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating gear status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing checkout: %w", err)
	}
	return &r, nil
}

// Checkin releases a unit's reservations for an event. Released rows stay in
// the ledger as history. A dated checkin releases exactly one matching
// reservation: an event can hold several independent claims on the same
// unit and window (two list items of a pooled unit), and returning one item
// must not free the others. A checkin without dates releases every claim
// the event still holds. Releasing gear that holds no matching reservation
// is a no-op, so repeated checkins are safe.
func Checkin(ctx context.Context, db *sql.DB, gearID, eventID string, rng model.DateRange) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning checkin: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE gear_reservations SET released_at = CURRENT_TIMESTAMP
	          WHERE gear_id = ? AND event_id = ? AND released_at IS NULL`
	args := []any{gearID, eventID}
	if !rng.IsZero() {
		query = `UPDATE gear_reservations SET released_at = CURRENT_TIMESTAMP
		         WHERE id = (
		             SELECT id FROM gear_reservations
		             WHERE gear_id = ? AND event_id = ? AND released_at IS NULL
		               AND check_out = ? AND check_in = ?
		             ORDER BY created_at LIMIT 1
		         )`
		args = append(args, rng.Start.String(), rng.End.String())
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("releasing reservations: %w", err)
	}

	// Drop the coarse status once the event holds nothing active.
	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gear_reservations
		 WHERE gear_id = ? AND event_id = ? AND released_at IS NULL`,
		gearID, eventID,
	).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("counting reservations: %w", err)
	}
	if remaining == 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE gear_units SET status = ?, checked_out_by = '', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND checked_out_by = ?`,
			model.StatusAvailable, gearID, eventID,
		)
		if err != nil {
			return fmt.Errorf("clearing gear status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing checkin: %w", err)
	}
	return nil
}

// getUnitTx loads a unit with its ledger inside a transaction.
func getUnitTx(ctx context.Context, tx *sql.Tx, id string) (*model.GearUnit, error) {
	unit := &model.GearUnit{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, label, category, serial, quantity, status, checked_out_by
		 FROM gear_units WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&unit.ID, &unit.Label, &unit.Category, &unit.Serial, &unit.Quantity,
		&unit.Status, &unit.CheckedOutBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting gear unit: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, event_id, check_out, check_in, quantity, released_at IS NOT NULL
		 FROM gear_reservations WHERE gear_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading reservation ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Reservation
		var checkOut, checkIn string
		var released bool
		if err := rows.Scan(&r.ID, &r.EventID, &checkOut, &checkIn, &r.Quantity, &released); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		if r.CheckOutDate, err = model.ParseDay(checkOut); err != nil {
			return nil, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		if r.CheckInDate, err = model.ParseDay(checkIn); err != nil {
			return nil, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		if released {
			unit.History = append(unit.History, r)
		} else {
			unit.Reservations = append(unit.Reservations, r)
		}
	}
	return unit, rows.Err()
}
