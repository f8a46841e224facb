package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/germz92/gearbook/internal/db"
	"github.com/germz92/gearbook/internal/model"
)

func testRange(t *testing.T, start, end string) model.DateRange {
	t.Helper()
	s, err := model.ParseDay(start)
	if err != nil {
		t.Fatalf("parsing %q: %v", start, err)
	}
	e, err := model.ParseDay(end)
	if err != nil {
		t.Fatalf("parsing %q: %v", end, err)
	}
	return model.DateRange{Start: s, End: e}
}

func createUnit(t *testing.T, database *sql.DB, label string, quantity int) *model.GearUnit {
	t.Helper()
	unit, err := CreateGearUnit(context.Background(), database, model.GearUnit{
		Label:    label,
		Category: "Cameras",
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("CreateGearUnit: %v", err)
	}
	return unit
}

func TestCheckoutAndConflict(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Camera A", 1)

	r, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if r.EventID != "event-a" {
		t.Errorf("expected event-a, got %q", r.EventID)
	}

	// Overlapping checkout by another event must be refused.
	_, err = Checkout(ctx, database, unit.ID, "event-b", testRange(t, "2030-06-03", "2030-06-05"), 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.GearID != unit.ID {
		t.Errorf("conflict names gear %q, want %q", conflict.GearID, unit.ID)
	}

	// Non-overlapping dates go through.
	if _, err := Checkout(ctx, database, unit.ID, "event-b", testRange(t, "2030-06-04", "2030-06-06"), 1); err != nil {
		t.Fatalf("non-overlapping checkout: %v", err)
	}
}

func TestCheckoutSameEventExtends(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Camera A", 1)

	if _, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// The holding event's own reservation does not block it.
	if _, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-02", "2030-06-05"), 1); err != nil {
		t.Fatalf("same-event overlapping checkout: %v", err)
	}
}

func TestCheckoutSetsCoarseStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Camera A", 1)

	if _, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	got, err := GetGearUnit(ctx, database, unit.ID)
	if err != nil {
		t.Fatalf("GetGearUnit: %v", err)
	}
	if got.Status != model.StatusCheckedOut || got.CheckedOutBy != "event-a" {
		t.Errorf("expected checked_out by event-a, got %q by %q", got.Status, got.CheckedOutBy)
	}
	if len(got.Reservations) != 1 {
		t.Errorf("expected 1 active reservation, got %d", len(got.Reservations))
	}
}

func TestPooledCheckoutExhaustsPool(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "SD Cards", 3)

	rng := testRange(t, "2030-06-01", "2030-06-03")
	if _, err := Checkout(ctx, database, unit.ID, "event-a", rng, 2); err != nil {
		t.Fatalf("Checkout qty 2: %v", err)
	}
	if _, err := Checkout(ctx, database, unit.ID, "event-b", rng, 1); err != nil {
		t.Fatalf("Checkout qty 1: %v", err)
	}

	_, err := Checkout(ctx, database, unit.ID, "event-c", rng, 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError once the pool is exhausted, got %v", err)
	}

	// Pooled units keep the available status, holders live in the ledger.
	got, _ := GetGearUnit(ctx, database, unit.ID)
	if got.Status != model.StatusAvailable {
		t.Errorf("pooled unit status = %q, want available", got.Status)
	}
}

func TestCheckinReleasesToHistory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Camera A", 1)
	rng := testRange(t, "2030-06-01", "2030-06-03")

	if _, err := Checkout(ctx, database, unit.ID, "event-a", rng, 1); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := Checkin(ctx, database, unit.ID, "event-a", rng); err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	got, _ := GetGearUnit(ctx, database, unit.ID)
	if len(got.Reservations) != 0 {
		t.Errorf("expected no active reservations, got %d", len(got.Reservations))
	}
	if len(got.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(got.History))
	}
	if got.Status != model.StatusAvailable || got.CheckedOutBy != "" {
		t.Errorf("expected available status after checkin, got %q by %q", got.Status, got.CheckedOutBy)
	}
}

func TestCheckinIsIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Camera A", 1)

	if err := Checkin(ctx, database, unit.ID, "event-a", model.DateRange{}); err != nil {
		t.Fatalf("checkin without reservation: %v", err)
	}

	rng := testRange(t, "2030-06-01", "2030-06-03")
	Checkout(ctx, database, unit.ID, "event-a", rng, 1)
	if err := Checkin(ctx, database, unit.ID, "event-a", rng); err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if err := Checkin(ctx, database, unit.ID, "event-a", rng); err != nil {
		t.Fatalf("repeated Checkin: %v", err)
	}
}

func TestCheckinReleasesOneClaimAtATime(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "SD Cards", 3)
	rng := testRange(t, "2030-06-01", "2030-06-03")

	// One event holding two independent claims on the same window.
	if _, err := Checkout(ctx, database, unit.ID, "event-a", rng, 1); err != nil {
		t.Fatalf("first Checkout: %v", err)
	}
	if _, err := Checkout(ctx, database, unit.ID, "event-a", rng, 1); err != nil {
		t.Fatalf("second Checkout: %v", err)
	}

	if err := Checkin(ctx, database, unit.ID, "event-a", rng); err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	got, err := GetGearUnit(ctx, database, unit.ID)
	if err != nil {
		t.Fatalf("GetGearUnit: %v", err)
	}
	if len(got.Reservations) != 1 {
		t.Fatalf("expected 1 active reservation to survive, got %d (history %d)",
			len(got.Reservations), len(got.History))
	}
	if len(got.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(got.History))
	}

	// The second checkin releases the remaining claim.
	if err := Checkin(ctx, database, unit.ID, "event-a", rng); err != nil {
		t.Fatalf("second Checkin: %v", err)
	}
	got, _ = GetGearUnit(ctx, database, unit.ID)
	if len(got.Reservations) != 0 || len(got.History) != 2 {
		t.Errorf("expected 0 active and 2 history entries, got %d and %d",
			len(got.Reservations), len(got.History))
	}
}

func TestUndatedCheckinReleasesAllClaims(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "SD Cards", 3)

	if _, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1); err != nil {
		t.Fatalf("first Checkout: %v", err)
	}
	if _, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-05", "2030-06-07"), 1); err != nil {
		t.Fatalf("second Checkout: %v", err)
	}

	if err := Checkin(ctx, database, unit.ID, "event-a", model.DateRange{}); err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	got, _ := GetGearUnit(ctx, database, unit.ID)
	if len(got.Reservations) != 0 || len(got.History) != 2 {
		t.Errorf("expected 0 active and 2 history entries, got %d and %d",
			len(got.Reservations), len(got.History))
	}
}

func TestCheckoutUnknownGear(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := Checkout(context.Background(), database, "no-such-gear", "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1)
	if !errors.Is(err, ErrGearNotFound) {
		t.Fatalf("expected ErrGearNotFound, got %v", err)
	}
}

func TestCheckoutRefusedForMaintenance(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	unit := createUnit(t, database, "Broken Light", 1)
	if err := UpdateGearUnit(ctx, database, unit.ID, unit.Label, unit.Category, unit.Serial, 1, model.StatusMaintenance); err != nil {
		t.Fatalf("UpdateGearUnit: %v", err)
	}

	_, err := Checkout(ctx, database, unit.ID, "event-a", testRange(t, "2030-06-01", "2030-06-03"), 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for maintenance gear, got %v", err)
	}
}
