package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/germz92/gearbook/internal/model"
)

func TestMigrateAllItemsSucceed(t *testing.T) {
	store := newTestListStore(t)
	ctx := context.Background()
	store.SetEventDates(ctx, junRange)
	addHeld(t, store, "u1", "Camera A", junRange)
	addHeld(t, store, "u2", "Camera B", junRange)

	reserver := &fakeReserver{}
	m := NewMigrator(store, reserver, nil)

	result, err := m.Migrate(ctx, junRange, julRange)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.Succeeded() != 2 || result.Failed() != 0 {
		t.Errorf("expected 2/0, got %d/%d", result.Succeeded(), result.Failed())
	}
	if len(reserver.checkins) != 2 || len(reserver.checkouts) != 2 {
		t.Errorf("expected 2 checkins and 2 checkouts, got %d/%d",
			len(reserver.checkins), len(reserver.checkouts))
	}

	for _, h := range store.HeldItems() {
		if !h.Item.CheckOutDate.Equal(julRange.Start) {
			t.Errorf("item %s should carry the new dates", h.Item.Label)
		}
	}
}

func TestMigratePartialFailure(t *testing.T) {
	store := newTestListStore(t)
	ctx := context.Background()
	store.SetEventDates(ctx, junRange)
	addHeld(t, store, "u1", "Camera A", junRange)
	addHeld(t, store, "u2", "Camera B", junRange)
	addHeld(t, store, "u3", "Camera C", junRange)

	// Item #2's new-date checkout fails; the compensating re-checkout of
	// the old dates succeeds.
	reserver := &fakeReserver{
		checkoutErrs: map[string]error{
			"u2|" + julRange.Start.String(): transportErr("checkout"),
		},
	}
	m := NewMigrator(store, reserver, nil)

	result, err := m.Migrate(ctx, junRange, julRange)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.Succeeded() != 2 || result.Failed() != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d/%d", result.Succeeded(), result.Failed())
	}

	for _, h := range store.HeldItems() {
		want := julRange.Start
		if h.Item.InventoryID == "u2" {
			want = junRange.Start
		}
		if !h.Item.CheckOutDate.Equal(want) {
			t.Errorf("item %s has dates %s, want %s", h.Item.Label, h.Item.CheckOutDate, want)
		}
	}

	summary := result.Summary()
	if !strings.Contains(summary, "2 succeeded, 1 failed") || !strings.Contains(summary, "Camera B") {
		t.Errorf("unexpected summary %q", summary)
	}

	// The failed item must have been re-booked on its old dates.
	var compensated bool
	for _, req := range reserver.checkouts {
		if req.GearID == "u2" && req.CheckOutDate.Equal(junRange.Start) {
			compensated = true
		}
	}
	if !compensated {
		t.Error("expected a compensating checkout of the old dates")
	}

	for _, o := range result.Outcomes {
		if o.ReleasedNotRebooked {
			t.Errorf("item %s should not be flagged released-not-rebooked", o.Label)
		}
	}
}

func TestMigrateReleasedNotRebooked(t *testing.T) {
	store := newTestListStore(t)
	ctx := context.Background()
	store.SetEventDates(ctx, junRange)
	addHeld(t, store, "u1", "Camera A", junRange)

	// Both the new checkout and the compensating old-date checkout fail.
	reserver := &fakeReserver{
		checkoutErrs: map[string]error{
			"u1|" + julRange.Start.String(): transportErr("checkout"),
			"u1|" + junRange.Start.String(): transportErr("checkout"),
		},
	}
	m := NewMigrator(store, reserver, nil)

	result, err := m.Migrate(ctx, junRange, julRange)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.Failed() != 1 {
		t.Fatalf("expected 1 failed, got %d", result.Failed())
	}
	if !result.Outcomes[0].ReleasedNotRebooked {
		t.Error("expected the item to be flagged released-not-rebooked")
	}
}

func TestMigrateCheckinFailureKeepsReservation(t *testing.T) {
	store := newTestListStore(t)
	ctx := context.Background()
	store.SetEventDates(ctx, junRange)
	addHeld(t, store, "u1", "Camera A", junRange)

	reserver := &fakeReserver{
		checkinErrs: map[string]error{
			"u1|" + junRange.Start.String(): transportErr("checkin"),
		},
	}
	m := NewMigrator(store, reserver, nil)

	result, err := m.Migrate(ctx, junRange, julRange)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.Failed() != 1 {
		t.Fatalf("expected 1 failed, got %d", result.Failed())
	}
	if len(reserver.checkouts) != 0 {
		t.Error("no checkout should be attempted when the release fails")
	}
	if h := store.HeldItems()[0]; !h.Item.CheckOutDate.Equal(junRange.Start) {
		t.Error("failed item must keep its old stored dates")
	}
}

func TestMigrateFallsBackToOldGlobalDates(t *testing.T) {
	store := newTestListStore(t)
	ctx := context.Background()
	store.SetEventDates(ctx, junRange)

	// Item without stored dates, as right after a reload of an old document.
	addHeld(t, store, "u1", "Camera A", model.DateRange{})

	reserver := &fakeReserver{}
	m := NewMigrator(store, reserver, nil)

	if _, err := m.Migrate(ctx, junRange, julRange); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(reserver.checkins) != 1 {
		t.Fatalf("expected 1 checkin, got %d", len(reserver.checkins))
	}
	if !reserver.checkins[0].CheckOutDate.Equal(junRange.Start) {
		t.Errorf("expected checkin against the old global window, got %s",
			reserver.checkins[0].CheckOutDate)
	}
}

func TestMigrateRejectsEmptyNewRange(t *testing.T) {
	store := newTestListStore(t)
	m := NewMigrator(store, &fakeReserver{}, nil)

	_, err := m.Migrate(context.Background(), junRange, model.DateRange{})
	if err == nil {
		t.Fatal("expected precondition failure for an empty range")
	}
}
