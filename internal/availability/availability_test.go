package availability

import (
	"testing"
	"time"

	"github.com/germz92/gearbook/internal/model"
)

func day(y int, m time.Month, d int) model.Day {
	return model.MakeDay(y, m, d)
}

func span(y1 int, m1 time.Month, d1, y2 int, m2 time.Month, d2 int) model.DateRange {
	return model.DateRange{Start: day(y1, m1, d1), End: day(y2, m2, d2)}
}

// testToday is fixed well before every test reservation so no entry is
// skipped as past unless a test wants it to be.
var testToday = day(2025, time.January, 1)

func strictCheck(rng model.DateRange, eventID string) Check {
	return Check{Range: rng, EventID: eventID, Mode: Strict, Today: testToday}
}

func TestSerializedUnitNoOverlap(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Label: "Camera A", Quantity: 1,
		History: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 3)},
		},
	}

	if !IsAvailable(unit, strictCheck(span(2025, time.June, 4, 2025, time.June, 5), "event-a")) {
		t.Error("expected available for non-overlapping range")
	}
}

func TestSerializedUnitBoundaryOverlap(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Label: "Camera A", Quantity: 1,
		History: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 3)},
		},
	}

	// Closed intervals: touching the boundary day is an overlap.
	if IsAvailable(unit, strictCheck(span(2025, time.June, 3, 2025, time.June, 5), "event-a")) {
		t.Error("expected unavailable when ranges touch at the boundary")
	}
}

func TestSelfReservationNeverConflictsInStrictMode(t *testing.T) {
	ranges := []model.DateRange{
		span(2025, time.June, 1, 2025, time.June, 3),   // identical
		span(2025, time.May, 30, 2025, time.June, 10),  // containing
		span(2025, time.June, 2, 2025, time.June, 2),   // inside
		span(2025, time.June, 3, 2025, time.June, 8),   // touching
		span(2025, time.July, 1, 2025, time.July, 2),   // disjoint
	}

	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{EventID: "event-a", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 3)},
		},
	}

	for _, rng := range ranges {
		if !IsAvailable(unit, strictCheck(rng, "event-a")) {
			t.Errorf("self reservation counted as conflict for range %s", rng)
		}
	}
}

func TestPastEntriesNeverBlock(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2024, time.December, 1), CheckInDate: day(2024, time.December, 5)},
		},
	}

	c := strictCheck(span(2024, time.December, 1, 2024, time.December, 5), "event-a")
	if !IsAvailable(unit, c) {
		t.Error("reservation that ended before today should not block")
	}
}

func TestHistoryScannedForSerializedUnits(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		History: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 5)},
		},
	}

	if IsAvailable(unit, strictCheck(span(2025, time.June, 2, 2025, time.June, 3), "event-a")) {
		t.Error("history entry should block serialized unit")
	}
}

func TestPooledQuantityArithmetic(t *testing.T) {
	unit := &model.GearUnit{
		ID: "v1", Label: "Wireless Mic", Quantity: 3,
		Reservations: []model.Reservation{
			{EventID: "event-b", Quantity: 1, CheckOutDate: day(2025, time.July, 1), CheckInDate: day(2025, time.July, 2)},
			{EventID: "event-b", Quantity: 1, CheckOutDate: day(2025, time.July, 1), CheckInDate: day(2025, time.July, 2)},
		},
	}

	c := strictCheck(span(2025, time.July, 1, 2025, time.July, 2), "event-a")
	if got := AvailableQuantity(unit, c); got != 1 {
		t.Errorf("expected available quantity 1, got %d", got)
	}
	if !IsAvailable(unit, c) {
		t.Error("expected available while quantity remains")
	}
}

func TestPooledQuantityClampedAtZero(t *testing.T) {
	unit := &model.GearUnit{
		ID: "v1", Quantity: 2,
		Reservations: []model.Reservation{
			{EventID: "event-b", Quantity: 2, CheckOutDate: day(2025, time.July, 1), CheckInDate: day(2025, time.July, 4)},
			{EventID: "event-c", Quantity: 1, CheckOutDate: day(2025, time.July, 2), CheckInDate: day(2025, time.July, 3)},
		},
	}

	c := strictCheck(span(2025, time.July, 2, 2025, time.July, 2), "event-a")
	if got := AvailableQuantity(unit, c); got != 0 {
		t.Errorf("expected available quantity 0, got %d", got)
	}
	if IsAvailable(unit, c) {
		t.Error("expected unavailable for exhausted pool")
	}
}

func TestPooledHistoryNotDoubleCounted(t *testing.T) {
	// A released-and-rebooked pooled claim leaves a history copy; only the
	// live reservations array is the ledger for pools.
	unit := &model.GearUnit{
		ID: "v1", Quantity: 2,
		Reservations: []model.Reservation{
			{EventID: "event-b", Quantity: 1, CheckOutDate: day(2025, time.July, 1), CheckInDate: day(2025, time.July, 2)},
		},
		History: []model.Reservation{
			{EventID: "event-b", Quantity: 1, CheckOutDate: day(2025, time.July, 1), CheckInDate: day(2025, time.July, 2)},
		},
	}

	c := strictCheck(span(2025, time.July, 1, 2025, time.July, 2), "event-a")
	if got := AvailableQuantity(unit, c); got != 1 {
		t.Errorf("expected available quantity 1 (history ignored), got %d", got)
	}
}

func TestExtendModeContainment(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{EventID: "event-a", CheckOutDate: day(2025, time.June, 2), CheckInDate: day(2025, time.June, 5)},
		},
	}

	widened := Check{Range: span(2025, time.June, 1, 2025, time.June, 6), EventID: "event-a", Mode: Extend, Today: testToday}
	if !IsAvailable(unit, widened) {
		t.Error("widening the window over an own reservation should not conflict")
	}

	shrunk := Check{Range: span(2025, time.June, 3, 2025, time.June, 5), EventID: "event-a", Mode: Extend, Today: testToday}
	if IsAvailable(unit, shrunk) {
		t.Error("shrinking away from an own reservation should conflict")
	}
}

func TestExtendModePooledQuantity(t *testing.T) {
	unit := &model.GearUnit{
		ID: "v1", Quantity: 2,
		Reservations: []model.Reservation{
			{EventID: "event-a", Quantity: 2, CheckOutDate: day(2025, time.June, 2), CheckInDate: day(2025, time.June, 5)},
		},
	}

	// Contained self-claim does not count against the new window.
	widened := Check{Range: span(2025, time.June, 1, 2025, time.June, 6), EventID: "event-a", Mode: Extend, Today: testToday}
	if got := AvailableQuantity(unit, widened); got != 2 {
		t.Errorf("expected quantity 2 for contained self claim, got %d", got)
	}

	// Non-contained self-claim counts as reserved.
	shifted := Check{Range: span(2025, time.June, 4, 2025, time.June, 8), EventID: "event-a", Mode: Extend, Today: testToday}
	if got := AvailableQuantity(unit, shifted); got != 0 {
		t.Errorf("expected quantity 0 for shifted self claim, got %d", got)
	}
}

func TestExtendModeOtherEventsStillStrict(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2025, time.June, 2), CheckInDate: day(2025, time.June, 5)},
		},
	}

	c := Check{Range: span(2025, time.June, 1, 2025, time.June, 6), EventID: "event-a", Mode: Extend, Today: testToday}
	if IsAvailable(unit, c) {
		t.Error("another event's reservation must still conflict in extend mode")
	}
}

func TestOwnershipFallbackByStatus(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Status:       model.StatusCheckedOut,
		CheckedOutBy: "event-a",
		Reservations: []model.Reservation{
			// Legacy entry with no event ID.
			{CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 5)},
		},
	}

	if !IsAvailable(unit, strictCheck(span(2025, time.June, 2, 2025, time.June, 3), "event-a")) {
		t.Error("coarse status should claim ownership of an eventless entry")
	}
	if IsAvailable(unit, strictCheck(span(2025, time.June, 2, 2025, time.June, 3), "event-b")) {
		t.Error("eventless entry owned via status should still block other events")
	}
}

func TestOwnershipFallbackByListPresence(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 5)},
		},
	}

	c := strictCheck(span(2025, time.June, 2, 2025, time.June, 3), "event-a")
	c.ListedInEvent = true
	if !IsAvailable(unit, c) {
		t.Error("eventless entry should be treated as own when unit is already listed")
	}

	c.ListedInEvent = false
	if IsAvailable(unit, c) {
		t.Error("eventless entry should block when unit is not listed")
	}
}

func TestConflictsReturnsBlockingEntries(t *testing.T) {
	unit := &model.GearUnit{
		ID: "u1", Quantity: 1,
		Reservations: []model.Reservation{
			{EventID: "event-b", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 3)},
			{EventID: "event-a", CheckOutDate: day(2025, time.June, 1), CheckInDate: day(2025, time.June, 3)},
		},
		History: []model.Reservation{
			{EventID: "event-c", CheckOutDate: day(2025, time.June, 2), CheckInDate: day(2025, time.June, 4)},
		},
	}

	got := Conflicts(unit, strictCheck(span(2025, time.June, 2, 2025, time.June, 3), "event-a"))
	if len(got) != 2 {
		t.Fatalf("expected 2 conflicting entries, got %d", len(got))
	}
	for _, r := range got {
		if r.EventID == "event-a" {
			t.Error("own reservation must not appear among conflicts")
		}
	}
}
