// Package availability decides whether a gear unit can be reserved for a
// requested date window. It is pure computation over a unit's reservation
// ledger and history; the backend re-runs the same checks as the
// authoritative arbiter, so a client-side answer is only a pre-flight
// optimization.
package availability

import (
	"github.com/germz92/gearbook/internal/model"
)

// Mode selects the conflict rule applied to the requesting event's own
// reservations.
type Mode int

const (
	// Strict skips self-owned entries entirely; used for all fresh
	// checkout decisions.
	Strict Mode = iota

	// Extend is used only while the requesting event's own dates are being
	// changed: a self-owned entry is fine if the new range fully contains
	// it, and a conflict (requiring migration) otherwise.
	Extend
)

// Check carries the parameters of one availability question.
type Check struct {
	Range   model.DateRange
	EventID string
	Mode    Mode

	// Today overrides the current day; zero means time.Now. Entries that
	// ended before today never block.
	Today model.Day

	// ListedInEvent marks that the unit already appears somewhere in the
	// requesting event's own lists. It is the ownership fallback for
	// legacy ledger entries that carry no event ID.
	ListedInEvent bool
}

func (c Check) today() model.Day {
	if c.Today.IsZero() {
		return model.Today()
	}
	return c.Today
}

// belongsToEvent classifies a ledger entry as owned by the requesting event.
// Ownership is the entry's event ID when present; otherwise the unit's
// coarse checked-out-by status, and finally presence of the unit in the
// event's own lists, stand in for it.
func (c Check) belongsToEvent(unit *model.GearUnit, r model.Reservation) bool {
	if r.EventID != "" {
		return r.EventID == c.EventID
	}
	if unit.Status == model.StatusCheckedOut && unit.CheckedOutBy == c.EventID && c.EventID != "" {
		return true
	}
	return c.ListedInEvent
}

// selfConflicts reports whether a self-owned entry conflicts under the
// check's mode. In strict mode self-overlap is never a conflict; in extend
// mode the entry conflicts unless the new range fully contains it (the
// event is only widening its own window).
func (c Check) selfConflicts(r model.Reservation) bool {
	if c.Mode != Extend {
		return false
	}
	return !c.Range.Contains(r.Range())
}

// IsAvailable reports whether the unit can satisfy the check. For pooled
// units this means at least one sub-unit is free in the window.
func IsAvailable(unit *model.GearUnit, c Check) bool {
	if unit.Pooled() {
		return AvailableQuantity(unit, c) > 0
	}
	return len(Conflicts(unit, c)) == 0
}

// AvailableQuantity returns how many sub-units are free in the window,
// clamped at zero. For a serialized unit the answer is 1 or 0.
//
// Only the live reservations array is summed for pooled units: history
// retains superseded copies of the same claims and would double count them.
func AvailableQuantity(unit *model.GearUnit, c Check) int {
	if !unit.Pooled() {
		if len(Conflicts(unit, c)) > 0 {
			return 0
		}
		return 1
	}

	today := c.today()
	reserved := 0
	for _, r := range unit.Reservations {
		if r.Range().EndsBefore(today) {
			continue
		}
		if !c.Range.Overlaps(r.Range()) {
			continue
		}
		if c.belongsToEvent(unit, r) {
			if !c.selfConflicts(r) {
				continue
			}
		}
		reserved += r.EffectiveQuantity()
	}

	free := unit.EffectiveQuantity() - reserved
	if free < 0 {
		return 0
	}
	return free
}

// Conflicts returns the ledger entries competing for the requested window,
// for building user-facing conflict messages. For a serialized unit any
// returned entry blocks the check outright; for a pooled unit the entries
// only block once their quantities exhaust the pool. For serialized units
// the retained history is scanned alongside the live reservations; checkin
// does not clear history, so skipping it would produce stale false
// availability.
func Conflicts(unit *model.GearUnit, c Check) []model.Reservation {
	today := c.today()

	var conflicts []model.Reservation
	scan := func(entries []model.Reservation) {
		for _, r := range entries {
			if r.Range().EndsBefore(today) {
				continue
			}
			if !c.Range.Overlaps(r.Range()) {
				continue
			}
			if c.belongsToEvent(unit, r) {
				if !c.selfConflicts(r) {
					continue
				}
			}
			conflicts = append(conflicts, r)
		}
	}

	scan(unit.Reservations)
	if !unit.Pooled() {
		scan(unit.History)
	}
	return conflicts
}
