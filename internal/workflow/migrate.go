package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
)

// Migrator moves every held reservation from an old date window to a new
// one, one checkin+checkout pair per item. Items migrate independently; the
// batch is never transactional. The caller must have run the extend-mode
// availability pass and resolved genuine conflicts before migrating.
type Migrator struct {
	store    ListState
	reserver Reserver
	log      *slog.Logger
}

// NewMigrator creates a migrator over the given store and gateway.
func NewMigrator(store ListState, reserver Reserver, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, reserver: reserver, log: logger}
}

// MigrationOutcome is one item's result.
type MigrationOutcome struct {
	Ref   liststore.ItemRef
	Label string
	Err   error

	// ReleasedNotRebooked marks the worst case: the old reservation was
	// released, the new checkout failed, and the compensating re-checkout
	// of the old dates failed too. The unit is no longer held at all.
	ReleasedNotRebooked bool
}

// MigrationResult aggregates per-item outcomes.
type MigrationResult struct {
	Outcomes []MigrationOutcome
}

// Succeeded counts fully migrated items.
func (r MigrationResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts items that kept (or lost) their old reservation.
func (r MigrationResult) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// FailedLabels returns the labels of failed items, in migration order.
func (r MigrationResult) FailedLabels() []string {
	var labels []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			labels = append(labels, o.Label)
		}
	}
	return labels
}

// Summary renders the single user-facing line for the batch.
func (r MigrationResult) Summary() string {
	if r.Failed() == 0 {
		return fmt.Sprintf("%d succeeded, 0 failed", r.Succeeded())
	}
	return fmt.Sprintf("%d succeeded, %d failed: %s",
		r.Succeeded(), r.Failed(), strings.Join(r.FailedLabels(), ", "))
}

// Migrate moves every inventory-linked item to the new window. Each item is
// released under its own stored dates (falling back to the old overall
// window for items without date stamps) and re-checked-out under the new
// window. Items that succeed get their stored dates updated; items that
// fail keep their old stored dates.
//
// If the new checkout fails after the old reservation was already released,
// a compensating checkout of the old dates is attempted so the unit is not
// silently lost; if even that fails the outcome is flagged
// ReleasedNotRebooked.
func (m *Migrator) Migrate(ctx context.Context, oldRange, newRange model.DateRange) (MigrationResult, error) {
	if err := newRange.Validate(); err != nil {
		return MigrationResult{}, &gateway.PreconditionError{Reason: err.Error()}
	}

	eventID := m.store.EventID()
	held := m.store.HeldItems()

	var result MigrationResult
	var migrated []liststore.ItemRef

	for _, h := range held {
		outcome := MigrationOutcome{Ref: h.Ref, Label: h.Item.Label}

		releaseRange := h.Item.ReservedRange()
		if releaseRange.IsZero() {
			// Right after a reload older items carry no date stamps.
			releaseRange = oldRange
		}

		if err := m.reserver.Checkin(ctx, m.request(h.Item, eventID, releaseRange)); err != nil {
			// The old reservation is still in place; the item simply
			// stays on its old dates.
			outcome.Err = fmt.Errorf("releasing old dates: %w", err)
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if _, err := m.reserver.Checkout(ctx, m.request(h.Item, eventID, newRange)); err != nil {
			outcome.Err = fmt.Errorf("reserving new dates: %w", err)
			if compErr := m.compensate(ctx, h.Item, eventID, releaseRange); compErr != nil {
				outcome.ReleasedNotRebooked = true
				m.log.Error("item released but not rebooked",
					"gear", h.Item.InventoryID, "label", h.Item.Label,
					"checkout_error", err, "compensation_error", compErr)
			}
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		migrated = append(migrated, h.Ref)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if len(migrated) > 0 {
		if err := m.store.SetItemDates(ctx, migrated, newRange); err != nil {
			return result, fmt.Errorf("recording migrated dates: %w", err)
		}
	}
	return result, nil
}

// compensate re-books the old dates after a failed new-date checkout.
func (m *Migrator) compensate(ctx context.Context, item model.GearListItem, eventID string, oldRange model.DateRange) error {
	_, err := m.reserver.Checkout(ctx, m.request(item, eventID, oldRange))
	return err
}

func (m *Migrator) request(item model.GearListItem, eventID string, rng model.DateRange) gateway.ReservationRequest {
	return gateway.ReservationRequest{
		GearID:       item.InventoryID,
		EventID:      eventID,
		CheckOutDate: rng.Start,
		CheckInDate:  rng.End,
		Quantity:     item.EffectiveQuantity(),
	}
}
