package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/germz92/gearbook/internal/availability"
	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
)

// ErrBusy is returned when a new conflict check starts while an earlier
// cycle is still awaiting confirmation or executing its exit path.
var ErrBusy = errors.New("a conflict check is already in progress")

// State is the conflict workflow's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateAwaitingConfirmation
	StateReleasing
	StateReverting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateAwaitingConfirmation:
		return "awaiting-confirmation"
	case StateReleasing:
		return "releasing"
	case StateReverting:
		return "reverting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conflict runs the detect/warn/confirm cycle for held gear that has become
// unavailable, either because the event's dates changed or because the
// inventory moved underneath the list. Cycles are non-reentrant per
// workflow instance.
type Conflict struct {
	store     ListState
	reserver  Reserver
	inventory InventorySource
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	pending *Decision
}

// NewConflict creates the workflow over the given collaborators.
func NewConflict(store ListState, reserver Reserver, inventory InventorySource, logger *slog.Logger) *Conflict {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conflict{store: store, reserver: reserver, inventory: inventory, log: logger}
}

// State returns the workflow's current state.
func (w *Conflict) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Decision is an unresolved conflict awaiting the user's confirm or cancel.
type Decision struct {
	w           *Conflict
	unavailable []liststore.HeldItem
	dateChange  bool
	lastGood    model.DateRange
}

// Labels returns the conflicting item labels for presentation.
func (d *Decision) Labels() []string {
	labels := make([]string, 0, len(d.unavailable))
	for _, h := range d.unavailable {
		labels = append(labels, h.Item.Label)
	}
	return labels
}

// CheckDateChange applies a proposed date window and checks every held item
// in extend mode. The previous window is captured first so a cancel can
// revert. A nil decision means no conflicts: the new window only widens the
// event's existing claims and the caller can migrate immediately.
func (w *Conflict) CheckDateChange(ctx context.Context, proposed model.DateRange) (*Decision, error) {
	if err := proposed.Validate(); err != nil {
		return nil, &gateway.PreconditionError{Reason: err.Error()}
	}
	if err := w.begin(); err != nil {
		return nil, err
	}

	lastGood := w.store.Dates()
	if err := w.store.SetEventDates(ctx, proposed); err != nil {
		w.finish()
		return nil, err
	}

	unavailable, err := w.findUnavailable(ctx, w.store.HeldItems(), proposed, availability.Extend)
	if err != nil {
		w.finish()
		return nil, err
	}
	return w.resolveCheck(unavailable, true, lastGood)
}

// CheckItems checks the given items (or the whole active list when items is
// nil) in strict mode against the event's current window. Used when a
// remote inventory change arrives. A nil decision means everything is still
// available.
func (w *Conflict) CheckItems(ctx context.Context, items []liststore.HeldItem) (*Decision, error) {
	if err := w.begin(); err != nil {
		return nil, err
	}

	if items == nil {
		for _, h := range w.store.ActiveListItems() {
			if h.Item.IsInventory() {
				items = append(items, h)
			}
		}
	}

	unavailable, err := w.findUnavailable(ctx, items, w.store.Dates(), availability.Strict)
	if err != nil {
		w.finish()
		return nil, err
	}
	return w.resolveCheck(unavailable, false, model.DateRange{})
}

// Confirm releases every conflicting item: best-effort checkins, removal
// from the list, one persisted save. Partial checkin failures are logged
// and do not block.
func (d *Decision) Confirm(ctx context.Context) error {
	w := d.w
	if err := w.transition(StateAwaitingConfirmation, StateReleasing); err != nil {
		return err
	}
	defer w.finish()

	eventID := w.store.EventID()
	refs := make([]liststore.ItemRef, 0, len(d.unavailable))
	for _, h := range d.unavailable {
		refs = append(refs, h.Ref)

		rng := h.Item.ReservedRange()
		if rng.IsZero() {
			rng = d.lastGood
		}
		if rng.IsZero() {
			rng = w.store.Dates()
		}
		err := w.reserver.Checkin(ctx, gateway.ReservationRequest{
			GearID:       h.Item.InventoryID,
			EventID:      eventID,
			CheckOutDate: rng.Start,
			CheckInDate:  rng.End,
			Quantity:     h.Item.EffectiveQuantity(),
		})
		if err != nil {
			w.log.Warn("release failed during conflict confirmation",
				"gear", h.Item.InventoryID, "label", h.Item.Label, "error", err)
		}
	}

	return w.store.RemoveItems(ctx, refs)
}

// Cancel abandons the change. For a date-change cycle the previous window
// is restored and re-persisted; no reservation is touched either way.
func (d *Decision) Cancel(ctx context.Context) error {
	w := d.w
	if err := w.transition(StateAwaitingConfirmation, StateReverting); err != nil {
		return err
	}
	defer w.finish()

	if d.dateChange {
		return w.store.SetEventDates(ctx, d.lastGood)
	}
	return nil
}

// findUnavailable runs the availability calculator over the items. An item
// whose unit no longer exists in inventory counts as unavailable.
func (w *Conflict) findUnavailable(ctx context.Context, items []liststore.HeldItem, rng model.DateRange, mode availability.Mode) ([]liststore.HeldItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	units, err := w.inventory.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexUnits(units)
	eventID := w.store.EventID()

	var unavailable []liststore.HeldItem
	for _, h := range items {
		unit := idx.resolve(h.Item.InventoryID, h.Item.Label)
		if unit == nil {
			unavailable = append(unavailable, h)
			continue
		}
		check := availability.Check{
			Range:         rng,
			EventID:       eventID,
			Mode:          mode,
			ListedInEvent: true,
		}
		if !availability.IsAvailable(unit, check) {
			unavailable = append(unavailable, h)
		}
	}
	return unavailable, nil
}

// resolveCheck leaves the checking state: back to idle when clean, or to
// awaiting-confirmation with a pending decision.
func (w *Conflict) resolveCheck(unavailable []liststore.HeldItem, dateChange bool, lastGood model.DateRange) (*Decision, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(unavailable) == 0 {
		w.state = StateIdle
		return nil, nil
	}

	d := &Decision{w: w, unavailable: unavailable, dateChange: dateChange, lastGood: lastGood}
	w.state = StateAwaitingConfirmation
	w.pending = d
	return d, nil
}

func (w *Conflict) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return ErrBusy
	}
	w.state = StateChecking
	return nil
}

func (w *Conflict) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("cannot move to %s from %s", to, w.state)
	}
	w.state = to
	return nil
}

func (w *Conflict) finish() {
	w.mu.Lock()
	w.state = StateIdle
	w.pending = nil
	w.mu.Unlock()
}
