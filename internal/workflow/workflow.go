// Package workflow orchestrates the multi-item reservation procedures:
// conflict detection and confirmation when held gear becomes unavailable,
// migration of held reservations to a new date window, and applying saved
// packages onto a live list. All server mutations go through the gateway;
// the availability calculator is consulted first, but the server remains the
// arbiter.
package workflow

import (
	"context"

	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
)

// Reserver is the slice of the gateway that mutates reservations.
type Reserver interface {
	Checkout(ctx context.Context, req gateway.ReservationRequest) (*gateway.CheckoutResult, error)
	Checkin(ctx context.Context, req gateway.ReservationRequest) error
}

// InventorySource provides the current gear inventory.
type InventorySource interface {
	FetchInventory(ctx context.Context) ([]model.GearUnit, error)
}

// ListState is the slice of the gear list store the workflows drive.
type ListState interface {
	EventID() string
	Dates() model.DateRange
	ContainsUnit(inventoryID string) bool
	HeldItems() []liststore.HeldItem
	ActiveListItems() []liststore.HeldItem
	SetEventDates(ctx context.Context, rng model.DateRange) error
	SetItemDates(ctx context.Context, refs []liststore.ItemRef, rng model.DateRange) error
	RemoveItems(ctx context.Context, refs []liststore.ItemRef) error
	AddCustomItem(ctx context.Context, category, label string, quantity int) error
	AddReservedItem(ctx context.Context, category string, res *gateway.CheckoutResult) error
}

// unitIndex maps an inventory snapshot by ID and by label for resolution.
type unitIndex struct {
	byID    map[string]*model.GearUnit
	byLabel map[string]*model.GearUnit
}

func indexUnits(units []model.GearUnit) unitIndex {
	idx := unitIndex{
		byID:    make(map[string]*model.GearUnit, len(units)),
		byLabel: make(map[string]*model.GearUnit, len(units)),
	}
	for i := range units {
		u := &units[i]
		idx.byID[u.ID] = u
		if u.Label != "" {
			idx.byLabel[u.Label] = u
		}
	}
	return idx
}

// resolve finds the unit an item refers to, by ID first, then label.
func (idx unitIndex) resolve(inventoryID, label string) *model.GearUnit {
	if inventoryID != "" {
		if u, ok := idx.byID[inventoryID]; ok {
			return u
		}
		// A stale ID with a surviving label still resolves.
	}
	return idx.byLabel[label]
}
