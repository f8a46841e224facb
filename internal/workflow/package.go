package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/germz92/gearbook/internal/availability"
	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
)

// Resolver converts between live gear lists and detached packages. Saving
// snapshots the active list; loading re-validates every inventory reference
// against live availability before anything is committed to the list.
type Resolver struct {
	store     ListState
	reserver  Reserver
	inventory InventorySource
	log       *slog.Logger
}

// NewResolver creates a package resolver over the given collaborators.
func NewResolver(store ListState, reserver Reserver, inventory InventorySource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, reserver: reserver, inventory: inventory, log: logger}
}

// Save snapshots the active list as a package. Items that match a known
// gear unit (by ID or label) become inventory-backed entries; everything
// else is saved as a custom entry. An empty list cannot be saved.
func (r *Resolver) Save(ctx context.Context, name, description string) (*model.Package, error) {
	if name == "" {
		return nil, fmt.Errorf("package name is required")
	}

	items := r.store.ActiveListItems()
	if len(items) == 0 {
		return nil, fmt.Errorf("refusing to save an empty package")
	}

	units, err := r.inventory.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexUnits(units)

	pkg := &model.Package{
		Name:        name,
		Description: description,
		Categories:  map[string][]model.PackageEntry{},
	}
	seen := map[string]bool{}
	for _, h := range items {
		entry := model.PackageEntry{Label: h.Item.Label, Checked: h.Item.Checked}
		if unit := idx.resolve(h.Item.InventoryID, h.Item.Label); unit != nil {
			entry.IsInventory = true
			entry.InventoryID = unit.ID
			entry.Serial = unit.Serial
			if !seen[unit.ID] {
				seen[unit.ID] = true
				pkg.InventoryIDs = append(pkg.InventoryIDs, unit.ID)
			}
		}
		pkg.Categories[h.Ref.Category] = append(pkg.Categories[h.Ref.Category], entry)
	}
	sort.Strings(pkg.InventoryIDs)
	return pkg, nil
}

// LoadPlan is the first pass over a package: availability verdicts for
// every inventory-backed entry, before anything is applied.
type LoadPlan struct {
	pkg   *model.Package
	rng   model.DateRange
	idx   unitIndex
	avail map[string]bool // inventoryID -> available in the window

	// Unavailable lists the labels that need the user's confirmation
	// before the load proceeds without them.
	Unavailable []string
}

// NeedsConfirmation reports whether any entries were unavailable.
func (p *LoadPlan) NeedsConfirmation() bool { return len(p.Unavailable) > 0 }

// Plan runs the availability pass for loading a package. A non-empty date
// range is a hard precondition; nothing is fetched without one. The package
// itself is never mutated.
func (r *Resolver) Plan(ctx context.Context, pkg *model.Package, rng model.DateRange) (*LoadPlan, error) {
	if err := rng.Validate(); err != nil {
		return nil, &gateway.PreconditionError{Reason: "select event dates before loading a package: " + err.Error()}
	}
	if pkg == nil || pkg.Empty() {
		return nil, fmt.Errorf("package is empty")
	}

	units, err := r.inventory.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexUnits(units)
	eventID := r.store.EventID()

	plan := &LoadPlan{pkg: pkg, rng: rng, idx: idx, avail: map[string]bool{}}
	for _, category := range sortedPackageCategories(pkg) {
		for _, entry := range pkg.Categories[category] {
			if !entry.IsInventory {
				continue
			}
			unit := idx.resolve(entry.InventoryID, entry.Label)
			if unit == nil {
				// The referenced unit left the inventory since the
				// package was saved.
				plan.Unavailable = append(plan.Unavailable, entry.Label)
				continue
			}
			check := availability.Check{
				Range:         rng,
				EventID:       eventID,
				Mode:          availability.Strict,
				ListedInEvent: r.store.ContainsUnit(unit.ID),
			}
			if availability.IsAvailable(unit, check) {
				plan.avail[unit.ID] = true
			} else {
				plan.Unavailable = append(plan.Unavailable, entry.Label)
			}
		}
	}
	return plan, nil
}

// SkippedItem is one package entry the load left out, with the reason.
type SkippedItem struct {
	Label  string
	Reason string
}

// LoadReport summarizes what Apply did.
type LoadReport struct {
	Applied  []string
	Skipped  []SkippedItem
	Warnings []string
}

// Apply executes the second pass: checkout and append every available
// inventory entry, append custom entries, and skip duplicates and
// unavailable units. When the plan needed confirmation the caller must have
// obtained it before applying; unavailable entries are simply skipped, never
// checked out.
func (r *Resolver) Apply(ctx context.Context, plan *LoadPlan) (*LoadReport, error) {
	eventID := r.store.EventID()
	report := &LoadReport{}

	unavailableLabels := map[string]bool{}
	for _, label := range plan.Unavailable {
		unavailableLabels[label] = true
	}

	current := r.store.ActiveListItems()

	for _, category := range sortedPackageCategories(plan.pkg) {
		for _, entry := range plan.pkg.Categories[category] {
			if reason := duplicateReason(current, entry); reason != "" {
				report.Skipped = append(report.Skipped, SkippedItem{Label: entry.Label, Reason: reason})
				continue
			}

			if !entry.IsInventory {
				// A custom row whose label matches an unavailable unit is
				// probably a stale reference; append it anyway but say so.
				if unavailableLabels[entry.Label] {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("%s matches an unavailable inventory unit; added as a custom row", entry.Label))
				}
				if err := r.store.AddCustomItem(ctx, category, entry.Label, 0); err != nil {
					return report, err
				}
				report.Applied = append(report.Applied, entry.Label)
				current = r.store.ActiveListItems()
				continue
			}

			unit := plan.idx.resolve(entry.InventoryID, entry.Label)
			if unit == nil || !plan.avail[unit.ID] {
				report.Skipped = append(report.Skipped, SkippedItem{Label: entry.Label, Reason: "unavailable"})
				continue
			}

			res, err := r.reserver.Checkout(ctx, gateway.ReservationRequest{
				GearID:       unit.ID,
				EventID:      eventID,
				CheckOutDate: plan.rng.Start,
				CheckInDate:  plan.rng.End,
				Quantity:     1,
			})
			if err != nil {
				if gateway.IsConflict(err) {
					// The server re-arbitrated and lost the race; skip
					// rather than fail the whole load.
					report.Skipped = append(report.Skipped, SkippedItem{Label: entry.Label, Reason: err.Error()})
					continue
				}
				return report, err
			}
			if err := r.store.AddReservedItem(ctx, category, res); err != nil {
				return report, err
			}
			report.Applied = append(report.Applied, entry.Label)
			current = r.store.ActiveListItems()
		}
	}
	return report, nil
}

// duplicateReason reports why an entry would duplicate a current list item:
// same inventory ID, same serial, or same label.
func duplicateReason(current []liststore.HeldItem, entry model.PackageEntry) string {
	for _, h := range current {
		if entry.InventoryID != "" && h.Item.InventoryID == entry.InventoryID {
			return "already in list (same inventory unit)"
		}
		if entry.Serial != "" && h.Item.Serial == entry.Serial {
			return "already in list (same serial)"
		}
		if h.Item.Label == entry.Label {
			return "already in list (same label)"
		}
	}
	return ""
}

func sortedPackageCategories(pkg *model.Package) []string {
	categories := make([]string, 0, len(pkg.Categories))
	for name := range pkg.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	return categories
}
