// Package liststore owns the in-memory gear list state for one event: every
// named list, the active selection, and the event's checkout window. The
// whole document is persisted through the gateway after each mutation; the
// backend's revision check guards against lost updates.
package liststore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/model"
)

// Backend is the slice of the gateway the store needs.
type Backend interface {
	FetchEvent(ctx context.Context, eventID string) (*model.EventDocument, error)
	SaveEvent(ctx context.Context, doc *model.EventDocument) (int64, error)
	Checkin(ctx context.Context, req gateway.ReservationRequest) error
}

// ItemRef addresses one item inside the document.
type ItemRef struct {
	List     string
	Category string
	Index    int
}

// HeldItem pairs an item with its position.
type HeldItem struct {
	Ref  ItemRef
	Item model.GearListItem
}

// Store is the authoritative client-side gear list state. One logical
// writer per session; the mutex only guards against the change-feed
// goroutine racing a reload.
type Store struct {
	backend Backend
	log     *slog.Logger

	mu  sync.Mutex
	doc *model.EventDocument
}

// New creates a store backed by the given gateway.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, log: logger}
}

// Load fetches the event's document, replacing any local state.
func (s *Store) Load(ctx context.Context, eventID string) error {
	doc, err := s.backend.FetchEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if len(doc.Lists) == 0 {
		doc = model.NewEventDocument(eventID)
	}
	if _, err := doc.Active(); err != nil {
		// Repair a dangling active-list pointer from older documents.
		for name := range doc.Lists {
			doc.ActiveList = name
			break
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// EventID returns the loaded event's ID, or "" before Load.
func (s *Store) EventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ""
	}
	return s.doc.EventID
}

// Dates returns the event's overall checkout window.
func (s *Store) Dates() model.DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return model.DateRange{}
	}
	return s.doc.Dates()
}

// Revision returns the document's current revision counter.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.Revision
}

// ContainsUnit reports whether any list references the gear unit. It feeds
// the availability calculator's ownership fallback.
func (s *Store) ContainsUnit(inventoryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil && s.doc.ContainsUnit(inventoryID)
}

// ListNames returns the document's list names, sorted.
func (s *Store) ListNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	names := make([]string, 0, len(s.doc.Lists))
	for name := range s.doc.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveListName returns the name of the selected list.
func (s *Store) ActiveListName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ""
	}
	return s.doc.ActiveList
}

// CreateList adds a new empty list and persists.
func (s *Store) CreateList(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("list name is required")
	}
	if _, exists := s.doc.Lists[name]; exists {
		return fmt.Errorf("list %q already exists", name)
	}
	s.doc.Lists[name] = model.NewGearList("")
	return s.persist(ctx)
}

// RenameList renames a list, keeping the active selection pointed at it.
func (s *Store) RenameList(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	list, ok := s.doc.Lists[oldName]
	if !ok {
		return fmt.Errorf("list %q does not exist", oldName)
	}
	if newName == "" {
		return fmt.Errorf("list name is required")
	}
	if _, exists := s.doc.Lists[newName]; exists {
		return fmt.Errorf("list %q already exists", newName)
	}
	delete(s.doc.Lists, oldName)
	s.doc.Lists[newName] = list
	if s.doc.ActiveList == oldName {
		s.doc.ActiveList = newName
	}
	return s.persist(ctx)
}

// DeleteList removes a list. The last remaining list can never be deleted:
// an event owns at least one list at all times. Reservations held by the
// deleted list are released best-effort; a failed checkin is logged and the
// deletion proceeds.
func (s *Store) DeleteList(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	list, ok := s.doc.Lists[name]
	if !ok {
		return fmt.Errorf("list %q does not exist", name)
	}
	if len(s.doc.Lists) == 1 {
		return fmt.Errorf("cannot delete the last list")
	}

	for _, items := range list.Categories {
		for _, it := range items {
			if it.IsInventory() {
				s.checkinItem(ctx, it)
			}
		}
	}

	delete(s.doc.Lists, name)
	if s.doc.ActiveList == name {
		for remaining := range s.doc.Lists {
			s.doc.ActiveList = remaining
			break
		}
	}
	return s.persist(ctx)
}

// SelectList switches the active list and persists the selection.
func (s *Store) SelectList(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if _, ok := s.doc.Lists[name]; !ok {
		return fmt.Errorf("list %q does not exist", name)
	}
	s.doc.ActiveList = name
	return s.persist(ctx)
}

// AddCustomItem appends a free-form row (no inventory link) to the active
// list and persists.
func (s *Store) AddCustomItem(ctx context.Context, category, label string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if label == "" {
		return fmt.Errorf("item label is required")
	}
	list, err := s.doc.Active()
	if err != nil {
		return err
	}
	list.Categories[category] = append(list.Categories[category], model.GearListItem{
		Label:    label,
		Quantity: quantity,
	})
	return s.persist(ctx)
}

// AddReservedItem appends a row for a successful checkout. This is the only
// path that attaches an inventory ID to a list item, so an inventory-linked
// row never exists without a reservation behind it.
func (s *Store) AddReservedItem(ctx context.Context, category string, res *gateway.CheckoutResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if res == nil || res.GearID == "" {
		return fmt.Errorf("a checkout result is required to add a reserved item")
	}
	list, err := s.doc.Active()
	if err != nil {
		return err
	}
	if category == "" {
		category = res.Category
	}
	list.Categories[category] = append(list.Categories[category], model.GearListItem{
		Label:        res.Label,
		InventoryID:  res.GearID,
		Serial:       res.Serial,
		Quantity:     res.Quantity,
		CheckOutDate: res.CheckOutDate,
		CheckInDate:  res.CheckInDate,
	})
	return s.persist(ctx)
}

// SetItemChecked toggles an item's done flag and persists.
func (s *Store) SetItemChecked(ctx context.Context, ref ItemRef, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.itemAt(ref)
	if err != nil {
		return err
	}
	item.Checked = checked
	return s.persist(ctx)
}

// RemoveItem deletes a row. An inventory-linked row always gets exactly one
// checkin attempt first; if the checkin fails the removal still proceeds
// locally and the failure is logged, favoring responsiveness over strict
// consistency.
func (s *Store) RemoveItem(ctx context.Context, ref ItemRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.itemAt(ref)
	if err != nil {
		return err
	}

	if item.IsInventory() {
		s.checkinItem(ctx, *item)
	}

	items := s.doc.Lists[ref.List].Categories[ref.Category]
	s.doc.Lists[ref.List].Categories[ref.Category] = append(items[:ref.Index], items[ref.Index+1:]...)
	return s.persist(ctx)
}

// SetEventDates updates the event's overall checkout window and persists.
// Running the extend-mode availability pass and the migration of held
// reservations is the caller's responsibility.
func (s *Store) SetEventDates(ctx context.Context, rng model.DateRange) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	s.doc.CheckOutDate = rng.Start
	s.doc.CheckInDate = rng.End
	return s.persist(ctx)
}

// SetItemDates stamps new reserved dates on the referenced items and
// persists once. Used after a successful date migration.
func (s *Store) SetItemDates(ctx context.Context, refs []ItemRef, rng model.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		item, err := s.itemAt(ref)
		if err != nil {
			return err
		}
		item.CheckOutDate = rng.Start
		item.CheckInDate = rng.End
	}
	return s.persist(ctx)
}

// HeldItems returns every inventory-linked item across all lists.
func (s *Store) HeldItems() []HeldItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	var held []HeldItem
	for _, listName := range s.sortedListNames() {
		list := s.doc.Lists[listName]
		for _, category := range sortedCategories(list) {
			for i, it := range list.Categories[category] {
				if it.IsInventory() {
					held = append(held, HeldItem{
						Ref:  ItemRef{List: listName, Category: category, Index: i},
						Item: it,
					})
				}
			}
		}
	}
	return held
}

// ActiveListItems returns every item in the active list, inventory-linked
// or custom, in category order.
func (s *Store) ActiveListItems() []HeldItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	list, err := s.doc.Active()
	if err != nil {
		return nil
	}
	var items []HeldItem
	for _, category := range sortedCategories(list) {
		for i, it := range list.Categories[category] {
			items = append(items, HeldItem{
				Ref:  ItemRef{List: s.doc.ActiveList, Category: category, Index: i},
				Item: it,
			})
		}
	}
	return items
}

// RemoveItems deletes multiple rows in one persisted mutation, without
// issuing checkins; the conflict workflow releases reservations itself
// before calling this.
func (s *Store) RemoveItems(ctx context.Context, refs []ItemRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}

	// Delete highest indexes first so earlier removals don't shift later refs.
	ordered := make([]ItemRef, len(refs))
	copy(ordered, refs)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.List != b.List {
			return a.List < b.List
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Index > b.Index
	})

	for _, ref := range ordered {
		if _, err := s.itemAt(ref); err != nil {
			return err
		}
		items := s.doc.Lists[ref.List].Categories[ref.Category]
		s.doc.Lists[ref.List].Categories[ref.Category] = append(items[:ref.Index], items[ref.Index+1:]...)
	}
	return s.persist(ctx)
}

// Persist force-saves the current document, for callers that mutated item
// state through refs.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	return s.persist(ctx)
}

func (s *Store) loaded() error {
	if s.doc == nil {
		return fmt.Errorf("no event document loaded")
	}
	return nil
}

// persist writes the whole document back and records the new revision.
// Callers hold the mutex.
func (s *Store) persist(ctx context.Context) error {
	revision, err := s.backend.SaveEvent(ctx, s.doc)
	if err != nil {
		return err
	}
	s.doc.Revision = revision
	return nil
}

// checkinItem releases an item's reservation best-effort, falling back to
// the event's overall dates when the item predates per-item date stamps.
// Callers hold the mutex.
func (s *Store) checkinItem(ctx context.Context, item model.GearListItem) {
	rng := item.ReservedRange()
	if rng.IsZero() {
		rng = s.doc.Dates()
	}
	err := s.backend.Checkin(ctx, gateway.ReservationRequest{
		GearID:       item.InventoryID,
		EventID:      s.doc.EventID,
		CheckOutDate: rng.Start,
		CheckInDate:  rng.End,
		Quantity:     item.EffectiveQuantity(),
	})
	if err != nil {
		s.log.Warn("checkin failed, removing item anyway",
			"gear", item.InventoryID, "label", item.Label, "error", err)
	}
}

func (s *Store) itemAt(ref ItemRef) (*model.GearListItem, error) {
	if err := s.loaded(); err != nil {
		return nil, err
	}
	list, ok := s.doc.Lists[ref.List]
	if !ok {
		return nil, fmt.Errorf("list %q does not exist", ref.List)
	}
	items, ok := list.Categories[ref.Category]
	if !ok {
		return nil, fmt.Errorf("category %q does not exist in list %q", ref.Category, ref.List)
	}
	if ref.Index < 0 || ref.Index >= len(items) {
		return nil, fmt.Errorf("item index %d out of range for %s/%s", ref.Index, ref.List, ref.Category)
	}
	return &items[ref.Index], nil
}

func (s *Store) sortedListNames() []string {
	names := make([]string, 0, len(s.doc.Lists))
	for name := range s.doc.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedCategories(list *model.GearList) []string {
	categories := make([]string, 0, len(list.Categories))
	for name := range list.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	return categories
}
