package model

import (
	"fmt"
	"time"
)

// GearListItem is one row of a gear list. Rows linked to inventory carry an
// InventoryID and the dates they were reserved under; custom rows carry
// neither. An item's stored dates may briefly diverge from the event's
// current dates while a date migration is pending.
type GearListItem struct {
	Label        string `json:"label"`
	Checked      bool   `json:"checked,omitempty"`
	InventoryID  string `json:"inventoryId,omitempty"`
	Serial       string `json:"serial,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	CheckOutDate Day    `json:"checkOutDate,omitzero"`
	CheckInDate  Day    `json:"checkInDate,omitzero"`
}

// IsInventory reports whether the item is linked to a gear unit.
func (it GearListItem) IsInventory() bool { return it.InventoryID != "" }

// EffectiveQuantity treats a zero or missing quantity as 1.
func (it GearListItem) EffectiveQuantity() int {
	if it.Quantity < 1 {
		return 1
	}
	return it.Quantity
}

// ReservedRange returns the dates this item was reserved under, which may be
// zero for items saved before per-item dates were recorded.
func (it GearListItem) ReservedRange() DateRange {
	return DateRange{Start: it.CheckOutDate, End: it.CheckInDate}
}

// ListMeta holds a gear list's descriptive fields.
type ListMeta struct {
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created,omitzero"`
}

// GearList is a named collection of categorized gear list items.
type GearList struct {
	Meta       ListMeta                  `json:"meta"`
	Categories map[string][]GearListItem `json:"categories"`
}

// NewGearList creates an empty list with its creation time set.
func NewGearList(description string) *GearList {
	return &GearList{
		Meta:       ListMeta{Description: description, Created: time.Now().UTC()},
		Categories: map[string][]GearListItem{},
	}
}

// Empty reports whether the list has no items in any category.
func (l *GearList) Empty() bool {
	for _, items := range l.Categories {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// ContainsUnit reports whether any item in the list references the gear unit.
func (l *GearList) ContainsUnit(inventoryID string) bool {
	if inventoryID == "" {
		return false
	}
	for _, items := range l.Categories {
		for _, it := range items {
			if it.InventoryID == inventoryID {
				return true
			}
		}
	}
	return false
}

// EventDocument is the root aggregate for one event's gear state: every
// named list, the active list selection, and the event's overall checkout
// window. It is persisted as a whole; Revision is the optimistic-concurrency
// counter the backend checks on save.
type EventDocument struct {
	EventID      string               `json:"eventId"`
	Lists        map[string]*GearList `json:"lists"`
	ActiveList   string               `json:"activeList"`
	CheckOutDate Day                  `json:"checkOutDate,omitzero"`
	CheckInDate  Day                  `json:"checkInDate,omitzero"`
	Revision     int64                `json:"revision"`
}

// DefaultListName is the list every event starts with.
const DefaultListName = "Main"

// NewEventDocument creates a document with the default list active. An event
// owns at least one list at all times.
func NewEventDocument(eventID string) *EventDocument {
	return &EventDocument{
		EventID:    eventID,
		Lists:      map[string]*GearList{DefaultListName: NewGearList("")},
		ActiveList: DefaultListName,
	}
}

// Dates returns the event's overall checkout window.
func (d *EventDocument) Dates() DateRange {
	return DateRange{Start: d.CheckOutDate, End: d.CheckInDate}
}

// Active returns the currently selected list.
func (d *EventDocument) Active() (*GearList, error) {
	list, ok := d.Lists[d.ActiveList]
	if !ok {
		return nil, fmt.Errorf("active list %q does not exist", d.ActiveList)
	}
	return list, nil
}

// ContainsUnit reports whether any list in the document references the unit.
// Used as the ownership fallback for reservations that carry no event ID.
func (d *EventDocument) ContainsUnit(inventoryID string) bool {
	for _, list := range d.Lists {
		if list.ContainsUnit(inventoryID) {
			return true
		}
	}
	return false
}
