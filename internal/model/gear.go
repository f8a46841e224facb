package model

// GearUnit is one inventory-tracked equipment record. Quantity 1 means a
// unique serialized item; quantity above 1 means a fungible pool whose
// sub-units can be checked out independently.
type GearUnit struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	Category     string        `json:"category,omitempty"`
	Serial       string        `json:"serial,omitempty"`
	Quantity     int           `json:"quantity"`
	Status       string        `json:"status,omitempty"`
	CheckedOutBy string        `json:"checkedOutBy,omitempty"`
	PhotoMIME    string        `json:"photoMime,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
	History      []Reservation `json:"history,omitempty"`
}

// Gear unit statuses. Status is coarse and informational; conflict decisions
// come from the reservation ledger, with status only consulted as an
// ownership fallback for entries that predate per-reservation event IDs.
const (
	StatusAvailable   = "available"
	StatusCheckedOut  = "checked_out"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

// EffectiveQuantity treats a zero or missing pool size as a single unit.
func (u *GearUnit) EffectiveQuantity() int {
	if u.Quantity < 1 {
		return 1
	}
	return u.Quantity
}

// Pooled reports whether the unit is a fungible pool rather than a unique item.
func (u *GearUnit) Pooled() bool { return u.EffectiveQuantity() > 1 }

// Reservation is an event's claim on a gear unit for an inclusive date range.
// Released reservations are retained as history entries rather than deleted,
// and history is scanned as conflict evidence for serialized units.
type Reservation struct {
	ID           string `json:"id,omitempty"`
	EventID      string `json:"eventId,omitempty"`
	CheckOutDate Day    `json:"checkOutDate"`
	CheckInDate  Day    `json:"checkInDate"`
	Quantity     int    `json:"quantity,omitempty"`
}

// Range returns the reservation's inclusive date span.
func (r Reservation) Range() DateRange {
	return DateRange{Start: r.CheckOutDate, End: r.CheckInDate}
}

// EffectiveQuantity treats a zero or missing quantity as 1.
func (r Reservation) EffectiveQuantity() int {
	if r.Quantity < 1 {
		return 1
	}
	return r.Quantity
}
