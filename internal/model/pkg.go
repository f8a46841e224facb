package model

// PackageEntry is one snapshotted row of a saved package. Inventory-backed
// entries keep the unit reference so a later load can re-validate
// availability; custom entries keep only their label.
type PackageEntry struct {
	Label       string `json:"label"`
	Checked     bool   `json:"checked,omitempty"`
	IsInventory bool   `json:"isInventory,omitempty"`
	InventoryID string `json:"inventoryId,omitempty"`
	Serial      string `json:"serial,omitempty"`
}

// Package is a reusable named bundle of gear references, detached from any
// event. Loading a package never mutates it; stale inventory references are
// re-validated against live availability before anything is committed.
type Package struct {
	ID           string                    `json:"id,omitempty"`
	Name         string                    `json:"name"`
	Description  string                    `json:"description,omitempty"`
	Categories   map[string][]PackageEntry `json:"categories"`
	InventoryIDs []string                  `json:"inventoryIds,omitempty"`
}

// Empty reports whether the package has no entries in any category.
func (p *Package) Empty() bool {
	for _, entries := range p.Categories {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}
