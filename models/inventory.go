package models

// InventoryStatus is the physical condition of an inventory item.
type InventoryStatus string

const (
	InventoryWorking    InventoryStatus = "working"
	InventoryRepair     InventoryStatus = "repair"
	InventoryBroken     InventoryStatus = "broken"
	InventoryWrittenOff InventoryStatus = "written_off"
)

func (s InventoryStatus) Valid() bool {
	switch s {
	case InventoryWorking, InventoryRepair, InventoryBroken, InventoryWrittenOff:
		return true
	}
	return false
}

// InventoryItem is a tracked piece of equipment.
type InventoryItem struct {
	ID           string          `db:"id"            json:"id"`
	Name         string          `db:"name"          json:"name"`
	Type         string          `db:"type"          json:"type"`
	SerialNumber string          `db:"serial_number" json:"serial_number,omitempty"`
	Location     string          `db:"location"      json:"location,omitempty"`
	Status       InventoryStatus `db:"status"        json:"status"`
	Description  string          `db:"description"   json:"description,omitempty"`
	Responsible  string          `db:"responsible"   json:"responsible,omitempty"`
	CreatedAt    string          `db:"created_at"    json:"created_at"`
	UpdatedAt    string          `db:"updated_at"    json:"updated_at"`
}
