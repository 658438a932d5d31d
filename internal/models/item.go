package models

import (
	"time"

	"gorm.io/gorm"
)

// ItemStatus defines the stored lifecycle state of a catalog item.
type ItemStatus string

const (
	// ItemStatusAvailable indicates the item can be requested.
	ItemStatusAvailable ItemStatus = "available"
	// ItemStatusBorrowed indicates the item is out with a borrower.
	ItemStatusBorrowed ItemStatus = "currently_borrowed"
	// ItemStatusRequested is a legacy global speculative hold. No transition
	// writes it anymore; the deny path still clears it when found.
	ItemStatusRequested ItemStatus = "currently_requested"
	// ItemStatusRepairing indicates the item is being repaired.
	ItemStatusRepairing ItemStatus = "being_repaired"
	// ItemStatusLost indicates the item cannot be located.
	ItemStatusLost ItemStatus = "lost"
	// ItemStatusArchived indicates the item was withdrawn from circulation.
	ItemStatusArchived ItemStatus = "archived"
)

// ItemStatuses enumerates every valid stored status.
var ItemStatuses = []ItemStatus{
	ItemStatusAvailable,
	ItemStatusBorrowed,
	ItemStatusRequested,
	ItemStatusRepairing,
	ItemStatusLost,
	ItemStatusArchived,
}

// Valid reports whether the status is one of the defined enumeration values.
func (s ItemStatus) Valid() bool {
	for _, known := range ItemStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable form of the status.
func (s ItemStatus) Label() string {
	switch s {
	case ItemStatusAvailable:
		return "Available"
	case ItemStatusBorrowed:
		return "Borrowed"
	case ItemStatusRequested:
		return "Requested"
	case ItemStatusRepairing:
		return "Being repaired"
	case ItemStatusLost:
		return "Lost"
	case ItemStatusArchived:
		return "Archived"
	default:
		return string(s)
	}
}

// ItemLocation defines where an item is physically kept.
type ItemLocation string

const (
	// LocationMainWarehouse is the primary storage site.
	LocationMainWarehouse ItemLocation = "main_warehouse"
	// LocationAuxWarehouse is the overflow storage site.
	LocationAuxWarehouse ItemLocation = "aux_warehouse"
	// LocationPatron means the item is at a patron's location.
	LocationPatron ItemLocation = "patrons_location"
	// LocationRemoteStorage is long-term off-site storage.
	LocationRemoteStorage ItemLocation = "remote_storage"
)

// ItemLocations enumerates every valid location.
var ItemLocations = []ItemLocation{
	LocationMainWarehouse,
	LocationAuxWarehouse,
	LocationPatron,
	LocationRemoteStorage,
}

// Valid reports whether the location is a defined enumeration value.
func (l ItemLocation) Valid() bool {
	for _, known := range ItemLocations {
		if l == known {
			return true
		}
	}
	return false
}

// Item represents a lendable inventory entry.
type Item struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	UUID        string       `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Identifier  string       `gorm:"size:120;uniqueIndex;not null" json:"identifier"`
	Description string       `gorm:"type:text" json:"description"`
	Status      ItemStatus   `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	Location    ItemLocation `gorm:"type:varchar(20);not null;default:'main_warehouse'" json:"location"`
	BorrowerID  *uint        `json:"borrower_id"`
	Borrower    *User        `gorm:"foreignKey:BorrowerID;constraint:OnDelete:SET NULL" json:"borrower,omitempty"`
	ImagePath   string       `json:"image_path"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Collections []Collection `gorm:"many2many:collection_items;" json:"-"`
}

// TableName specifies the table name for GORM.
func (Item) TableName() string {
	return "items"
}
