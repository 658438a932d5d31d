package models

import "time"

// Visibility defines who may read a collection.
type Visibility string

const (
	// VisibilityPublic makes a collection world-readable.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate restricts reads to the creator, librarians, and the
	// allowed-users list.
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether the visibility is a defined enumeration value.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Collection is a curated named set of items.
//
// Invariant: an item belongs to at most one private collection, and an item
// in a private collection belongs to no public collection. Enforced by the
// collection service before memberships are persisted.
type Collection struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Slug        string     `gorm:"size:80;uniqueIndex;not null" json:"slug"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Visibility  Visibility `gorm:"type:varchar(7);not null;default:'public';index" json:"visibility"`
	CreatorID   *uint      `json:"creator_id"`
	Creator     *User      `gorm:"foreignKey:CreatorID;constraint:OnDelete:SET NULL" json:"creator,omitempty"`
	ImagePath   string     `json:"image_path"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items        []Item `gorm:"many2many:collection_items;" json:"items,omitempty"`
	AllowedUsers []User `gorm:"many2many:collection_allowed_users;" json:"allowed_users,omitempty"`
}

// TableName specifies the table name for GORM.
func (Collection) TableName() string {
	return "collections"
}
