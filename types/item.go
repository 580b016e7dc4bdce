package types

import "time"

// Priority levels accepted for menu items.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether value is one of the accepted priority levels.
func ValidPriority(value string) bool {
	switch value {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Item represents a single menu entry in the menucraft system.
// The API historically called this resource "product"; the legacy
// /products routes and the duplicated owner field keep old clients working.
type Item struct {
	// ID is the unique identifier of the item.
	ID int `json:"id" db:"id"`

	// Name is the display name of the menu entry.
	Name string `json:"name" db:"name"`

	// Summary is a one-line teaser shown in listings.
	Summary string `json:"summary" db:"summary"`

	// Description contains the full menu-entry text.
	Description string `json:"description" db:"description"`

	// Image is the URL of the item's picture. A placeholder is assigned
	// when the creator does not provide one.
	Image string `json:"image" db:"image"`

	// Category groups items on the menu (e.g., "Starter", "Dessert").
	// Category filters match case-insensitively.
	Category string `json:"category" db:"category"`

	// Price is the item price. It is never negative.
	Price float64 `json:"price" db:"price"`

	// Priority orders items within a category: "low", "medium", or "high".
	// Defaults to "medium".
	Priority string `json:"priority" db:"priority"`

	// AvailableDate is the timestamp from which the item is offered.
	// Defaults to the creation time.
	AvailableDate time.Time `json:"available_date" db:"available_date"`

	// OwnerID is the canonical identifier of the user who created the item.
	// Rows written by older releases stored the owner under a user_id column
	// instead; the store resolves either column into this single field, so
	// ownership checks never branch on where the value was stored.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// OwnerEmail is a snapshot of the creator's email taken at create time.
	OwnerEmail string `json:"owner_email" db:"owner_email"`

	// CreatedAt is the timestamp at which the item was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the item.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnedBy reports whether the given user may mutate the item. Only the
// resolved owner qualifies; ownership cannot be transferred after creation.
func (i Item) OwnedBy(userID int) bool {
	return userID > 0 && i.OwnerID == userID
}
