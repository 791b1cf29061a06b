package types

import (
	"strings"
)

// ItemType tells whether a listing reports something lost or something found.
type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// ParseItemType returns the item type named by raw and whether it is valid.
func ParseItemType(raw string) (ItemType, bool) {
	switch ItemType(strings.TrimSpace(raw)) {
	case ItemTypeLost:
		return ItemTypeLost, true
	case ItemTypeFound:
		return ItemTypeFound, true
	default:
		return "", false
	}
}

// Item represents a single lost or found listing on the board.
type Item struct {
	// ID is the opaque unique identifier of the listing. It is generated
	// at creation and never changes.
	ID string `json:"id" db:"id"`

	// Type is either "lost" or "found" and is fixed at creation.
	Type ItemType `json:"type" db:"type"`

	// ItemName is the short human-readable name of the item.
	ItemName string `json:"itemName" db:"itemName"`

	// Location is where the item was lost or found.
	Location string `json:"location" db:"location"`

	// Description is free-form detail. It is the only field that can be
	// changed after creation.
	Description string `json:"description" db:"description"`

	// Contact is how to reach the person who posted the listing. Clients
	// display it masked until the user explicitly reveals it.
	Contact string `json:"contact" db:"contact"`

	// ImageURL references the stored photo, if one was uploaded at creation.
	ImageURL *string `json:"imageUrl" db:"imageUrl"`

	// CreatedAt is the creation time in Unix milliseconds.
	CreatedAt int64 `json:"createdAt" db:"createdAt"`

	// UpdatedAt is the time of the most recent change in Unix milliseconds.
	UpdatedAt int64 `json:"updatedAt" db:"updatedAt"`
}

// Masked returns a copy of the item with its contact masked.
func (i Item) Masked() Item {
	i.Contact = MaskContact(i.Contact)
	return i
}

// NewItemInput carries the client-supplied fields of a listing before the
// server assigns its id and timestamps.
type NewItemInput struct {
	Type        string `json:"type"`
	ItemName    string `json:"itemName"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Contact     string `json:"contact"`
}

// Validate returns one message per missing or invalid field.
func (in NewItemInput) Validate() []string {
	var problems []string
	if strings.TrimSpace(in.ItemName) == "" {
		problems = append(problems, "itemName required")
	}
	if _, ok := ParseItemType(in.Type); !ok {
		problems = append(problems, `type must be "lost" or "found"`)
	}
	if strings.TrimSpace(in.Location) == "" {
		problems = append(problems, "location required")
	}
	if strings.TrimSpace(in.Contact) == "" {
		problems = append(problems, "contact required")
	}
	return problems
}

// MaskContact hides all but the first and last two characters of a contact.
func MaskContact(contact string) string {
	runes := []rune(contact)
	switch {
	case len(runes) == 0:
		return "—"
	case len(runes) <= 4:
		return "****"
	default:
		return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
	}
}
