package types

import "time"

// Category is an independent, named grouping for articles. Articles
// reference categories by name, not by id, so deleting a category does
// not touch articles.
type Category struct {
	// ID is the unique identifier of the category.
	ID int `json:"id" db:"id"`

	// Name is the category name. Unique case-insensitively; stored
	// trimmed.
	Name string `json:"name" db:"name"`

	// Description explains what the category covers.
	Description string `json:"description" db:"description"`

	// CreatedAt is the timestamp at which the category was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
