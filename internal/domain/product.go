package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned when a listing is submitted without one.
const DefaultCategory = "Other"

// AllCategories is the filter value meaning "no category filter".
const AllCategories = "All"

// Product is a listing together with its images.
type Product struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	UserID      uuid.UUID      `json:"user_id" db:"user_id"`
	Name        string         `json:"name" db:"name"`
	Price       float64        `json:"price" db:"price"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	Images      []ProductImage `json:"images"`
	User        *Seller        `json:"user,omitempty"`
}

// ProductImage is one uploaded picture of a product. Position keeps the
// submission order.
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Position  int       `json:"-" db:"position"`
}

// Seller holds the owner's public fields shown next to a listing. Email is
// only filled in for the detail view.
type Seller struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	SortOrder   int       `json:"-" db:"sort_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
