package models

import "time"

// Order statuses. Any status is reachable from any other; there is no
// transition graph.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// ValidStatuses is the set of order statuses admins may set.
var ValidStatuses = map[string]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "Other"

// CategoryDisplayOrder is the fixed display order for known categories on
// the shop page. Categories not listed here are appended after, in the
// order they first appear in the catalog.
var CategoryDisplayOrder = []string{"Pendant Sets", "Necklace Sets", "Earrings"}

// User represents a registered customer account. Users are immutable after
// registration; there is no profile editing.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Product represents a catalog entry. Stock is decremented by checkout and
// must never go negative after a committed transaction.
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	Image       string    `json:"image" db:"image"`
	Category    string    `json:"category" db:"category"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is one product's entry within a session cart. Name, price and
// image are snapshotted at add time; quantity is validated against live
// stock at view and checkout time.
type CartLine struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// Cart maps a product id (decimal string key) to its cart line. The cart is
// session-scoped and never persisted to the database.
type Cart map[string]CartLine

// Total returns the sum of price x quantity over all lines.
func (c Cart) Total() float64 {
	var total float64
	for _, line := range c {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// Count returns the total quantity across all lines.
func (c Cart) Count() int {
	var n int
	for _, line := range c {
		n += line.Quantity
	}
	return n
}

// OrderLine is the immutable snapshot of one cart line at checkout time.
// Later changes to the product's price or name do not affect it.
type OrderLine struct {
	Quantity     int     `json:"quantity"`
	PriceAtOrder float64 `json:"price_at_order"`
	Name         string  `json:"name"`
}

// Order represents a placed order. Items are stored as a JSON snapshot
// keyed by product id; status is the only field mutated after creation.
type Order struct {
	ID         int64                `json:"id" db:"id"`
	UserID     int64                `json:"user_id" db:"user_id"`
	Items      map[string]OrderLine `json:"items"`
	TotalPrice float64              `json:"total_price" db:"total_price"`
	Status     string               `json:"status" db:"status"`
	CreatedAt  time.Time            `json:"created_at" db:"created_at"`
}
