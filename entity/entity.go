package entity

import "time"

// Entity defines the contract for database-aware models.
type Entity interface {
	Table() string
}

// Order is one customer request for a product and quantity.
// OrderID and CreatedAt are assigned by the database on insert and never change.
type Order struct {
	OrderID      int64     `db:"order_id" json:"order_id"`
	CustomerName string    `db:"customer_name" json:"customer_name"`
	Email        string    `db:"email" json:"email"`
	ProductName  string    `db:"product_name" json:"product_name"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Note         string    `db:"note" json:"note"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (o Order) Table() string {
	return "orders"
}

var _ Entity = Order{}

// SameContent reports whether o and other carry the same submitted values,
// ignoring the database assigned OrderID and CreatedAt.
func (o Order) SameContent(other Order) bool {
	return o.CustomerName == other.CustomerName &&
		o.Email == other.Email &&
		o.ProductName == other.ProductName &&
		o.Quantity == other.Quantity &&
		o.Note == other.Note
}
