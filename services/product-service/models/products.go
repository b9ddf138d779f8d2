package models

import "github.com/google/uuid"

// DefaultDescription is stored when an imported row has no description.
const DefaultDescription = "No description provided"

// Product is a row of the products table.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
}

// Stock is a row of the stocks table, one per product.
type Stock struct {
	ProductID uuid.UUID `json:"productId"`
	Count     int       `json:"count"`
}

// ProductWithStock is a product joined with its stock count.
type ProductWithStock struct {
	Product
	Count int `json:"count"`
}

// NewProduct is a validated import row, ready to be committed.
type NewProduct struct {
	Title       string
	Description string
	Price       float64
	Count       int
}
