// Package catalog serves the storefront's product list.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
}

type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int) (Product, bool, error)
}

// Seed is the demo assortment both stores start from.
func Seed() []Product {
	return []Product{
		{ID: 1, Name: "Premium Noise-Cancelling Headphones", Price: decimal.RequireFromString("249.99"), Image: "https://picsum.photos/id/237/300/200?blur=1", Description: "Immersive sound experience with active noise cancellation."},
		{ID: 2, Name: "Advanced Fitness Smartwatch", Price: decimal.RequireFromString("199.99"), Image: "https://picsum.photos/id/250/300/200?grayscale", Description: "Track your health and fitness with precision."},
		{ID: 3, Name: "Compact Portable Bluetooth Speaker", Price: decimal.RequireFromString("79.99"), Image: "https://picsum.photos/id/260/300/200", Description: "Rich sound on the go, perfect for any adventure."},
		{ID: 4, Name: "Ultra-Thin E-Reader", Price: decimal.RequireFromString("129.99"), Image: "https://picsum.photos/id/270/300/200?blur=2", Description: "Read comfortably for hours with no glare."},
		{ID: 5, Name: "Ergonomic RGB Gaming Mouse", Price: decimal.RequireFromString("49.99"), Image: "https://picsum.photos/id/280/300/200", Description: "Precision and comfort for serious gamers."},
		{ID: 6, Name: "Customizable Mechanical Keyboard", Price: decimal.RequireFromString("119.99"), Image: "https://picsum.photos/id/290/300/200?grayscale", Description: "Tactile feedback and customizable backlighting."},
		{ID: 7, Name: "Multi-Port USB-C Hub", Price: decimal.RequireFromString("39.99"), Image: "https://picsum.photos/id/300/300/200", Description: "Expand your laptop's connectivity with ease."},
		{ID: 8, Name: "Adjustable Laptop Stand", Price: decimal.RequireFromString("59.99"), Image: "https://picsum.photos/id/310/300/200?blur=1", Description: "Improve your posture and cooling with this sleek stand."},
	}
}
