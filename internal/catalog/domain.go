package catalog

import (
	"context"
	"errors"
)

// Category identifies which of the three product tables a product lives in.
type Category string

const (
	CategoryMedicine   Category = "medicine"
	CategorySupplement Category = "supplement"
	CategoryEquipment  Category = "equipment"
)

// ProductInfo is the read-only product record surfaced to order views.
type ProductInfo struct {
	ID           int64
	Name         string
	Manufacturer string
	Code         string
	Category     Category
}

// ErrNotFound indicates the product ID resolves in none of the categories.
var ErrNotFound = errors.New("catalog: product not found")

// Resolver looks up product records by opaque ID. Implementations hide the
// three-category fan-out behind this single capability.
type Resolver interface {
	Resolve(ctx context.Context, productID int64) (ProductInfo, error)
}
