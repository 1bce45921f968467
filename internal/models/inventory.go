package models

import "time"

type InventoryKind string

const (
	InventoryRestock    InventoryKind = "restock"
	InventorySale       InventoryKind = "sale"
	InventoryWaste      InventoryKind = "waste"
	InventoryAdjustment InventoryKind = "adjustment"
)

type Ingredient struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Unit        string    `json:"unit" db:"unit"` // kg, l, pcs
	Quantity    float64   `json:"quantity" db:"quantity"`
	MinQuantity float64   `json:"min_quantity" db:"min_quantity"`
	CostPerUnit float64   `json:"cost_per_unit" db:"cost_per_unit"`
	Supplier    string    `json:"supplier" db:"supplier"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LowStock reports whether the ingredient is at or under its reorder point.
func (i Ingredient) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

type IngredientRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=80"`
	Unit        string  `json:"unit" validate:"required,max=10"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	MinQuantity float64 `json:"min_quantity" validate:"gte=0"`
	CostPerUnit float64 `json:"cost_per_unit" validate:"gte=0"`
	Supplier    string  `json:"supplier" validate:"max=120"`
}

type StockChangeRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note" validate:"max=200"`
}

// AdjustRequest sets an absolute quantity after a physical count.
type AdjustRequest struct {
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Note     string  `json:"note" validate:"max=200"`
}

type InventoryTransaction struct {
	ID           int           `json:"id" db:"id"`
	IngredientID int           `json:"ingredient_id" db:"ingredient_id"`
	Change       float64       `json:"change" db:"change"`
	Kind         InventoryKind `json:"kind" db:"kind"`
	Note         string        `json:"note" db:"note"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

type IngredientSearchResult struct {
	Matches     []Ingredient `json:"matches"`
	Suggestions []string     `json:"suggestions"`
}
