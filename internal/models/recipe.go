package models

import "time"

type Recipe struct {
	ID          int                `json:"id" db:"id"`
	Name        string             `json:"name" db:"name"`
	Category    string             `json:"category" db:"category"` // pizza, drink, side
	Price       float64            `json:"price" db:"price"`
	IsActive    bool               `json:"is_active" db:"is_active"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

type RecipeIngredient struct {
	RecipeID       int     `json:"-" db:"recipe_id"`
	IngredientID   int     `json:"ingredient_id" db:"ingredient_id"`
	IngredientName string  `json:"ingredient_name" db:"ingredient_name"`
	Unit           string  `json:"unit" db:"unit"`
	Quantity       float64 `json:"quantity" db:"quantity"`
	CostPerUnit    float64 `json:"cost_per_unit" db:"cost_per_unit"`
}

type RecipeLine struct {
	IngredientID int     `json:"ingredient_id" validate:"required,gt=0"`
	Quantity     float64 `json:"quantity" validate:"required,gt=0"`
}

type RecipeRequest struct {
	Name        string       `json:"name" validate:"required,min=1,max=80"`
	Category    string       `json:"category" validate:"max=40"`
	Price       float64      `json:"price" validate:"gt=0"`
	IsActive    *bool        `json:"is_active"`
	Ingredients []RecipeLine `json:"ingredients" validate:"required,min=1,dive"`
}

type RecipeCost struct {
	RecipeID      int     `json:"recipe_id"`
	Price         float64 `json:"price"`
	PlateCost     float64 `json:"plate_cost"`
	Margin        float64 `json:"margin"`
	MarginPercent float64 `json:"margin_percent"`
}
