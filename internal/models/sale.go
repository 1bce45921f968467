package models

import "time"

type Sale struct {
	ID            int        `json:"id" db:"id"`
	EmployeeID    *int       `json:"employee_id" db:"employee_id"`
	Total         float64    `json:"total" db:"total"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	Items         []SaleItem `json:"items"`
}

type SaleItem struct {
	ID         int     `json:"id" db:"id"`
	SaleID     int     `json:"-" db:"sale_id"`
	RecipeID   int     `json:"recipe_id" db:"recipe_id"`
	RecipeName string  `json:"recipe_name" db:"recipe_name"`
	Quantity   int     `json:"quantity" db:"quantity"`
	UnitPrice  float64 `json:"unit_price" db:"unit_price"`
}

type SaleLine struct {
	RecipeID int `json:"recipe_id" validate:"required,gt=0"`
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type CreateSaleRequest struct {
	PaymentMethod string     `json:"payment_method" validate:"required,oneof=cash card voucher"`
	Items         []SaleLine `json:"items" validate:"required,min=1,dive"`
}

type TopRecipe struct {
	RecipeID int     `json:"recipe_id" db:"recipe_id"`
	Name     string  `json:"name" db:"name"`
	Quantity int     `json:"quantity" db:"quantity"`
	Revenue  float64 `json:"revenue" db:"revenue"`
}

type SalesSummary struct {
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	Count      int         `json:"count"`
	Revenue    float64     `json:"revenue"`
	TopRecipes []TopRecipe `json:"top_recipes"`
}
