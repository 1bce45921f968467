package services

import (
	"context"
	"testing"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createEmployee(t *testing.T, db *database.DB, username string) *models.Employee {
	t.Helper()
	e, err := NewEmployeeService(db).CreateEmployee(context.Background(), &models.CreateEmployeeRequest{
		Username:    username,
		Password:    "secret123",
		DisplayName: username,
		Role:        models.RoleStaff,
	})
	if err != nil {
		t.Fatalf("CreateEmployee(%s): %v", username, err)
	}
	return e
}

func createIngredient(t *testing.T, svc *InventoryService, name string, qty, min float64) *models.Ingredient {
	t.Helper()
	ing, err := svc.CreateIngredient(context.Background(), &models.IngredientRequest{
		Name:        name,
		Unit:        "kg",
		Quantity:    qty,
		MinQuantity: min,
		CostPerUnit: 2,
	})
	if err != nil {
		t.Fatalf("CreateIngredient(%s): %v", name, err)
	}
	return ing
}
