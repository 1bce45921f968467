package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
)

func TestCreateSaleDeductsStock(t *testing.T) {
	db, inv, rec := newInventory(t)
	ctx := context.Background()
	recipes := NewRecipeService(db)
	sales := NewSaleService(db, inv, rec)

	dough := createIngredient(t, inv, "Dough", 10, 2)
	cheese := createIngredient(t, inv, "Cheese", 1, 0.5)

	margherita, err := recipes.CreateRecipe(ctx, &models.RecipeRequest{
		Name:  "Margherita",
		Price: 9.5,
		Ingredients: []models.RecipeLine{
			{IngredientID: dough.ID, Quantity: 0.25},
			{IngredientID: cheese.ID, Quantity: 0.2},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	e := createEmployee(t, db, "ana")
	sale, err := sales.CreateSale(ctx, &e.ID, &models.CreateSaleRequest{
		PaymentMethod: "card",
		Items:         []models.SaleLine{{RecipeID: margherita.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if sale.Total != 19 {
		t.Fatalf("total: want=19 got=%v", sale.Total)
	}

	got, _ := inv.GetIngredient(ctx, cheese.ID)
	if got.Quantity < 0.599 || got.Quantity > 0.601 {
		t.Fatalf("cheese: want=0.6 got=%v", got.Quantity)
	}
	if _, ok := rec.Find(notify.EventSaleRecorded); !ok {
		t.Fatal("expected sale_recorded event")
	}

	stored, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if len(stored.Items) != 1 || stored.Items[0].RecipeName != "Margherita" {
		t.Fatalf("unexpected items %+v", stored.Items)
	}
}

func TestCreateSaleFailsWhole(t *testing.T) {
	db, inv, rec := newInventory(t)
	ctx := context.Background()
	recipes := NewRecipeService(db)
	sales := NewSaleService(db, inv, rec)

	dough := createIngredient(t, inv, "Dough", 10, 0)
	truffle := createIngredient(t, inv, "Truffle", 0.1, 0)

	plain, err := recipes.CreateRecipe(ctx, &models.RecipeRequest{
		Name: "Plain", Price: 5, Ingredients: []models.RecipeLine{{IngredientID: dough.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	fancy, err := recipes.CreateRecipe(ctx, &models.RecipeRequest{
		Name: "Tartufo", Price: 20, Ingredients: []models.RecipeLine{
			{IngredientID: dough.ID, Quantity: 1},
			{IngredientID: truffle.ID, Quantity: 0.05},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	_, err = sales.CreateSale(ctx, nil, &models.CreateSaleRequest{
		PaymentMethod: "cash",
		Items: []models.SaleLine{
			{RecipeID: plain.ID, Quantity: 1},
			{RecipeID: fancy.ID, Quantity: 3},
		},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want=%v got=%v", ErrInsufficientStock, err)
	}

	got, _ := inv.GetIngredient(ctx, dough.ID)
	if got.Quantity != 10 {
		t.Fatalf("dough should be untouched, got %v", got.Quantity)
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM sales`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("sale row persisted after failure")
	}
	if _, ok := rec.Find(notify.EventSaleRecorded); ok {
		t.Fatal("failed sale must not be broadcast")
	}
}

func TestSalesSummaryAndCost(t *testing.T) {
	db, inv, _ := newInventory(t)
	ctx := context.Background()
	recipes := NewRecipeService(db)
	sales := NewSaleService(db, inv, nil)

	dough := createIngredient(t, inv, "Dough", 100, 0) // cost 2 per kg
	r, err := recipes.CreateRecipe(ctx, &models.RecipeRequest{
		Name: "Focaccia", Price: 4, Ingredients: []models.RecipeLine{{IngredientID: dough.ID, Quantity: 0.5}},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	cost, err := recipes.Cost(ctx, r.ID)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost.PlateCost != 1 || cost.Margin != 3 || cost.MarginPercent != 75 {
		t.Fatalf("unexpected cost %+v", cost)
	}

	for i := 0; i < 3; i++ {
		if _, err := sales.CreateSale(ctx, nil, &models.CreateSaleRequest{
			PaymentMethod: "cash",
			Items:         []models.SaleLine{{RecipeID: r.ID, Quantity: 2}},
		}); err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	summary, err := sales.Summary(ctx, from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Count != 3 || summary.Revenue != 24 {
		t.Fatalf("summary: %+v", summary)
	}
	if len(summary.TopRecipes) != 1 || summary.TopRecipes[0].Quantity != 6 {
		t.Fatalf("top recipes: %+v", summary.TopRecipes)
	}

	list, err := sales.ListSales(ctx, from, to)
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListSales: want=3 got=%d", len(list))
	}

	if err := recipes.DeleteRecipe(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	retired, err := recipes.GetRecipe(ctx, r.ID)
	if err != nil {
		t.Fatalf("sold recipe should be kept: %v", err)
	}
	if retired.IsActive {
		t.Fatal("sold recipe should be deactivated")
	}
}
