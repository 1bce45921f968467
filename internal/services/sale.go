package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
)

type SaleService struct {
	db        *database.DB
	inventory *InventoryService
	notifier  notify.Notifier
	log       *logger.Log
}

func NewSaleService(db *database.DB, inventory *InventoryService, notifier notify.Notifier) *SaleService {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &SaleService{db: db, inventory: inventory, notifier: notifier, log: logger.New().With("service", "sales")}
}

// CreateSale prices every line, stores the sale and deducts the ingredients
// in one transaction. Any shortage fails the whole sale.
func (s *SaleService) CreateSale(ctx context.Context, employeeID *int, req *models.CreateSaleRequest) (*models.Sale, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", ErrInvalidInput)
	}

	sale := &models.Sale{
		EmployeeID:    employeeID,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	var touched []*models.Ingredient

	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		usage := map[int]float64{}
		items := make([]models.SaleItem, 0, len(req.Items))
		var total float64

		for _, line := range req.Items {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
			}
			recipe, err := getRecipe(ctx, tx, line.RecipeID)
			if err != nil {
				return err
			}
			if !recipe.IsActive {
				return fmt.Errorf("%w: recipe %q is not on sale", ErrInvalidInput, recipe.Name)
			}

			total += recipe.Price * float64(line.Quantity)
			items = append(items, models.SaleItem{
				RecipeID:   recipe.ID,
				RecipeName: recipe.Name,
				Quantity:   line.Quantity,
				UnitPrice:  recipe.Price,
			})
			for _, ri := range recipe.Ingredients {
				usage[ri.IngredientID] += ri.Quantity * float64(line.Quantity)
			}
		}
		sale.Total = round2(total)

		id, err := database.InsertID(ctx, tx, `
			INSERT INTO sales (employee_id, total, payment_method, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`, sale.EmployeeID, sale.Total, sale.PaymentMethod, sale.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		sale.ID = id

		for i := range items {
			items[i].SaleID = id
			itemID, err := database.InsertID(ctx, tx, `
				INSERT INTO sale_items (sale_id, recipe_id, quantity, unit_price)
				VALUES (?, ?, ?, ?)
				RETURNING id`, id, items[i].RecipeID, items[i].Quantity, items[i].UnitPrice)
			if err != nil {
				return fmt.Errorf("failed to add sale item: %w", err)
			}
			items[i].ID = itemID
		}
		sale.Items = items

		ids := make([]int, 0, len(usage))
		for ingredientID := range usage {
			ids = append(ids, ingredientID)
		}
		sort.Ints(ids)

		note := fmt.Sprintf("sale #%d", id)
		for _, ingredientID := range ids {
			ing, err := applyChange(ctx, tx, ingredientID, -usage[ingredientID], models.InventorySale, note)
			if err != nil {
				return err
			}
			touched = append(touched, ing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ing := range touched {
		s.inventory.afterChange(ctx, ing)
	}

	if err := s.notifier.Notify(ctx, notify.EventSaleRecorded, sale); err != nil {
		s.log.WithError(err).Warn("failed to broadcast sale", "sale_id", sale.ID)
	}

	s.log.Info("sale recorded", "sale_id", sale.ID, "total", sale.Total, "items", len(sale.Items))
	return sale, nil
}

func (s *SaleService) GetSale(ctx context.Context, id int) (*models.Sale, error) {
	var sale models.Sale
	err := database.Get(ctx, s.db, &sale, `SELECT id, employee_id, total, payment_method, created_at FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sale %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}

	sale.Items = []models.SaleItem{}
	err = database.Select(ctx, s.db, &sale.Items, `
		SELECT si.id, si.sale_id, si.recipe_id, r.name AS recipe_name, si.quantity, si.unit_price
		FROM sale_items si
		JOIN recipes r ON r.id = si.recipe_id
		WHERE si.sale_id = ?
		ORDER BY si.id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale items: %w", err)
	}
	return &sale, nil
}

// ListSales returns sales in [from, to), newest first, without items.
func (s *SaleService) ListSales(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := database.Select(ctx, s.db, &sales, `
		SELECT id, employee_id, total, payment_method, created_at
		FROM sales
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id DESC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

// Summary totals revenue in [from, to) and ranks the five best sellers.
func (s *SaleService) Summary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{From: from.UTC(), To: to.UTC(), TopRecipes: []models.TopRecipe{}}

	var totals struct {
		Count   int     `db:"count"`
		Revenue float64 `db:"revenue"`
	}
	err := database.Get(ctx, s.db, &totals, `
		SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue
		FROM sales
		WHERE created_at >= ? AND created_at < ?`, summary.From, summary.To)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sales: %w", err)
	}
	summary.Count = totals.Count
	summary.Revenue = round2(totals.Revenue)

	err = database.Select(ctx, s.db, &summary.TopRecipes, `
		SELECT si.recipe_id, r.name, SUM(si.quantity) AS quantity, SUM(si.quantity * si.unit_price) AS revenue
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN recipes r ON r.id = si.recipe_id
		WHERE s.created_at >= ? AND s.created_at < ?
		GROUP BY si.recipe_id, r.name
		ORDER BY quantity DESC, revenue DESC, si.recipe_id
		LIMIT 5`, summary.From, summary.To)
	if err != nil {
		return nil, fmt.Errorf("failed to rank recipes: %w", err)
	}
	return summary, nil
}
