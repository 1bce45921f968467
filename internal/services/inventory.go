package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/schollz/closestmatch"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

// stockEpsilon absorbs float rounding when a change empties an ingredient exactly.
const stockEpsilon = 1e-9

type InventoryService struct {
	db             *database.DB
	alerts         *AlertService
	bagSizes       []int
	maxSuggestions int
	log            *logger.Log
}

func NewInventoryService(db *database.DB, alerts *AlertService, bagSizes []int, maxSuggestions int) *InventoryService {
	if len(bagSizes) == 0 {
		bagSizes = []int{2, 3}
	}
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	return &InventoryService{
		db:             db,
		alerts:         alerts,
		bagSizes:       bagSizes,
		maxSuggestions: maxSuggestions,
		log:            logger.New().With("service", "inventory"),
	}
}

const ingredientColumns = `id, name, unit, quantity, min_quantity, cost_per_unit, supplier, created_at, updated_at`

func getIngredient(ctx context.Context, h database.Handle, id int) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := database.Get(ctx, h, &ing, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingredient %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return &ing, nil
}

func (s *InventoryService) GetIngredient(ctx context.Context, id int) (*models.Ingredient, error) {
	return getIngredient(ctx, s.db, id)
}

func (s *InventoryService) ListIngredients(ctx context.Context) ([]models.Ingredient, error) {
	ingredients := []models.Ingredient{}
	if err := database.Select(ctx, s.db, &ingredients, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

// LowStock returns ingredients at or under their minimum quantity.
func (s *InventoryService) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	ingredients := []models.Ingredient{}
	err := database.Select(ctx, s.db, &ingredients, `
		SELECT `+ingredientColumns+` FROM ingredients
		WHERE quantity <= min_quantity
		ORDER BY quantity - min_quantity, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return ingredients, nil
}

// CreateIngredient adds an ingredient. A non-zero opening quantity is
// recorded as a restock so the ledger sums to the current quantity.
func (s *InventoryService) CreateIngredient(ctx context.Context, req *models.IngredientRequest) (*models.Ingredient, error) {
	now := time.Now().UTC()
	ing := &models.Ingredient{
		Name:        strings.TrimSpace(req.Name),
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
		CostPerUnit: req.CostPerUnit,
		Supplier:    req.Supplier,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		id, err := database.InsertID(ctx, tx, `
			INSERT INTO ingredients (name, unit, quantity, min_quantity, cost_per_unit, supplier, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			ing.Name, ing.Unit, ing.Quantity, ing.MinQuantity, ing.CostPerUnit, ing.Supplier, ing.CreatedAt, ing.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: ingredient %q already exists", ErrConflict, ing.Name)
			}
			return fmt.Errorf("failed to create ingredient: %w", err)
		}
		ing.ID = id

		if ing.Quantity > 0 {
			return recordTransaction(ctx, tx, id, ing.Quantity, models.InventoryRestock, "opening stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, ing)
	return ing, nil
}

// UpdateIngredient edits the descriptive fields. Quantity only changes
// through restock, waste, adjust and sales.
func (s *InventoryService) UpdateIngredient(ctx context.Context, id int, req *models.IngredientRequest) (*models.Ingredient, error) {
	res, err := database.Exec(ctx, s.db, `
		UPDATE ingredients SET name = ?, unit = ?, min_quantity = ?, cost_per_unit = ?, supplier = ?, updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(req.Name), req.Unit, req.MinQuantity, req.CostPerUnit, req.Supplier, time.Now().UTC(), id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: ingredient %q already exists", ErrConflict, req.Name)
		}
		return nil, fmt.Errorf("failed to update ingredient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: ingredient %d", ErrNotFound, id)
	}

	ing, err := s.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, ing)
	return ing, nil
}

// DeleteIngredient removes an ingredient that no recipe uses.
func (s *InventoryService) DeleteIngredient(ctx context.Context, id int) error {
	var uses int
	if err := database.Get(ctx, s.db, &uses, `SELECT COUNT(*) FROM recipe_ingredients WHERE ingredient_id = ?`, id); err != nil {
		return fmt.Errorf("failed to check recipe usage: %w", err)
	}
	if uses > 0 {
		return fmt.Errorf("%w: ingredient is used by %d recipe(s)", ErrConflict, uses)
	}

	res, err := database.Exec(ctx, s.db, `DELETE FROM ingredients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ingredient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: ingredient %d", ErrNotFound, id)
	}
	return nil
}

func recordTransaction(ctx context.Context, h database.Handle, ingredientID int, change float64, kind models.InventoryKind, note string) error {
	_, err := database.Exec(ctx, h, `
		INSERT INTO inventory_transactions (ingredient_id, change, kind, note, created_at)
		VALUES (?, ?, ?, ?, ?)`, ingredientID, change, kind, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record inventory transaction: %w", err)
	}
	return nil
}

// applyChange moves an ingredient's quantity by delta and writes the ledger
// row on h. Stock never goes below zero.
func applyChange(ctx context.Context, h database.Handle, ingredientID int, delta float64, kind models.InventoryKind, note string) (*models.Ingredient, error) {
	ing, err := getIngredient(ctx, h, ingredientID)
	if err != nil {
		return nil, err
	}

	newQty := ing.Quantity + delta
	if newQty < -stockEpsilon {
		return nil, fmt.Errorf("%w: %s has %.2f %s, need %.2f", ErrInsufficientStock, ing.Name, ing.Quantity, ing.Unit, -delta)
	}
	if newQty < 0 {
		newQty = 0
	}

	ing.Quantity = newQty
	ing.UpdatedAt = time.Now().UTC()
	if _, err := database.Exec(ctx, h, `UPDATE ingredients SET quantity = ?, updated_at = ? WHERE id = ?`,
		ing.Quantity, ing.UpdatedAt, ing.ID); err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	if err := recordTransaction(ctx, h, ing.ID, delta, kind, note); err != nil {
		return nil, err
	}
	return ing, nil
}

// afterChange raises or clears low-stock alerts. It runs after commit and
// only logs failures.
func (s *InventoryService) afterChange(ctx context.Context, ing *models.Ingredient) {
	if s.alerts == nil {
		return
	}
	if ing.LowStock() {
		if _, err := s.alerts.CheckLowStock(ctx, ing); err != nil {
			s.log.WithError(err).Warn("low stock check failed", "ingredient_id", ing.ID)
		}
		return
	}
	if err := s.alerts.ResolveLowStock(ctx, ing); err != nil {
		s.log.WithError(err).Warn("failed to clear low stock alerts", "ingredient_id", ing.ID)
	}
}

func (s *InventoryService) change(ctx context.Context, id int, delta float64, kind models.InventoryKind, note string) (*models.Ingredient, error) {
	var ing *models.Ingredient
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ing, err = applyChange(ctx, tx, id, delta, kind, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("inventory changed", "ingredient_id", id, "kind", kind, "change", delta, "quantity", ing.Quantity)
	s.afterChange(ctx, ing)
	return ing, nil
}

// Restock adds a delivery to stock.
func (s *InventoryService) Restock(ctx context.Context, id int, req *models.StockChangeRequest) (*models.Ingredient, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return s.change(ctx, id, req.Amount, models.InventoryRestock, req.Note)
}

// Waste removes spoiled or dropped stock.
func (s *InventoryService) Waste(ctx context.Context, id int, req *models.StockChangeRequest) (*models.Ingredient, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return s.change(ctx, id, -req.Amount, models.InventoryWaste, req.Note)
}

// Adjust sets the quantity found by a physical count.
func (s *InventoryService) Adjust(ctx context.Context, id int, req *models.AdjustRequest) (*models.Ingredient, error) {
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	var ing *models.Ingredient
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getIngredient(ctx, tx, id)
		if err != nil {
			return err
		}
		ing, err = applyChange(ctx, tx, id, req.Quantity-current.Quantity, models.InventoryAdjustment, req.Note)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, ing)
	return ing, nil
}

// Transactions returns the ledger for one ingredient, newest first.
func (s *InventoryService) Transactions(ctx context.Context, ingredientID, limit int) ([]models.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	txs := []models.InventoryTransaction{}
	err := database.Select(ctx, s.db, &txs, `
		SELECT id, ingredient_id, change, kind, note, created_at
		FROM inventory_transactions
		WHERE ingredient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, ingredientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory transactions: %w", err)
	}
	return txs, nil
}

// DeleteTransactionsBefore prunes ledger rows older than cutoff.
func (s *InventoryService) DeleteTransactionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := database.Exec(ctx, s.db, `DELETE FROM inventory_transactions WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete inventory transactions: %w", err)
	}
	return res.RowsAffected()
}

// Search returns ingredients whose name contains q, plus close spellings
// when the query does not match anything exactly.
func (s *InventoryService) Search(ctx context.Context, q string) (*models.IngredientSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: search query is empty", ErrInvalidInput)
	}

	all, err := s.ListIngredients(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.IngredientSearchResult{Matches: []models.Ingredient{}, Suggestions: []string{}}
	needle := strings.ToLower(q)
	names := make([]string, 0, len(all))
	exact := false
	for _, ing := range all {
		names = append(names, ing.Name)
		lower := strings.ToLower(ing.Name)
		if strings.Contains(lower, needle) {
			result.Matches = append(result.Matches, ing)
		}
		if lower == needle {
			exact = true
		}
	}

	if exact || len(names) == 0 {
		return result, nil
	}

	cm := closestmatch.New(names, s.bagSizes)
	for _, name := range cm.ClosestN(q, s.maxSuggestions) {
		if name != "" {
			result.Suggestions = append(result.Suggestions, name)
		}
	}
	return result, nil
}
