package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

type RecipeService struct {
	db *database.DB
}

func NewRecipeService(db *database.DB) *RecipeService {
	return &RecipeService{db: db}
}

const recipeColumns = `id, name, category, price, is_active, created_at, updated_at`

func getRecipe(ctx context.Context, h database.Handle, id int) (*models.Recipe, error) {
	var recipe models.Recipe
	err := database.Get(ctx, h, &recipe, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recipe %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	recipe.Ingredients = []models.RecipeIngredient{}
	err = database.Select(ctx, h, &recipe.Ingredients, `
		SELECT ri.recipe_id, ri.ingredient_id, i.name AS ingredient_name, i.unit, ri.quantity, i.cost_per_unit
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ?
		ORDER BY i.name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe ingredients: %w", err)
	}
	return &recipe, nil
}

func (s *RecipeService) GetRecipe(ctx context.Context, id int) (*models.Recipe, error) {
	return getRecipe(ctx, s.db, id)
}

// ListRecipes returns recipes without their ingredient lines.
func (s *RecipeService) ListRecipes(ctx context.Context, includeInactive bool) ([]models.Recipe, error) {
	recipes := []models.Recipe{}
	query := `SELECT ` + recipeColumns + ` FROM recipes`
	var args []interface{}
	if !includeInactive {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY category, name`

	if err := database.Select(ctx, s.db, &recipes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

func replaceLines(ctx context.Context, tx *sqlx.Tx, recipeID int, lines []models.RecipeLine) error {
	if _, err := database.Exec(ctx, tx, `DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("failed to clear recipe ingredients: %w", err)
	}

	seen := make(map[int]bool, len(lines))
	for _, line := range lines {
		if seen[line.IngredientID] {
			return fmt.Errorf("%w: ingredient %d listed twice", ErrInvalidInput, line.IngredientID)
		}
		seen[line.IngredientID] = true

		if _, err := getIngredient(ctx, tx, line.IngredientID); err != nil {
			return err
		}
		if _, err := database.Exec(ctx, tx, `
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity) VALUES (?, ?, ?)`,
			recipeID, line.IngredientID, line.Quantity); err != nil {
			return fmt.Errorf("failed to add recipe ingredient: %w", err)
		}
	}
	return nil
}

func (s *RecipeService) CreateRecipe(ctx context.Context, req *models.RecipeRequest) (*models.Recipe, error) {
	if len(req.Ingredients) == 0 {
		return nil, fmt.Errorf("%w: a recipe needs at least one ingredient", ErrInvalidInput)
	}

	active := req.IsActive == nil || *req.IsActive
	now := time.Now().UTC()

	var recipe *models.Recipe
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		id, err := database.InsertID(ctx, tx, `
			INSERT INTO recipes (name, category, price, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`, strings.TrimSpace(req.Name), req.Category, req.Price, active, now, now)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: recipe %q already exists", ErrConflict, req.Name)
			}
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		if err := replaceLines(ctx, tx, id, req.Ingredients); err != nil {
			return err
		}

		recipe, err = getRecipe(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// UpdateRecipe replaces the recipe fields and its full ingredient list.
func (s *RecipeService) UpdateRecipe(ctx context.Context, id int, req *models.RecipeRequest) (*models.Recipe, error) {
	var recipe *models.Recipe
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getRecipe(ctx, tx, id)
		if err != nil {
			return err
		}

		active := current.IsActive
		if req.IsActive != nil {
			active = *req.IsActive
		}

		_, err = database.Exec(ctx, tx, `
			UPDATE recipes SET name = ?, category = ?, price = ?, is_active = ?, updated_at = ?
			WHERE id = ?`, strings.TrimSpace(req.Name), req.Category, req.Price, active, time.Now().UTC(), id)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: recipe %q already exists", ErrConflict, req.Name)
			}
			return fmt.Errorf("failed to update recipe: %w", err)
		}

		if len(req.Ingredients) > 0 {
			if err := replaceLines(ctx, tx, id, req.Ingredients); err != nil {
				return err
			}
		}

		recipe, err = getRecipe(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// DeleteRecipe retires a recipe that has been sold, and removes it otherwise.
func (s *RecipeService) DeleteRecipe(ctx context.Context, id int) error {
	if _, err := getRecipe(ctx, s.db, id); err != nil {
		return err
	}

	var sold int
	if err := database.Get(ctx, s.db, &sold, `SELECT COUNT(*) FROM sale_items WHERE recipe_id = ?`, id); err != nil {
		return fmt.Errorf("failed to check sales: %w", err)
	}

	if sold > 0 {
		_, err := database.Exec(ctx, s.db, `UPDATE recipes SET is_active = ?, updated_at = ? WHERE id = ?`, false, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to deactivate recipe: %w", err)
		}
		return nil
	}

	if _, err := database.Exec(ctx, s.db, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cost prices one plate from current ingredient costs.
func (s *RecipeService) Cost(ctx context.Context, id int) (*models.RecipeCost, error) {
	recipe, err := s.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}

	var plate float64
	for _, line := range recipe.Ingredients {
		plate += line.Quantity * line.CostPerUnit
	}

	cost := &models.RecipeCost{
		RecipeID:  recipe.ID,
		Price:     recipe.Price,
		PlateCost: round2(plate),
		Margin:    round2(recipe.Price - plate),
	}
	if recipe.Price > 0 {
		cost.MarginPercent = round2((recipe.Price - plate) / recipe.Price * 100)
	}
	return cost, nil
}
