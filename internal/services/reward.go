package services

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

//go:embed badges.yaml
var defaultBadges []byte

// RewardService owns points, streaks, badges and the reward history.
type RewardService struct {
	db  database.Handle
	log *logger.Log
}

func NewRewardService(db database.Handle) *RewardService {
	return &RewardService{db: db, log: logger.New().With("service", "rewards")}
}

// WithTx returns a copy whose queries run on tx.
func (s *RewardService) WithTx(tx database.Handle) *RewardService {
	return &RewardService{db: tx, log: s.log}
}

const pointsColumns = `employee_id, total_points, current_streak, longest_streak, level, updated_at`

// GetPointsState returns the stored state, or the initial state when the
// employee has never been scored. It does not create a row.
func (s *RewardService) GetPointsState(ctx context.Context, employeeID int) (*models.PointsState, error) {
	var state models.PointsState
	err := database.Get(ctx, s.db, &state, `SELECT `+pointsColumns+` FROM employee_points WHERE employee_id = ?`, employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.PointsState{EmployeeID: employeeID, Level: 1}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get points state: %w", err)
	}
	return &state, nil
}

// ensureState creates the points row on first contact and returns it.
func (s *RewardService) ensureState(ctx context.Context, employeeID int) (*models.PointsState, error) {
	_, err := database.Exec(ctx, s.db, `
		INSERT INTO employee_points (employee_id, total_points, current_streak, longest_streak, level, updated_at)
		VALUES (?, 0, 0, 0, 1, ?)
		ON CONFLICT (employee_id) DO NOTHING`, employeeID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize points state: %w", err)
	}

	var state models.PointsState
	if err := database.Get(ctx, s.db, &state, `SELECT `+pointsColumns+` FROM employee_points WHERE employee_id = ?`, employeeID); err != nil {
		return nil, fmt.Errorf("failed to get points state: %w", err)
	}
	return &state, nil
}

// AddPoints adds delta to the employee's total and recomputes the level.
func (s *RewardService) AddPoints(ctx context.Context, employeeID, delta int) (models.PointsUpdate, error) {
	if delta < 0 {
		return models.PointsUpdate{}, fmt.Errorf("%w: points delta must be non-negative", ErrInvalidInput)
	}

	state, err := s.ensureState(ctx, employeeID)
	if err != nil {
		return models.PointsUpdate{}, err
	}

	newTotal := state.TotalPoints + delta
	newLevel := CalculateLevel(newTotal)

	_, err = database.Exec(ctx, s.db, `
		UPDATE employee_points SET total_points = ?, level = ?, updated_at = ?
		WHERE employee_id = ?`, newTotal, newLevel, time.Now().UTC(), employeeID)
	if err != nil {
		return models.PointsUpdate{}, fmt.Errorf("failed to update points: %w", err)
	}

	return models.PointsUpdate{
		NewTotal:  newTotal,
		NewLevel:  newLevel,
		LeveledUp: newLevel > state.Level,
	}, nil
}

// UpdateStreak extends the current streak on success and resets it otherwise.
// The longest streak never decreases.
func (s *RewardService) UpdateStreak(ctx context.Context, employeeID int, success bool) (models.StreakUpdate, error) {
	state, err := s.ensureState(ctx, employeeID)
	if err != nil {
		return models.StreakUpdate{}, err
	}

	newStreak := 0
	if success {
		newStreak = state.CurrentStreak + 1
	}
	longest := max(state.LongestStreak, newStreak)

	_, err = database.Exec(ctx, s.db, `
		UPDATE employee_points SET current_streak = ?, longest_streak = ?, updated_at = ?
		WHERE employee_id = ?`, newStreak, longest, time.Now().UTC(), employeeID)
	if err != nil {
		return models.StreakUpdate{}, fmt.Errorf("failed to update streak: %w", err)
	}

	return models.StreakUpdate{NewStreak: newStreak, LongestStreak: longest}, nil
}

// RecordReward appends a row to the reward history. History rows are never
// updated or deleted.
func (s *RewardService) RecordReward(ctx context.Context, entry models.RewardHistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := database.Exec(ctx, s.db, `
		INSERT INTO reward_history (employee_id, title, description, icon, points_earned, reason, week_start, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EmployeeID, entry.Title, entry.Description, entry.Icon, entry.PointsEarned, entry.Reason, entry.WeekStart, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record reward: %w", err)
	}
	return nil
}

// badgeStats holds the per-employee figures badge rules are evaluated against.
type badgeStats struct {
	avgCompletion float64
	ratedWeeks    int
	longestStreak int
	shiftCount    int
	rewardsCount  int
	perfectWeeks  int
}

func (s *RewardService) loadBadgeStats(ctx context.Context, employeeID int) (*badgeStats, error) {
	var records []models.WeeklyRecord
	err := database.Select(ctx, s.db, &records, `
		SELECT id, employee_id, week_start, tasks_completed, total_tasks, reward
		FROM weekly_performance WHERE employee_id = ?`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly records: %w", err)
	}

	stats := &badgeStats{}
	var rateSum float64
	for _, r := range records {
		if r.TotalTasks > 0 {
			rateSum += r.CompletionRate()
			stats.ratedWeeks++
			if r.TasksCompleted == r.TotalTasks {
				stats.perfectWeeks++
			}
		}
		if r.Reward != nil {
			stats.rewardsCount++
		}
	}
	if stats.ratedWeeks > 0 {
		stats.avgCompletion = rateSum / float64(stats.ratedWeeks)
	}

	if err := database.Get(ctx, s.db, &stats.shiftCount, `SELECT COUNT(*) FROM shifts WHERE employee_id = ?`, employeeID); err != nil {
		return nil, fmt.Errorf("failed to count shifts: %w", err)
	}

	state, err := s.GetPointsState(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	stats.longestStreak = state.LongestStreak

	return stats, nil
}

func (st *badgeStats) qualifies(b models.Badge) bool {
	switch b.RequirementType {
	case models.RequirementCompletionRate:
		return st.ratedWeeks > 0 && st.avgCompletion >= b.RequirementValue
	case models.RequirementStreak:
		return float64(st.longestStreak) >= b.RequirementValue
	case models.RequirementTotalTasks:
		return float64(st.shiftCount) >= b.RequirementValue
	case models.RequirementRewardsCount:
		return float64(st.rewardsCount) >= b.RequirementValue
	case models.RequirementPerfectWeeks:
		return float64(st.perfectWeeks) >= b.RequirementValue
	}
	return false
}

// insertAward reports false when the pair already exists, which is how a
// concurrent evaluation that lost the race is absorbed.
func (s *RewardService) insertAward(ctx context.Context, employeeID int, badgeID string) (bool, error) {
	res, err := database.Exec(ctx, s.db, `
		INSERT INTO employee_badges (employee_id, badge_id, awarded_at) VALUES (?, ?, ?)
		ON CONFLICT (employee_id, badge_id) DO NOTHING`, employeeID, badgeID, time.Now().UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert badge award: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read badge award result: %w", err)
	}
	return n == 1, nil
}

// CheckAndAwardBadges evaluates every active badge the employee does not hold
// yet and awards the ones whose requirement is met.
func (s *RewardService) CheckAndAwardBadges(ctx context.Context, employeeID int) ([]models.AwardedBadge, error) {
	var candidates []models.Badge
	err := database.Select(ctx, s.db, &candidates, `
		SELECT id, name, description, icon, requirement_type, requirement_value, points_value, active, created_at
		FROM badges
		WHERE active = ? AND id NOT IN (SELECT badge_id FROM employee_badges WHERE employee_id = ?)
		ORDER BY id`, true, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate badges: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	stats, err := s.loadBadgeStats(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	var awarded []models.AwardedBadge
	for _, b := range candidates {
		if !stats.qualifies(b) {
			continue
		}

		inserted, err := s.insertAward(ctx, employeeID, b.ID)
		if err != nil {
			return awarded, err
		}
		if !inserted {
			s.log.Debug("badge already awarded", "employee_id", employeeID, "badge_id", b.ID)
			continue
		}

		if _, err := s.AddPoints(ctx, employeeID, b.PointsValue); err != nil {
			return awarded, err
		}

		if err := s.RecordReward(ctx, models.RewardHistoryEntry{
			EmployeeID:   employeeID,
			Title:        b.Name,
			Description:  fmt.Sprintf("Earned \"%s\" badge", b.Name),
			Icon:         b.Icon,
			PointsEarned: b.PointsValue,
			Reason:       "badge",
		}); err != nil {
			return awarded, err
		}

		awarded = append(awarded, models.AwardedBadge{
			ID:            b.ID,
			Name:          b.Name,
			Icon:          b.Icon,
			PointsAwarded: b.PointsValue,
		})
	}

	return awarded, nil
}

// WeeklyRecords returns the records for a week, best performers first.
func (s *RewardService) WeeklyRecords(ctx context.Context, weekStart string) ([]models.WeeklyRecord, error) {
	records := []models.WeeklyRecord{}
	err := database.Select(ctx, s.db, &records, `
		SELECT w.id, w.employee_id, e.display_name AS employee_name, w.week_start,
			w.tasks_completed, w.total_tasks, w.reward, w.scored_at
		FROM weekly_performance w
		JOIN employees e ON e.id = w.employee_id
		WHERE w.week_start = ?
		ORDER BY w.tasks_completed DESC, w.id ASC`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly records: %w", err)
	}
	return records, nil
}

// MarkScored claims a weekly record for scoring. It reports false when the
// record was already scored, so a week counts toward points and streaks once.
func (s *RewardService) MarkScored(ctx context.Context, recordID int) (bool, error) {
	res, err := database.Exec(ctx, s.db, `
		UPDATE weekly_performance SET scored_at = ?
		WHERE id = ? AND scored_at IS NULL`, time.Now().UTC(), recordID)
	if err != nil {
		return false, fmt.Errorf("failed to mark weekly record scored: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark weekly record scored: %w", err)
	}
	return n == 1, nil
}

// SetWeeklyReward stores the reward label on a weekly record.
func (s *RewardService) SetWeeklyReward(ctx context.Context, recordID int, label string) error {
	_, err := database.Exec(ctx, s.db, `UPDATE weekly_performance SET reward = ? WHERE id = ?`, label, recordID)
	if err != nil {
		return fmt.Errorf("failed to set weekly reward: %w", err)
	}
	return nil
}

// ListBadges returns the badge catalogue.
func (s *RewardService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	badges := []models.Badge{}
	err := database.Select(ctx, s.db, &badges, `
		SELECT id, name, description, icon, requirement_type, requirement_value, points_value, active, created_at
		FROM badges ORDER BY requirement_type, requirement_value`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

// GetProfile returns points, badges and the latest history rows for an employee.
func (s *RewardService) GetProfile(ctx context.Context, employeeID, historyLimit int) (*models.RewardProfile, error) {
	if historyLimit <= 0 {
		historyLimit = 20
	}

	state, err := s.GetPointsState(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	profile := &models.RewardProfile{Points: *state, Badges: []models.EmployeeBadge{}, History: []models.RewardHistoryEntry{}}

	err = database.Select(ctx, s.db, &profile.Badges, `
		SELECT b.id, b.name, b.description, b.icon, b.requirement_type, b.requirement_value,
			b.points_value, b.active, b.created_at, eb.awarded_at
		FROM employee_badges eb
		JOIN badges b ON b.id = eb.badge_id
		WHERE eb.employee_id = ?
		ORDER BY eb.awarded_at`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee badges: %w", err)
	}

	err = database.Select(ctx, s.db, &profile.History, `
		SELECT id, employee_id, title, description, icon, points_earned, reason, week_start, created_at
		FROM reward_history
		WHERE employee_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, employeeID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reward history: %w", err)
	}

	return profile, nil
}

// Leaderboard ranks active employees by total points.
func (s *RewardService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	entries := []models.LeaderboardEntry{}
	err := database.Select(ctx, s.db, &entries, `
		SELECT p.employee_id, e.display_name, p.total_points, p.level, p.current_streak,
			(SELECT COUNT(*) FROM employee_badges b WHERE b.employee_id = p.employee_id) AS badge_count
		FROM employee_points p
		JOIN employees e ON e.id = p.employee_id
		WHERE e.is_active = ?
		ORDER BY p.total_points DESC, p.employee_id ASC
		LIMIT ?`, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return entries, nil
}

type badgeSeed struct {
	models.Badge `yaml:",inline"`
	Active       *bool `yaml:"active"`
}

// LoadBadgeCatalogue parses a badge YAML file; an empty path selects the
// built-in catalogue. Badges default to active.
func LoadBadgeCatalogue(path string) ([]models.Badge, error) {
	raw := defaultBadges
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read badge file: %w", err)
		}
		raw = b
	}

	var doc struct {
		Badges []badgeSeed `yaml:"badges"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse badge file: %w", err)
	}

	badges := make([]models.Badge, 0, len(doc.Badges))
	for _, seed := range doc.Badges {
		if seed.ID == "" {
			return nil, fmt.Errorf("%w: badge without id", ErrInvalidInput)
		}
		b := seed.Badge
		b.Active = seed.Active == nil || *seed.Active
		badges = append(badges, b)
	}
	return badges, nil
}

// SeedBadges inserts catalogue entries that are not present yet. Existing
// definitions are left untouched.
func (s *RewardService) SeedBadges(ctx context.Context, badges []models.Badge) error {
	for _, b := range badges {
		_, err := database.Exec(ctx, s.db, `
			INSERT INTO badges (id, name, description, icon, requirement_type, requirement_value, points_value, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`,
			b.ID, b.Name, b.Description, b.Icon, b.RequirementType, b.RequirementValue, b.PointsValue, b.Active, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to seed badge %s: %w", b.ID, err)
		}
	}
	return nil
}
