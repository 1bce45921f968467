package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

var (
	ErrRunInProgress = errors.New("weekly rewards run already in progress")
	ErrPartialRun    = errors.New("weekly rewards run finished with failures")

	errAlreadyScored = errors.New("weekly record already scored")
)

type RewardResult struct {
	EmployeeID     int     `json:"employee_id"`
	EmployeeName   string  `json:"employee_name"`
	Reward         *string `json:"reward"`
	CompletionRate float64 `json:"completion_rate"`
	PointsEarned   int     `json:"points_earned"`
	CurrentStreak  int     `json:"current_streak"`
}

type LevelUp struct {
	EmployeeID   int    `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	NewLevel     int    `json:"new_level"`
	TotalPoints  int    `json:"total_points"`
}

type BadgeAward struct {
	EmployeeID   int                   `json:"employee_id"`
	EmployeeName string                `json:"employee_name"`
	Badges       []models.AwardedBadge `json:"badges"`
}

type EmployeeFailure struct {
	EmployeeID int    `json:"employee_id"`
	Error      string `json:"error"`
}

// RunSummary is what one weekly run committed. Failed employees were rolled
// back and appear only in Failed. Skipped counts records an earlier run had
// already scored.
type RunSummary struct {
	WeekStart string            `json:"week_start"`
	Rewards   []RewardResult    `json:"rewards"`
	LevelUps  []LevelUp         `json:"level_ups"`
	Badges    []BadgeAward      `json:"badges"`
	Failed    []EmployeeFailure `json:"failed"`
	Skipped   int               `json:"skipped"`
}

// WeeklyRewards closes a week: it scores every weekly record, updates
// streaks, labels the best performers and awards badges.
type WeeklyRewards struct {
	db       *database.DB
	rewards  *services.RewardService
	notifier notify.Notifier
	mu       sync.Mutex
	log      *logger.Log
}

func NewWeeklyRewards(db *database.DB, rewards *services.RewardService, notifier notify.Notifier) *WeeklyRewards {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &WeeklyRewards{
		db:       db,
		rewards:  rewards,
		notifier: notifier,
		log:      logger.New().With("job", "weekly_rewards"),
	}
}

// Run processes the week containing weekStart. Each employee is handled in
// its own transaction; failures are collected and reported through
// ErrPartialRun while the other employees stay committed. A record is scored
// at most once, so running the same week again only picks up records added
// since the last run.
func (w *WeeklyRewards) Run(ctx context.Context, weekStart time.Time) (*RunSummary, error) {
	if !w.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer w.mu.Unlock()

	week := services.WeekKey(weekStart)
	log := w.log.With("week_start", week)

	records, err := w.rewards.WeeklyRecords(ctx, week)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		WeekStart: week,
		Rewards:   []RewardResult{},
		LevelUps:  []LevelUp{},
		Badges:    []BadgeAward{},
		Failed:    []EmployeeFailure{},
	}

	errs := w.score(ctx, records, summary)

	w.emit(ctx, summary)

	log.Info("weekly rewards processed",
		"employees", len(summary.Rewards),
		"level_ups", len(summary.LevelUps),
		"badge_awards", len(summary.Badges),
		"failed", len(summary.Failed),
		"skipped", summary.Skipped)

	if len(errs) > 0 {
		return summary, errors.Join(append([]error{ErrPartialRun}, errs...)...)
	}
	return summary, nil
}

// score runs every unscored record through processEmployee and fills summary.
// When ctx ends, the records not yet reached are reported as failed.
func (w *WeeklyRewards) score(ctx context.Context, records []models.WeeklyRecord, summary *RunSummary) []error {
	log := w.log.With("week_start", summary.WeekStart)

	var errs []error
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			for _, left := range records[i:] {
				if left.ScoredAt == nil {
					summary.Failed = append(summary.Failed, EmployeeFailure{EmployeeID: left.EmployeeID, Error: err.Error()})
				}
			}
			errs = append(errs, err)
			break
		}
		if record.ScoredAt != nil {
			summary.Skipped++
			continue
		}

		var out employeeOutcome
		err := w.db.InTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			out, err = w.processEmployee(ctx, w.rewards.WithTx(tx), record)
			return err
		})
		if errors.Is(err, errAlreadyScored) {
			summary.Skipped++
			continue
		}
		if err != nil {
			log.WithError(err).Error("employee rewards failed", "employee_id", record.EmployeeID)
			summary.Failed = append(summary.Failed, EmployeeFailure{EmployeeID: record.EmployeeID, Error: err.Error()})
			errs = append(errs, fmt.Errorf("employee %d: %w", record.EmployeeID, err))
			continue
		}

		summary.Rewards = append(summary.Rewards, out.result)
		if out.levelUp != nil {
			summary.LevelUps = append(summary.LevelUps, *out.levelUp)
		}
		if len(out.badges) > 0 {
			summary.Badges = append(summary.Badges, BadgeAward{
				EmployeeID:   record.EmployeeID,
				EmployeeName: record.EmployeeName,
				Badges:       out.badges,
			})
		}
	}
	return errs
}

type employeeOutcome struct {
	result  RewardResult
	levelUp *LevelUp
	badges  []models.AwardedBadge
}

func (w *WeeklyRewards) processEmployee(ctx context.Context, engine *services.RewardService, record models.WeeklyRecord) (employeeOutcome, error) {
	var out employeeOutcome

	claimed, err := engine.MarkScored(ctx, record.ID)
	if err != nil {
		return out, err
	}
	if !claimed {
		return out, errAlreadyScored
	}

	before, err := engine.GetPointsState(ctx, record.EmployeeID)
	if err != nil {
		return out, err
	}

	rate := record.CompletionRate()
	label := services.RewardLabel(rate)
	points := services.CalculatePoints(rate)

	update, err := engine.AddPoints(ctx, record.EmployeeID, points)
	if err != nil {
		return out, err
	}

	streak, err := engine.UpdateStreak(ctx, record.EmployeeID, rate >= services.SuccessThreshold)
	if err != nil {
		return out, err
	}

	out.result = RewardResult{
		EmployeeID:     record.EmployeeID,
		EmployeeName:   record.EmployeeName,
		CompletionRate: rate,
		PointsEarned:   points,
		CurrentStreak:  streak.NewStreak,
	}

	if label != "" {
		if err := engine.SetWeeklyReward(ctx, record.ID, label); err != nil {
			return out, err
		}
		week := record.WeekStart
		if err := engine.RecordReward(ctx, models.RewardHistoryEntry{
			EmployeeID:   record.EmployeeID,
			Title:        label,
			Description:  fmt.Sprintf("%.0f%% task completion for the week of %s", rate, week),
			Icon:         rewardIcon(label),
			PointsEarned: points,
			Reason:       "weekly_performance",
			WeekStart:    &week,
		}); err != nil {
			return out, err
		}
		out.result.Reward = &label
	}

	out.badges, err = engine.CheckAndAwardBadges(ctx, record.EmployeeID)
	if err != nil {
		return out, err
	}

	final := update.NewTotal
	for _, b := range out.badges {
		final += b.PointsAwarded
	}
	if newLevel := services.CalculateLevel(final); newLevel > before.Level {
		out.levelUp = &LevelUp{
			EmployeeID:   record.EmployeeID,
			EmployeeName: record.EmployeeName,
			NewLevel:     newLevel,
			TotalPoints:  final,
		}
	}

	return out, nil
}

func rewardIcon(label string) string {
	if label == services.LabelTopTier {
		return "🏆"
	}
	return "⭐"
}

// emit sends the run's results. Rewards are always sent, the other two
// events only when they carry something.
func (w *WeeklyRewards) emit(ctx context.Context, summary *RunSummary) {
	send := func(event string, data any) {
		if err := w.notifier.Notify(ctx, event, data); err != nil {
			w.log.WithError(err).Warn("failed to send notification", "event", event)
		}
	}

	send(notify.EventWeeklyRewards, summary.Rewards)
	if len(summary.LevelUps) > 0 {
		send(notify.EventLevelUps, summary.LevelUps)
	}
	if len(summary.Badges) > 0 {
		send(notify.EventBadgesAwarded, summary.Badges)
	}
}
