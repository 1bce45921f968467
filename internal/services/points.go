package services

// CalculatePoints maps a weekly completion rate (0-100) to a points award.
func CalculatePoints(completionRate float64) int {
	switch {
	case completionRate >= 100:
		return 100
	case completionRate >= 95:
		return 75
	case completionRate >= 90:
		return 50
	case completionRate >= 80:
		return 25
	case completionRate >= 70:
		return 10
	default:
		return 0
	}
}

var levelThresholds = []struct {
	points int
	level  int
}{
	{5000, 10},
	{4000, 9},
	{3000, 8},
	{2000, 7},
	{1500, 6},
	{1000, 5},
	{700, 4},
	{400, 3},
	{150, 2},
}

// CalculateLevel derives the 1-10 level from cumulative points.
func CalculateLevel(totalPoints int) int {
	for _, t := range levelThresholds {
		if totalPoints >= t.points {
			return t.level
		}
	}
	return 1
}

// SuccessThreshold is the completion rate a week needs to extend a streak.
const SuccessThreshold = 70.0

const (
	LabelTopTier = "Employee of the Week"
	LabelMidTier = "Rising Star"
)

// RewardLabel returns the weekly reward label for a completion rate, or "".
func RewardLabel(completionRate float64) string {
	switch {
	case completionRate >= 100:
		return LabelTopTier
	case completionRate >= 90:
		return LabelMidTier
	default:
		return ""
	}
}
