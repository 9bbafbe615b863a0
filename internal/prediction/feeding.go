package prediction

import (
	"fmt"
	"math"
	"time"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

// MaxHistory caps how many recent feedings feed the adaptive interval.
const MaxHistory = 10

// minHistoryForAverage is the smallest history that can override the table.
const minHistoryForAverage = 3

type FeedingStatus string

const (
	StatusOverdue   FeedingStatus = "overdue"
	StatusToday     FeedingStatus = "today"
	StatusTomorrow  FeedingStatus = "tomorrow"
	StatusSoon      FeedingStatus = "soon"
	StatusScheduled FeedingStatus = "scheduled"
	StatusNoHistory FeedingStatus = "no_history"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PredictionInput carries what the predictor needs about one animal.
// History holds feeding dates most recent first.
type PredictionInput struct {
	Species   string
	BirthDate *time.Time
	LastFed   *time.Time
	History   []time.Time
}

// Prediction is the next-feeding recommendation. Date fields are nil when
// there is no feeding to anchor them.
type Prediction struct {
	SuggestedDate       *time.Time    `json:"suggested_date"`
	EarliestDate        *time.Time    `json:"earliest_date,omitempty"`
	LatestDate          *time.Time    `json:"latest_date,omitempty"`
	DaysUntil           *int          `json:"days_until,omitempty"`
	Status              FeedingStatus `json:"status"`
	StatusMessage       string        `json:"status_message"`
	RecommendedInterval int           `json:"recommended_interval"`
	IntervalRange       string        `json:"interval_range"`
	AgeCategory         AgeCategory   `json:"age_category"`
	Confidence          Confidence    `json:"confidence"`
	HistoryAdjusted     bool          `json:"history_adjusted"`
}

// PredictNextFeeding combines the interval table, the animal's age and its
// recent feedings into a recommendation as of today. It never fails: missing
// history only lowers confidence.
func PredictNextFeeding(table *Table, in PredictionInput, today time.Time) Prediction {
	age := ClassifyAge(in.BirthDate, today)
	iv := table.Lookup(in.Species, age)

	history := in.History
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}

	lastFed := in.LastFed
	if lastFed == nil && len(history) > 0 {
		lastFed = &history[0]
	}
	if lastFed == nil {
		return Prediction{
			Status:              StatusNoHistory,
			StatusMessage:       fmt.Sprintf("Recommended: Every %d days", iv.Recommended),
			RecommendedInterval: iv.Recommended,
			IntervalRange:       iv.Range(),
			AgeCategory:         age,
			Confidence:          ConfidenceLow,
		}
	}

	recommended := iv.Recommended
	adjusted := false
	if avg, ok := averageInterval(history); ok && avg >= float64(iv.Min) && avg <= float64(iv.Max) {
		recommended = int(math.RoundToEven(avg))
		adjusted = true
	}

	suggested := domain.AddDays(*lastFed, recommended)
	earliest := domain.AddDays(*lastFed, iv.Min)
	latest := domain.AddDays(*lastFed, iv.Max)
	daysUntil := domain.DaysBetween(today, suggested)
	status, message := classifyDaysUntil(daysUntil)

	confidence := ConfidenceMedium
	if adjusted {
		confidence = ConfidenceHigh
	}

	return Prediction{
		SuggestedDate:       &suggested,
		EarliestDate:        &earliest,
		LatestDate:          &latest,
		DaysUntil:           &daysUntil,
		Status:              status,
		StatusMessage:       message,
		RecommendedInterval: recommended,
		IntervalRange:       iv.Range(),
		AgeCategory:         age,
		Confidence:          confidence,
		HistoryAdjusted:     adjusted,
	}
}

// averageInterval averages the absolute day gaps between adjacent feedings.
func averageInterval(history []time.Time) (float64, bool) {
	if len(history) < minHistoryForAverage {
		return 0, false
	}
	total := 0
	for i := 0; i < len(history)-1; i++ {
		gap := domain.DaysBetween(history[i+1], history[i])
		if gap < 0 {
			gap = -gap
		}
		total += gap
	}
	return float64(total) / float64(len(history)-1), true
}

func classifyDaysUntil(days int) (FeedingStatus, string) {
	switch {
	case days < 0:
		overdue := -days
		return StatusOverdue, fmt.Sprintf("Overdue by %d %s", overdue, pluralDays(overdue))
	case days == 0:
		return StatusToday, "Feed today"
	case days == 1:
		return StatusTomorrow, "Feed tomorrow"
	case days == 2:
		return StatusSoon, fmt.Sprintf("Feed in %d days", days)
	default:
		return StatusScheduled, fmt.Sprintf("Feed in %d days", days)
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
