package prediction

import (
	"time"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

const daysPerMonth = 30.44

// ClassifyAge buckets an animal by age in months as of now. Unknown birth
// dates are treated as adult, the widest interval.
func ClassifyAge(birth *time.Time, now time.Time) AgeCategory {
	if birth == nil || birth.IsZero() {
		return AgeAdult
	}
	months := float64(domain.DaysBetween(*birth, now)) / daysPerMonth
	switch {
	case months < 6:
		return AgeHatchling
	case months < 12:
		return AgeJuvenile
	case months < 24:
		return AgeSubAdult
	default:
		return AgeAdult
	}
}

// Rank orders categories youngest first; unknown categories rank as adult.
func (a AgeCategory) Rank() int {
	for i, c := range AgeCategories {
		if c == a {
			return i
		}
	}
	return len(AgeCategories) - 1
}
