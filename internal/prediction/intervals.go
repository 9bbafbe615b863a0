package prediction

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AgeCategory buckets an animal's age for interval lookup.
type AgeCategory string

const (
	AgeHatchling AgeCategory = "hatchling"
	AgeJuvenile  AgeCategory = "juvenile"
	AgeSubAdult  AgeCategory = "sub-adult"
	AgeAdult     AgeCategory = "adult"
)

// AgeCategories lists the buckets youngest first.
var AgeCategories = []AgeCategory{AgeHatchling, AgeJuvenile, AgeSubAdult, AgeAdult}

// Interval is a feeding cadence in days.
type Interval struct {
	Min         int `yaml:"min" json:"min_days"`
	Max         int `yaml:"max" json:"max_days"`
	Recommended int `yaml:"recommended" json:"recommended_days"`
}

// Range renders the interval as "min-max days".
func (i Interval) Range() string {
	return fmt.Sprintf("%d-%d days", i.Min, i.Max)
}

func (i Interval) validate() error {
	if i.Min < 1 {
		return fmt.Errorf("min must be at least 1, got %d", i.Min)
	}
	if i.Max < i.Min {
		return fmt.Errorf("max %d is below min %d", i.Max, i.Min)
	}
	if i.Recommended < 1 {
		return fmt.Errorf("recommended must be at least 1, got %d", i.Recommended)
	}
	return nil
}

// SpeciesSchedule holds the per-age intervals for one species key.
type SpeciesSchedule struct {
	Name      string                   `yaml:"name"`
	Intervals map[AgeCategory]Interval `yaml:"intervals"`
}

// Table maps species and age to feeding intervals. Species are kept in
// declaration order because lookup is first-match-wins.
type Table struct {
	Species []SpeciesSchedule        `yaml:"species"`
	Default map[AgeCategory]Interval `yaml:"default"`
}

// DefaultTable returns the built-in interval table.
func DefaultTable() *Table {
	snake := func(name string) SpeciesSchedule {
		return SpeciesSchedule{Name: name, Intervals: map[AgeCategory]Interval{
			AgeHatchling: {5, 7, 5},
			AgeJuvenile:  {7, 10, 7},
			AgeSubAdult:  {10, 14, 10},
			AgeAdult:     {14, 21, 14},
		}}
	}
	gecko := func(name string) SpeciesSchedule {
		return SpeciesSchedule{Name: name, Intervals: map[AgeCategory]Interval{
			AgeHatchling: {1, 2, 1},
			AgeJuvenile:  {2, 3, 2},
			AgeSubAdult:  {3, 4, 3},
			AgeAdult:     {3, 4, 3},
		}}
	}

	boa := snake("Boa Constrictor")
	boa.Intervals[AgeAdult] = Interval{14, 28, 14}

	return &Table{
		Species: []SpeciesSchedule{
			snake("Ball Python"),
			snake("Corn Snake"),
			boa,
			snake("King Snake"),
			snake("Milk Snake"),
			snake("Carpet Python"),
			{Name: "Bearded Dragon", Intervals: map[AgeCategory]Interval{
				AgeHatchling: {1, 1, 1},
				AgeJuvenile:  {1, 2, 1},
				AgeSubAdult:  {2, 3, 2},
				AgeAdult:     {2, 3, 2},
			}},
			gecko("Leopard Gecko"),
			gecko("Crested Gecko"),
			{Name: "Blue Tongue Skink", Intervals: map[AgeCategory]Interval{
				AgeHatchling: {2, 3, 2},
				AgeJuvenile:  {3, 4, 3},
				AgeSubAdult:  {4, 5, 4},
				AgeAdult:     {5, 7, 5},
			}},
		},
		Default: map[AgeCategory]Interval{
			AgeHatchling: {5, 7, 7},
			AgeJuvenile:  {7, 10, 7},
			AgeSubAdult:  {10, 14, 10},
			AgeAdult:     {14, 21, 14},
		},
	}
}

// MatchSpecies returns the first schedule whose name contains, or is
// contained in, species (case-insensitive). Matching is approximate: a short
// key can capture an unrelated species that happens to contain it. A blank
// species matches nothing, so it resolves to the default schedule.
func (t *Table) MatchSpecies(species string) (*SpeciesSchedule, bool) {
	query := strings.ToLower(strings.TrimSpace(species))
	if query == "" {
		return nil, false
	}
	for i := range t.Species {
		key := strings.ToLower(t.Species[i].Name)
		if strings.Contains(query, key) || strings.Contains(key, query) {
			return &t.Species[i], true
		}
	}
	return nil, false
}

// Lookup resolves the interval for species at age. A species without the
// requested bucket falls back to its adult bucket, then to the default adult.
func (t *Table) Lookup(species string, age AgeCategory) Interval {
	schedule, ok := t.MatchSpecies(species)
	if !ok {
		if iv, ok := t.Default[age]; ok {
			return iv
		}
		return t.Default[AgeAdult]
	}
	if iv, ok := schedule.Intervals[age]; ok {
		return iv
	}
	if iv, ok := schedule.Intervals[AgeAdult]; ok {
		return iv
	}
	return t.Default[AgeAdult]
}

// Validate checks every declared interval and the presence of the fallbacks.
func (t *Table) Validate() error {
	if _, ok := t.Default[AgeAdult]; !ok {
		return errors.New("interval table: default entry must define an adult interval")
	}
	for age, iv := range t.Default {
		if err := iv.validate(); err != nil {
			return errors.Wrapf(err, "interval table: default/%s", age)
		}
	}
	for _, s := range t.Species {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New("interval table: species name is required")
		}
		if _, ok := s.Intervals[AgeAdult]; !ok {
			return errors.Errorf("interval table: %s must define an adult interval", s.Name)
		}
		for age, iv := range s.Intervals {
			if !knownAge(age) {
				return errors.Errorf("interval table: %s has unknown age category %q", s.Name, age)
			}
			if err := iv.validate(); err != nil {
				return errors.Wrapf(err, "interval table: %s/%s", s.Name, age)
			}
		}
	}
	return nil
}

func knownAge(age AgeCategory) bool {
	for _, a := range AgeCategories {
		if a == age {
			return true
		}
	}
	return false
}

// ParseTable decodes and validates a YAML interval table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "failed to decode interval table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTable reads an interval table from path. An empty path yields the
// built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read interval table %s", path)
	}
	return ParseTable(data)
}
