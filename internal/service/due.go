package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// DueReminder is one entry of the due list. IsOverdue is decided once when
// the list is built.
type DueReminder struct {
	Reminder  *domain.FeedingReminder `json:"reminder"`
	Animal    *domain.Animal          `json:"animal,omitempty"`
	IsOverdue bool                    `json:"is_overdue"`
	// DaysUntil is negative when overdue.
	DaysUntil int `json:"days_until"`
}

// AnimalName is the display name, or the ID for unregistered animals.
func (d DueReminder) AnimalName() string {
	if d.Animal == nil {
		return d.Reminder.AnimalID
	}
	return d.Animal.DisplayName()
}

// DueList holds overdue and upcoming reminders. The two sets never share a
// reminder.
type DueList struct {
	Overdue  []DueReminder `json:"overdue"`
	Upcoming []DueReminder `json:"upcoming"`
}

// ScanDue splits active reminders into overdue (next feeding on or before
// today) and upcoming (after today, within daysAhead). Both are sorted by
// next feeding date, then animal ID.
func ScanDue(reminders []*domain.FeedingReminder, now time.Time, daysAhead int) DueList {
	today := domain.DateOf(now)
	horizon := domain.AddDays(today, daysAhead)

	list := DueList{Overdue: []DueReminder{}, Upcoming: []DueReminder{}}
	for _, r := range reminders {
		if !r.Active || r.NextFeedingDate == nil {
			continue
		}
		next := domain.DateOf(*r.NextFeedingDate)
		entry := DueReminder{Reminder: r, DaysUntil: domain.DaysBetween(today, next)}
		switch {
		case !next.After(today):
			entry.IsOverdue = true
			list.Overdue = append(list.Overdue, entry)
		case !next.After(horizon):
			list.Upcoming = append(list.Upcoming, entry)
		}
	}

	sortDue(list.Overdue)
	sortDue(list.Upcoming)
	return list
}

func sortDue(entries []DueReminder) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Reminder, entries[j].Reminder
		if !a.NextFeedingDate.Equal(*b.NextFeedingDate) {
			return a.NextFeedingDate.Before(*b.NextFeedingDate)
		}
		return a.AnimalID < b.AnimalID
	})
}

// GetDue returns the due list as of now, with animal records attached where
// known.
func (s *FeedingService) GetDue(ctx context.Context, now time.Time, daysAhead int) (*DueList, error) {
	if daysAhead < 0 {
		return nil, domain.NewValidationError("days_ahead", "cannot be negative")
	}

	var list DueList
	err := s.store.View(ctx, func(tx repository.Tx) error {
		reminders, err := tx.ListReminders(true)
		if err != nil {
			return err
		}
		list = ScanDue(reminders, now, daysAhead)

		for _, group := range [][]DueReminder{list.Overdue, list.Upcoming} {
			for i := range group {
				animal, err := tx.GetAnimal(group[i].Reminder.AnimalID)
				switch {
				case err == nil:
					group[i].Animal = animal
				case !domain.IsNotFound(err):
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan due reminders: %w", err)
	}
	return &list, nil
}

// Overdue lists active reminders due on or before now.
func (s *FeedingService) Overdue(ctx context.Context, now time.Time) ([]DueReminder, error) {
	list, err := s.GetDue(ctx, now, 0)
	if err != nil {
		return nil, err
	}
	return list.Overdue, nil
}

// Upcoming lists active reminders due after now and within daysAhead.
func (s *FeedingService) Upcoming(ctx context.Context, now time.Time, daysAhead int) ([]DueReminder, error) {
	list, err := s.GetDue(ctx, now, daysAhead)
	if err != nil {
		return nil, err
	}
	return list.Upcoming, nil
}
