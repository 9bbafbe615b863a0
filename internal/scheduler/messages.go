package scheduler

import (
	"fmt"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

// ComposeMessage renders the title and body for one due reminder.
func ComposeMessage(due service.DueReminder) (title, body string) {
	name := due.AnimalName()
	date := domain.FormatDate(due.Reminder.NextFeedingDate)
	food := due.Reminder.FoodDescription()

	if !due.IsOverdue {
		return fmt.Sprintf("Feeding Reminder: %s", name),
			fmt.Sprintf("%s is due for feeding on %s. Feed %s.", name, date, food)
	}

	title = fmt.Sprintf("Overdue Feeding: %s", name)
	late := -due.DaysUntil
	if late <= 0 {
		return title, fmt.Sprintf("%s is due for feeding today (%s). Time to feed %s!", name, date, food)
	}
	return title, fmt.Sprintf("%s was due for feeding on %s (%d day(s) overdue). Time to feed %s!", name, date, late, food)
}
