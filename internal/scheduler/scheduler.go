// Package scheduler runs the daily due-feeding check and fans reminders out
// to the configured notification recipients.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/notify"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

const (
	DefaultCheckTime      = "09:00"
	DefaultDaysAhead      = 1
	DefaultMaxConcurrency = 4
	DefaultSendTimeout    = 10 * time.Second
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// DueSource produces the due list. *service.FeedingService satisfies it.
type DueSource interface {
	GetDue(ctx context.Context, now time.Time, daysAhead int) (*service.DueList, error)
}

// Config controls when the check runs and who is told.
type Config struct {
	CheckTime         string
	Location          *time.Location
	DaysAhead         int
	NotifyOverdueOnly bool
	MaxConcurrency    int
	SendTimeout       time.Duration
	Recipients        []notify.Recipient
}

func (c *Config) applyDefaults() {
	if c.CheckTime == "" {
		c.CheckTime = DefaultCheckTime
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.DaysAhead < 0 {
		c.DaysAhead = DefaultDaysAhead
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
}

// CheckResult summarises one pass over the due list.
type CheckResult struct {
	RunAt    time.Time `json:"run_at"`
	Overdue  int       `json:"overdue"`
	Upcoming int       `json:"upcoming"`
	Notified int       `json:"notified"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Errors   []error   `json:"-"`
}

// ReminderScheduler only reads reminders; it never writes to the store.
type ReminderScheduler struct {
	config   Config
	due      DueSource
	notifier notify.Notifier
	eventBus *events.EventBus
	logger   *logrus.Logger
	clock    Clock

	hour   int
	minute int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReminderScheduler validates the check time and fills in defaults.
func NewReminderScheduler(config Config, due DueSource, notifier notify.Notifier, eventBus *events.EventBus, logger *logrus.Logger) (*ReminderScheduler, error) {
	config.applyDefaults()
	hour, minute, err := ParseCheckTime(config.CheckTime)
	if err != nil {
		return nil, err
	}
	return &ReminderScheduler{
		config:   config,
		due:      due,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger,
		clock:    realClock{},
		hour:     hour,
		minute:   minute,
	}, nil
}

// SetClock replaces the time source. Call before Start.
func (s *ReminderScheduler) SetClock(clock Clock) {
	s.clock = clock
}

// Start launches the daily loop. The loop ends when ctx is cancelled or Stop
// is called.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.WithFields(logrus.Fields{
		"check_time": s.config.CheckTime,
		"timezone":   s.config.Location.String(),
	}).Info("Reminder scheduler started")
	return nil
}

// Stop cancels the loop and waits for it to exit. An in-flight check is
// cancelled.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Reminder scheduler stopped")
}

func (s *ReminderScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := s.clock.Now()
		next := NextRun(now, s.hour, s.minute, s.config.Location)
		s.logger.WithField("next_run", next.Format(time.RFC3339)).Debug("Next reminder check scheduled")

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(next.Sub(now)):
		}

		if _, err := s.RunScheduledCheck(ctx, s.clock.Now()); err != nil {
			s.logger.WithError(err).Error("Error checking reminders")
		}
	}
}

type dispatch struct {
	due       service.DueReminder
	recipient notify.Recipient
}

// RunScheduledCheck scans the due list as of now and notifies every recipient
// about each due reminder. A failed send is logged and counted; it never stops
// the pass. The only error returned is a failed scan.
func (s *ReminderScheduler) RunScheduledCheck(ctx context.Context, now time.Time) (*CheckResult, error) {
	now = now.In(s.config.Location)
	result := &CheckResult{RunAt: now}

	if len(s.config.Recipients) == 0 {
		s.logger.Info("No notification recipients configured")
		return result, nil
	}

	list, err := s.due.GetDue(ctx, now, s.config.DaysAhead)
	if err != nil {
		return result, fmt.Errorf("failed to scan due feedings: %w", err)
	}
	result.Overdue = len(list.Overdue)
	result.Upcoming = len(list.Upcoming)

	toNotify := list.Overdue
	if !s.config.NotifyOverdueOnly {
		toNotify = append(append([]service.DueReminder{}, list.Overdue...), list.Upcoming...)
	}
	result.Notified = len(toNotify)

	s.logger.WithFields(logrus.Fields{
		"overdue":             result.Overdue,
		"upcoming":            result.Upcoming,
		"notify_overdue_only": s.config.NotifyOverdueOnly,
	}).Info("Checking due feedings")

	if len(toNotify) == 0 {
		s.logger.Info("No feedings require notification")
		return result, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for _, due := range toNotify {
		for _, recipient := range s.config.Recipients {
			d := dispatch{due: due, recipient: recipient}
			g.Go(func() error {
				err := s.send(ctx, d)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, err)
				} else {
					result.Sent++
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	s.logger.WithFields(logrus.Fields{
		"sent":   result.Sent,
		"failed": result.Failed,
	}).Info("Sent feeding reminders")
	return result, nil
}

func (s *ReminderScheduler) send(ctx context.Context, d dispatch) error {
	title, body := ComposeMessage(d.due)

	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	err := s.notifier.Send(sendCtx, d.recipient.Channel, d.recipient.Target, title, body)
	cancel()

	fields := logrus.Fields{
		"animal_id": d.due.Reminder.AnimalID,
		"channel":   d.recipient.Channel,
		"to":        d.recipient.Target,
		"overdue":   d.due.IsOverdue,
	}
	payload := events.ReminderDispatchedPayload{
		AnimalID: d.due.Reminder.AnimalID,
		Channel:  string(d.recipient.Channel),
		Target:   d.recipient.Target,
		Overdue:  d.due.IsOverdue,
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Failed to send notification")
		payload.Error = err.Error()
	} else {
		s.logger.WithFields(fields).Debug("Feeding reminder sent")
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.ReminderDispatched, payload)
	}
	return err
}
