package notify

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const dateLayout = "2006-01-02"

// CalendarConfig configures the calendar channel. CredentialsFile holds the
// OAuth client JSON and TokenFile a previously authorised token.
type CalendarConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	CalendarID      string `yaml:"calendar_id"`
}

// CalendarSender records each reminder as an all-day event on the day it is
// sent. A non-empty target overrides the configured calendar ID.
type CalendarSender struct {
	service    *calendar.Service
	calendarID string
	now        func() time.Time
}

// NewCalendarSender authorises with the stored token and builds the client.
func NewCalendarSender(ctx context.Context, config CalendarConfig) (*CalendarSender, error) {
	if config.CredentialsFile == "" || config.TokenFile == "" {
		return nil, errors.New("calendar notifications require credentials_file and token_file")
	}

	credentials, err := os.ReadFile(config.CredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read calendar credentials")
	}
	oauthConfig, err := google.ConfigFromJSON(credentials, calendar.CalendarEventsScope)
	if err != nil {
		return nil, errors.Wrap(err, "parse calendar credentials")
	}

	token, err := loadToken(config.TokenFile)
	if err != nil {
		return nil, err
	}

	return NewCalendarSenderWithOptions(ctx, config.CalendarID, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
}

// NewCalendarSenderWithOptions builds a sender from explicit client options.
func NewCalendarSenderWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*CalendarSender, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create calendar service")
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarSender{service: service, calendarID: calendarID, now: time.Now}, nil
}

// SetClock replaces the time source that picks the event date.
func (s *CalendarSender) SetClock(now func() time.Time) {
	s.now = now
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read calendar token")
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrap(err, "decode calendar token")
	}
	return &token, nil
}

func (s *CalendarSender) Send(ctx context.Context, target, title, body string) error {
	calendarID := s.calendarID
	if target != "" {
		calendarID = target
	}

	day := s.now()
	event := &calendar.Event{
		Summary:     title,
		Description: body,
		Start:       &calendar.EventDateTime{Date: day.Format(dateLayout)},
		End:         &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"source": "feeding-reminder"},
		},
	}

	if _, err := s.service.Events.Insert(calendarID, event).Context(ctx).Do(); err != nil {
		return errors.Wrapf(err, "insert calendar event into %s", calendarID)
	}
	return nil
}
