package notify

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Settings is the notification section of the daemon configuration.
type Settings struct {
	Recipients []Recipient     `yaml:"recipients"`
	SMTP       *SMTPConfig     `yaml:"smtp"`
	Twilio     *TwilioConfig   `yaml:"twilio"`
	Ntfy       *NtfyConfig     `yaml:"ntfy"`
	Gotify     *GotifyConfig   `yaml:"gotify"`
	Calendar   *CalendarConfig `yaml:"calendar"`
}

// uses reports whether any recipient names the channel.
func (s *Settings) uses(channel Channel) bool {
	for _, r := range s.Recipients {
		if r.Channel == channel {
			return true
		}
	}
	return false
}

// NewDispatcherFromSettings registers a sender for every configured channel.
// A channel named by a recipient but missing its settings is an error.
func NewDispatcherFromSettings(ctx context.Context, settings Settings, client *http.Client, logger *logrus.Logger) (*Dispatcher, error) {
	d := NewDispatcher(logger)

	switch {
	case settings.SMTP != nil:
		sender, err := NewEmailSender(*settings.SMTP)
		if err != nil {
			return nil, err
		}
		d.Register(ChannelEmail, sender)
	case settings.uses(ChannelEmail):
		return nil, errors.New("email recipients configured without smtp settings")
	}

	switch {
	case settings.Twilio != nil:
		sender, err := NewSMSSender(*settings.Twilio, client)
		if err != nil {
			return nil, err
		}
		d.Register(ChannelSMS, sender)
	case settings.uses(ChannelSMS):
		return nil, errors.New("sms recipients configured without twilio settings")
	}

	ntfy := NtfyConfig{}
	if settings.Ntfy != nil {
		ntfy = *settings.Ntfy
	}
	d.Register(ChannelPush, NewNtfySender(ntfy, client))

	switch {
	case settings.Gotify != nil:
		sender, err := NewGotifySender(*settings.Gotify, client)
		if err != nil {
			return nil, err
		}
		d.Register(ChannelGotify, sender)
	case settings.uses(ChannelGotify):
		return nil, errors.New("gotify recipients configured without gotify settings")
	}

	switch {
	case settings.Calendar != nil:
		sender, err := NewCalendarSender(ctx, *settings.Calendar)
		if err != nil {
			return nil, err
		}
		d.Register(ChannelCalendar, sender)
	case settings.uses(ChannelCalendar):
		return nil, errors.New("calendar recipients configured without calendar settings")
	}

	logger.WithFields(logrus.Fields{
		"channels":   d.Channels(),
		"recipients": len(settings.Recipients),
	}).Info("notification dispatcher ready")
	return d, nil
}
