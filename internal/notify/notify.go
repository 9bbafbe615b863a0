// Package notify delivers feeding reminders over email, SMS, push and
// calendar channels.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Channel names a delivery route.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelGotify   Channel = "gotify"
	ChannelCalendar Channel = "calendar"
	ChannelLog      Channel = "log"
)

// KnownChannels lists every channel a recipient may name.
var KnownChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelGotify, ChannelCalendar, ChannelLog}

// ParseChannel validates a configured channel name.
func ParseChannel(s string) (Channel, error) {
	for _, c := range KnownChannels {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown notification channel %q", s)
}

// Notifier sends one message to one recipient. Failed sends are not retried.
type Notifier interface {
	Send(ctx context.Context, channel Channel, target, title, body string) error
}

// Sender delivers messages for a single channel.
type Sender interface {
	Send(ctx context.Context, target, title, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target, title, body string) error

func (f SenderFunc) Send(ctx context.Context, target, title, body string) error {
	return f(ctx, target, title, body)
}

// Recipient is a configured destination for reminders.
type Recipient struct {
	Channel Channel `yaml:"channel" json:"channel"`
	Target  string  `yaml:"target" json:"target"`
}

func (r Recipient) String() string {
	return fmt.Sprintf("%s:%s", r.Channel, r.Target)
}

// ErrUnsupportedChannel is returned for a channel with no registered sender.
var ErrUnsupportedChannel = errors.New("no sender registered for channel")

// NotificationDeliveryError reports a failed send to one recipient.
type NotificationDeliveryError struct {
	Channel Channel
	Target  string
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s notification to %s: %v", e.Channel, e.Target, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher routes messages to the sender registered for their channel.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[Channel]Sender
	logger  *logrus.Logger
}

// NewDispatcher creates a dispatcher with only the log channel registered.
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[Channel]Sender),
		logger:  logger,
	}
	d.Register(ChannelLog, NewLogSender(logger))
	return d
}

// Register installs or replaces the sender for a channel.
func (d *Dispatcher) Register(channel Channel, sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[channel] = sender
}

// Channels returns the registered channels in name order.
func (d *Dispatcher) Channels() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	channels := make([]Channel, 0, len(d.senders))
	for c := range d.senders {
		channels = append(channels, c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Send delivers through the channel's sender. Every failure comes back as a
// *NotificationDeliveryError.
func (d *Dispatcher) Send(ctx context.Context, channel Channel, target, title, body string) error {
	d.mu.RLock()
	sender, ok := d.senders[channel]
	d.mu.RUnlock()
	if !ok {
		return &NotificationDeliveryError{Channel: channel, Target: target, Err: ErrUnsupportedChannel}
	}

	if err := sender.Send(ctx, target, title, body); err != nil {
		return &NotificationDeliveryError{Channel: channel, Target: target, Err: err}
	}

	d.logger.WithFields(logrus.Fields{
		"channel": channel,
		"to":      target,
		"title":   title,
	}).Debug("notification sent")
	return nil
}

// Broadcast sends the same message to every recipient and collects the
// failures without stopping.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []Recipient, title, body string) []error {
	var failures []error
	for _, r := range recipients {
		if err := d.Send(ctx, r.Channel, r.Target, title, body); err != nil {
			d.logger.WithError(err).WithField("to", r.String()).Error("Failed to send notification")
			failures = append(failures, err)
		}
	}
	return failures
}
