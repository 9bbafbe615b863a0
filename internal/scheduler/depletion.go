package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/notify"
)

// DepletionAlerter tells every recipient when a SKU runs out.
type DepletionAlerter struct {
	notifier    notify.Notifier
	recipients  []notify.Recipient
	sendTimeout time.Duration
	logger      *logrus.Logger
}

func NewDepletionAlerter(notifier notify.Notifier, recipients []notify.Recipient, sendTimeout time.Duration, logger *logrus.Logger) *DepletionAlerter {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &DepletionAlerter{notifier: notifier, recipients: recipients, sendTimeout: sendTimeout, logger: logger}
}

// DepletionMessage renders the out-of-stock alert.
func DepletionMessage(p events.StockChangedPayload) (title, body string) {
	title = fmt.Sprintf("Out of Stock: %s", p.SKU)
	body = fmt.Sprintf("%s %s is out of stock (was %d).", p.SKU.FoodSize, p.SKU.FoodType, p.PreviousQuantity)
	if p.Clamped {
		body += fmt.Sprintf(" The last %s asked for %d more than was on hand.", p.TransactionType, -p.Requested-p.PreviousQuantity)
	}
	return title, body
}

// Handle is an events.EventHandler for events.StockDepleted. Send failures
// are logged; the handler itself only fails on a foreign payload.
func (a *DepletionAlerter) Handle(ctx context.Context, event *events.Event) error {
	p, ok := event.Payload.(events.StockChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	title, body := DepletionMessage(p)
	for _, r := range a.recipients {
		sendCtx, cancel := context.WithTimeout(ctx, a.sendTimeout)
		err := a.notifier.Send(sendCtx, r.Channel, r.Target, title, body)
		cancel()
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"sku":     p.SKU.String(),
				"channel": r.Channel,
				"to":      r.Target,
			}).Error("Failed to send depletion alert")
		}
	}
	return nil
}
