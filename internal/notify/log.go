package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes notifications to the log. It never fails.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, target, title, body string) error {
	s.logger.WithFields(logrus.Fields{
		"notification": true,
		"to":           target,
		"title":        title,
	}).Info(body)
	return nil
}
