package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sprig/models"
)

// MultiNotifier fans one alert out to every configured channel. A failing
// channel never stops the others.
type MultiNotifier struct {
	channels []Notifier
	logger   *zap.Logger
}

func NewMultiNotifier(logger *zap.Logger, channels ...Notifier) *MultiNotifier {
	return &MultiNotifier{channels: channels, logger: logger}
}

func (m *MultiNotifier) Send(ctx context.Context, alert *models.Alert) error {
	var errs []error
	for _, channel := range m.channels {
		if err := channel.Send(ctx, alert); err != nil {
			m.logger.Error("Notification channel failed",
				zap.String("device_id", alert.DeviceID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
