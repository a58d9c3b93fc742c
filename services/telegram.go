package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"sprig/config"
	"sprig/models"
)

// TelegramNotifier delivers alerts to a Telegram chat, throttled per device
// so a flapping sensor does not flood the channel.
type TelegramNotifier struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	throttleWindow time.Duration
	logger         *zap.Logger

	mu             sync.Mutex
	lastAlertTimes map[string]time.Time
}

func NewTelegramNotifier(cfg *config.Config, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse telegram chat id: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &TelegramNotifier{
		bot:            bot,
		chatID:         chatID,
		throttleWindow: time.Duration(cfg.AlertThrottleSeconds) * time.Second,
		logger:         logger,
		lastAlertTimes: make(map[string]time.Time),
	}, nil
}

func (t *TelegramNotifier) Send(_ context.Context, alert *models.Alert) error {
	if t.shouldThrottle(alert.DeviceID) {
		t.logger.Debug("Throttling telegram alert",
			zap.String("device_id", alert.DeviceID))
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, formatTelegramAlert(alert))
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.markSent(alert.DeviceID)
	t.logger.Info("Telegram alert sent", zap.String("device_id", alert.DeviceID))
	return nil
}

func (t *TelegramNotifier) shouldThrottle(deviceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastAlertTimes[deviceID]
	return ok && time.Since(last) < t.throttleWindow
}

func (t *TelegramNotifier) markSent(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAlertTimes[deviceID] = time.Now()
}

func formatTelegramAlert(alert *models.Alert) string {
	var b strings.Builder

	if alert.Kind != models.AlertKindAbnormalReadings {
		fmt.Fprintf(&b, "🚨 <b>Alert: %s</b>\n\n", alert.Kind)
	} else {
		b.WriteString("🚨 <b>Abnormal Readings Detected</b>\n\n")
	}
	fmt.Fprintf(&b, "📟 Device: <b>%s</b> (<code>%s</code>)\n", alert.DeviceName, alert.DeviceID)
	fmt.Fprintf(&b, "🕒 Time: %s\n\n", alert.Timestamp.Format("2006-01-02 15:04:05"))

	if len(alert.Violations) > 0 {
		for _, v := range alert.Violations {
			fmt.Fprintf(&b, "⚠️ %s\n", v)
		}
		b.WriteString("\n")
	} else if alert.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", alert.Message)
	}

	fmt.Fprintf(&b, "🌱 Soil moisture: %.1f%%\n", alert.Reading.SoilMoisture)
	fmt.Fprintf(&b, "🌡 Temperature: %.1f°C\n", alert.Reading.Temperature)
	fmt.Fprintf(&b, "💧 Humidity: %.1f%%", alert.Reading.Humidity)

	return b.String()
}
