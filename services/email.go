package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"sprig/config"
	"sprig/models"
)

// EmailNotifier delivers alerts over SMTP.
type EmailNotifier struct {
	dialer    *gomail.Dialer
	from      string
	recipient string
	logger    *zap.Logger
}

func NewEmailNotifier(cfg *config.Config, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		dialer:    gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass),
		from:      cfg.EmailUser,
		recipient: cfg.EmailRecipient,
		logger:    logger,
	}
}

func (e *EmailNotifier) Send(_ context.Context, alert *models.Alert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.recipient)
	m.SetHeader("Subject", emailSubject(alert))
	m.SetBody("text/html", emailBody(alert))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	e.logger.Info("Alert email sent",
		zap.String("device_id", alert.DeviceID),
		zap.String("recipient", e.recipient))
	return nil
}

func emailSubject(alert *models.Alert) string {
	if alert.Kind != models.AlertKindAbnormalReadings {
		return fmt.Sprintf("Alert: %s from %s", alert.Kind, alert.DeviceName)
	}
	return fmt.Sprintf("Alert: Abnormal readings from %s", alert.DeviceName)
}

func emailBody(alert *models.Alert) string {
	var b strings.Builder

	if alert.Kind != models.AlertKindAbnormalReadings {
		fmt.Fprintf(&b, "<h2>Alert: %s</h2>", alert.Kind)
	} else {
		b.WriteString("<h2>Alert: Abnormal Readings Detected</h2>")
	}
	fmt.Fprintf(&b, "<p><strong>Device:</strong> %s (%s)</p>", alert.DeviceName, alert.DeviceID)
	fmt.Fprintf(&b, "<p><strong>Time:</strong> %s</p>", alert.Timestamp.Format("2006-01-02 15:04:05 MST"))

	if len(alert.Violations) > 0 {
		b.WriteString("<h3>Abnormal Readings:</h3><ul>")
		for _, v := range alert.Violations {
			fmt.Fprintf(&b, "<li>%s</li>", v)
		}
		b.WriteString("</ul>")
	} else if alert.Message != "" {
		fmt.Fprintf(&b, "<h3>Alert Details:</h3><p>%s</p>", alert.Message)
	}

	b.WriteString("<h3>Current Readings:</h3><ul>")
	fmt.Fprintf(&b, "<li>Soil Moisture: %.1f%%</li>", alert.Reading.SoilMoisture)
	fmt.Fprintf(&b, "<li>Temperature: %.1f°C</li>", alert.Reading.Temperature)
	fmt.Fprintf(&b, "<li>Humidity: %.1f%%</li>", alert.Reading.Humidity)
	b.WriteString("</ul>")

	b.WriteString("<p>Please check your irrigation system and sensors.</p>")
	b.WriteString("<p>This is an automated message from your irrigation monitoring service.</p>")

	return b.String()
}
