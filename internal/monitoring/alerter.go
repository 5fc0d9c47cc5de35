package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSourceErrors AlertType = "source_consecutive_errors"
	AlertSourceStale  AlertType = "source_stale"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a HealthSnapshot against configured thresholds and
// sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.MaxConsecutiveErrs <= 0 {
		cfg.MaxConsecutiveErrs = 3
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *HealthSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, src := range snap.Sources {
		if !src.Enabled {
			continue
		}

		if src.ConsecutiveErrs >= a.cfg.MaxConsecutiveErrs {
			alerts = append(alerts, Alert{
				Type:     AlertSourceErrors,
				Severity: "high",
				Message: fmt.Sprintf(
					"Source %s has failed %d consecutive runs (threshold %d): %s",
					src.SourceType, src.ConsecutiveErrs, a.cfg.MaxConsecutiveErrs, src.LastError,
				),
				Details: map[string]any{
					"source_type":        src.SourceType,
					"consecutive_errors": src.ConsecutiveErrs,
					"threshold":          a.cfg.MaxConsecutiveErrs,
					"last_error":         src.LastError,
				},
				Timestamp: now,
			})
		}

		if src.Stale {
			msg := fmt.Sprintf("Source %s has never run", src.SourceType)
			if src.LastRunAt != nil {
				msg = fmt.Sprintf(
					"Source %s has not run in %.0f hours",
					src.SourceType, src.HoursSinceRun,
				)
			}
			alerts = append(alerts, Alert{
				Type:     AlertSourceStale,
				Severity: "medium",
				Message:  msg,
				Details: map[string]any{
					"source_type":     src.SourceType,
					"hours_since_run": src.HoursSinceRun,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
