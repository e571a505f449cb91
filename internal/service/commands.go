package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
	"go.uber.org/zap"
)

// AlertSettingCommand asks a session to flip one cell of the alert matrix
type AlertSettingCommand struct {
	AccountID   string `json:"account_id"`
	AlertTypeID int    `json:"alert_type_id"`
	MediaTypeID int    `json:"media_type_id"`
	Enabled     bool   `json:"enabled"`
}

// CommandService applies queued alert-setting commands to live sessions
type CommandService struct {
	registry *citymind.Registry
	logger   *zap.Logger
}

// NewCommandService creates a new command service
func NewCommandService(registry *citymind.Registry, logger *zap.Logger) *CommandService {
	return &CommandService{
		registry: registry,
		logger:   logger,
	}
}

// HandleCommand processes one alert-setting command message
func (s *CommandService) HandleCommand(ctx context.Context, body []byte) error {
	var cmd AlertSettingCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	alertType, err := alertType(cmd.AlertTypeID)
	if err != nil {
		return err
	}

	channel, err := alertChannel(cmd.MediaTypeID)
	if err != nil {
		return err
	}

	client, ok := s.registry.Get(cmd.AccountID)
	if !ok {
		return fmt.Errorf("no session for account %s", cmd.AccountID)
	}

	s.logger.Info("applying alert-setting command",
		zap.String("account_id", cmd.AccountID),
		zap.String("alert_type", alertType.String()),
		zap.String("channel", channel.String()),
		zap.Bool("enabled", cmd.Enabled),
	)

	client.SetAlertSettings(ctx, alertType, channel, cmd.Enabled)

	return nil
}

func alertType(id int) (citymind.AlertType, error) {
	alertType := citymind.AlertType(id)
	switch alertType {
	case citymind.AlertTypeDailyThreshold, citymind.AlertTypeLeak, citymind.AlertTypeConsumptionWhileAway:
		return alertType, nil
	}

	return 0, fmt.Errorf("unknown alert type id %d", id)
}

func alertChannel(id int) (citymind.AlertChannel, error) {
	channel := citymind.AlertChannel(id)
	switch channel {
	case citymind.AlertChannelEmail, citymind.AlertChannelSMS:
		return channel, nil
	}

	return 0, fmt.Errorf("unknown media type id %d", id)
}
