package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// ReadingEvent is the normalized per-meter reading published after each
// completed update cycle
type ReadingEvent struct {
	EventID              string   `json:"event_id"`
	AccountNumber        int64    `json:"account_number"`
	MeterID              string   `json:"meter_id"`
	SerialNumber         string   `json:"serial_number"`
	ReadingDate          string   `json:"reading_date"`
	LastRead             float64  `json:"last_read"`
	TodayConsumption     *float64 `json:"today_consumption"`
	YesterdayConsumption *float64 `json:"yesterday_consumption"`
	MonthlyConsumption   *float64 `json:"monthly_consumption"`
	ConsumptionForecast  float64  `json:"consumption_forecast"`
	ValidationStatus     string   `json:"validation_status"`
	AnomalyReason        *string  `json:"anomaly_reason,omitempty"`
	CollectedAt          string   `json:"collected_at"`
}

// StatusEvent is published on every connectivity transition of a session
type StatusEvent struct {
	EventID    string `json:"event_id"`
	AccountID  string `json:"account_id"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

// PublishReading publishes a normalized meter reading event
func (p *Publisher) PublishReading(ctx context.Context, event ReadingEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published reading event",
		zap.String("routing_key", routingKey),
		zap.String("meter_id", event.MeterID),
		zap.String("reading_date", event.ReadingDate),
	)

	return nil
}

// PublishStatus publishes a connectivity status-changed event
func (p *Publisher) PublishStatus(ctx context.Context, event StatusEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published status event",
		zap.String("routing_key", routingKey),
		zap.String("account_id", event.AccountID),
		zap.String("status", event.Status),
	)

	return nil
}

func (p *Publisher) publish(ctx context.Context, event any, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
