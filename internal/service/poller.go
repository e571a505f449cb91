package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nadavgil/water-metering-collector/internal/anomaly"
	"github.com/nadavgil/water-metering-collector/internal/citymind"
	"github.com/nadavgil/water-metering-collector/internal/config"
	"github.com/nadavgil/water-metering-collector/internal/db"
	"github.com/nadavgil/water-metering-collector/internal/logging"
	"github.com/nadavgil/water-metering-collector/internal/mq"
	"github.com/nadavgil/water-metering-collector/internal/processor"
	"github.com/nadavgil/water-metering-collector/internal/validator"
	"github.com/nadavgil/water-metering-collector/tools/datefmt"
	"go.uber.org/zap"
)

// Archiver persists reduced snapshots between cycles
type Archiver interface {
	UpsertAccount(ctx context.Context, account *db.AccountSnapshot) error
	InsertMeterReading(ctx context.Context, reading *db.NormalizedReading) error
	RecentDailyConsumption(ctx context.Context, meterID string, limit int) ([]float64, error)
}

// EventPublisher emits reading and status events after each cycle
type EventPublisher interface {
	PublishReading(ctx context.Context, event mq.ReadingEvent, routingKey string) error
	PublishStatus(ctx context.Context, event mq.StatusEvent, routingKey string) error
}

// historyWindow is how many archived daily values feed spike detection
const historyWindow = 10

// Poller drives one portal session: it reacts to connectivity transitions,
// schedules update cycles, and turns each completed cycle into archived
// rows and published events.
type Poller struct {
	accountID string
	client    *citymind.Client

	repo      Archiver
	publisher EventPublisher
	detector  *anomaly.Detector
	validator *validator.Validator
	accounts  *processor.AccountProcessor
	meters    *processor.MeterProcessor
	cfg       *config.Config
	logger    *zap.Logger

	// channels drain the client's synchronous callbacks into the run loop
	statusCh chan citymind.ConnectivityStatus
	dataCh   chan struct{}

	lastCycle time.Time
}

// NewPoller registers a session for the account and wires its callbacks
func NewPoller(
	accountCfg config.AccountConfig,
	registry *citymind.Registry,
	repo Archiver,
	publisher EventPublisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	cfg *config.Config,
	logger *zap.Logger,
) (*Poller, error) {
	p := &Poller{
		accountID: accountCfg.Email,
		repo:      repo,
		publisher: publisher,
		detector:  detector,
		validator: validator,
		accounts:  processor.NewAccountProcessor(logger),
		meters:    processor.NewMeterProcessor(logger),
		cfg:       cfg,
		logger:    logging.WithAccount(logger, accountCfg.Email),
		statusCh:  make(chan citymind.ConnectivityStatus, 8),
		dataCh:    make(chan struct{}, 1),
	}

	callbacks := citymind.Callbacks{
		OnStatusChanged: p.notifyStatus,
		OnDataChanged:   p.notifyData,
	}

	client, err := registry.Create(
		accountCfg.Email,
		citymind.ConfigData{Email: accountCfg.Email, Password: accountCfg.Password},
		callbacks,
		citymind.WithBaseURL(cfg.Portal.BaseURL),
		citymind.WithRequestTimeout(cfg.Portal.RequestTimeout),
		citymind.WithSettleDelay(cfg.Portal.SettleDelay),
	)
	if err != nil {
		return nil, err
	}

	p.client = client

	return p, nil
}

// Client exposes the underlying session, used by the command handler
func (p *Poller) Client() *citymind.Client {
	return p.client
}

// notifyStatus feeds a transition into the run loop without blocking the
// client. The callback fires from inside client calls, so it must not wait.
func (p *Poller) notifyStatus(status citymind.ConnectivityStatus) {
	select {
	case p.statusCh <- status:
	default:
		p.logger.Warn("status channel full, dropping transition",
			zap.String("status", status.String()),
		)
	}
}

func (p *Poller) notifyData() {
	select {
	case p.dataCh <- struct{}{}:
	default:
	}
}

// Run drives the session until the context is cancelled
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller starting")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	p.client.Initialize(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping")
			return
		case status := <-p.statusCh:
			p.handleStatus(ctx, status)
		case <-p.dataCh:
			p.snapshotAndPublish(ctx)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) handleStatus(ctx context.Context, status citymind.ConnectivityStatus) {
	p.publishStatus(ctx, status)

	switch status {
	case citymind.StatusConnected:
		p.client.Update(ctx)
	case citymind.StatusNotConnected, citymind.StatusFailed, citymind.StatusMissingAPIKey:
		// NotConnected means the portal rejected the session token
		// mid-cycle. The portal may keep rejecting tokens it just
		// issued (a concurrent login kicks the session), so the
		// re-login waits the reconnect interval like the failure
		// path instead of looping hot.
		p.logger.Warn("session lost, reconnecting",
			zap.String("status", status.String()),
			zap.Duration("after", p.cfg.Poll.ReconnectInterval),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Poll.ReconnectInterval):
		}
		p.client.Initialize(ctx)
	case citymind.StatusInvalidCredentials:
		p.logger.Warn("invalid credentials, not retrying")
	}
}

func (p *Poller) publishStatus(ctx context.Context, status citymind.ConnectivityStatus) {
	event := mq.StatusEvent{
		EventID:    uuid.New().String(),
		AccountID:  p.accountID,
		Status:     status.String(),
		OccurredAt: time.Now().Format(time.RFC3339),
	}

	if err := p.publisher.PublishStatus(ctx, event, p.cfg.RabbitMQ.StatusRoutingKey); err != nil {
		p.logger.Error("failed to publish status event", zap.Error(err))
	}
}

// tick runs an update cycle when the poll interval has elapsed. Weekends
// poll less often since the portal refreshes its figures overnight.
func (p *Poller) tick(ctx context.Context) {
	if !p.client.Status().IsOnline() {
		return
	}

	if time.Since(p.lastCycle) < p.currentInterval() {
		return
	}

	p.client.Update(ctx)
}

func (p *Poller) currentInterval() time.Duration {
	weekday := time.Now().Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return p.cfg.Poll.WeekendInterval
	}

	return p.cfg.Poll.Interval
}

// snapshotAndPublish reduces the raw store into account and meter snapshots,
// archives them, and publishes one reading event per meter
func (p *Poller) snapshotAndPublish(ctx context.Context) {
	p.lastCycle = time.Now()

	snapshot := p.client.Data()
	account := p.accounts.Reduce(snapshot)
	meters := p.meters.Reduce(snapshot, p.client.Periods(), p.costLookup())

	p.archiveAccount(ctx, account)

	readingDate := p.client.Periods().Today()
	collectedAt := time.Now()

	for _, meter := range meters {
		p.archiveMeter(ctx, account, meter, readingDate, collectedAt)
	}

	p.logger.Info("cycle archived",
		zap.Int64("account_number", account.AccountNumber),
		zap.Int("meter_count", len(meters)),
	)
}

func (p *Poller) archiveAccount(ctx context.Context, account processor.AccountData) {
	row := &db.AccountSnapshot{
		AccountNumber:  account.AccountNumber,
		Email:          p.accountID,
		FirstName:      account.FirstName,
		LastName:       account.LastName,
		MunicipalID:    account.MunicipalID,
		MunicipalName:  account.MunicipalName,
		MunicipalPhone: account.MunicipalPhone,
		MunicipalEmail: account.MunicipalEmail,
		Vacations:      account.Vacations,
		Alerts:         account.Alerts,
		Messages:       account.Messages,
		UpdatedAt:      time.Now(),
	}

	if err := p.repo.UpsertAccount(ctx, row); err != nil {
		p.logger.Error("failed to archive account snapshot", zap.Error(err))
	}
}

func (p *Poller) archiveMeter(
	ctx context.Context,
	account processor.AccountData,
	meter processor.MeterData,
	readingDate time.Time,
	collectedAt time.Time,
) {
	validationStatus := "valid"
	var anomalyReason *string

	result := p.validator.ValidateReading(meter)
	if !result.IsValid {
		validationStatus = "invalid"
		anomalyReason = &result.AnomalyReason
	} else if meter.TodayConsumption != nil {
		recent, err := p.repo.RecentDailyConsumption(ctx, meter.MeterID, historyWindow)
		if err != nil {
			p.logger.Warn("failed to load consumption history for anomaly detection",
				zap.Error(err),
				zap.String("meter_id", meter.MeterID),
			)
		} else {
			isAnomaly, reason := p.detector.DetectConsumptionAnomaly(*meter.TodayConsumption, recent)
			if isAnomaly {
				validationStatus = "invalid"
				anomalyReason = &reason
				p.logger.Debug("consumption anomaly detected",
					zap.String("meter_id", meter.MeterID),
					zap.String("reason", reason),
				)
			}
		}
	}

	reading := &db.NormalizedReading{
		ID:                   uuid.New(),
		AccountNumber:        account.AccountNumber,
		MeterID:              meter.MeterID,
		SerialNumber:         meter.SerialNumber,
		ReadingDate:          readingDate,
		LastRead:             meter.LastRead,
		TodayConsumption:     meter.TodayConsumption,
		YesterdayConsumption: meter.YesterdayConsumption,
		MonthlyConsumption:   meter.MonthlyConsumption,
		ConsumptionForecast:  meter.ConsumptionForecast,
		ValidationStatus:     validationStatus,
		AnomalyReason:        anomalyReason,
		CollectedAt:          collectedAt,
	}

	if err := p.repo.InsertMeterReading(ctx, reading); err != nil {
		p.logger.Error("failed to archive meter reading",
			zap.Error(err),
			zap.String("meter_id", meter.MeterID),
		)
		return
	}

	event := mq.ReadingEvent{
		EventID:              reading.ID.String(),
		AccountNumber:        reading.AccountNumber,
		MeterID:              reading.MeterID,
		SerialNumber:         reading.SerialNumber,
		ReadingDate:          datefmt.FormatDateISO(readingDate),
		LastRead:             reading.LastRead,
		TodayConsumption:     reading.TodayConsumption,
		YesterdayConsumption: reading.YesterdayConsumption,
		MonthlyConsumption:   reading.MonthlyConsumption,
		ConsumptionForecast:  reading.ConsumptionForecast,
		ValidationStatus:     reading.ValidationStatus,
		AnomalyReason:        reading.AnomalyReason,
		CollectedAt:          collectedAt.Format(time.RFC3339),
	}

	if err := p.publisher.PublishReading(ctx, event, p.cfg.RabbitMQ.ReadingsRoutingKey); err != nil {
		p.logger.Error("failed to publish reading event",
			zap.Error(err),
			zap.String("meter_id", meter.MeterID),
		)
	}
}

func (p *Poller) costLookup() processor.CostLookup {
	return func(meterID string) processor.CostConfig {
		cost := p.cfg.CostFor(meterID)

		return processor.CostConfig{
			LowRateThreshold: cost.LowRateThreshold,
			LowRateCost:      cost.LowRateCost,
			HighRateCost:     cost.HighRateCost,
			SewageCost:       cost.SewageCost,
		}
	}
}
