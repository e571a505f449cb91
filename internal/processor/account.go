package processor

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
)

// alertMatrix enumerates every (alert type, media channel) cell the account
// snapshot reports on.
var alertMatrix = []AlertSettingKey{
	{citymind.AlertTypeLeak, citymind.AlertChannelEmail},
	{citymind.AlertTypeLeak, citymind.AlertChannelSMS},
	{citymind.AlertTypeDailyThreshold, citymind.AlertChannelEmail},
	{citymind.AlertTypeDailyThreshold, citymind.AlertChannelSMS},
	{citymind.AlertTypeConsumptionWhileAway, citymind.AlertChannelEmail},
	{citymind.AlertTypeConsumptionWhileAway, citymind.AlertChannelSMS},
}

// AccountProcessor reduces the raw data store into an AccountData snapshot.
// It is a pure per-cycle transformer: missing or malformed sections are
// tolerated and reported as zero values, never as errors, since a partially
// populated store (e.g. mid-recovery) is a normal input.
type AccountProcessor struct {
	logger *zap.Logger
}

// NewAccountProcessor creates an account processor.
func NewAccountProcessor(logger *zap.Logger) *AccountProcessor {
	return &AccountProcessor{logger: logger}
}

// Reduce computes a fresh account snapshot from the given store snapshot.
func (p *AccountProcessor) Reduce(snapshot citymind.Snapshot) AccountData {
	account := AccountData{
		AlertSettings: make(map[AlertSettingKey]bool, len(alertMatrix)),
	}

	p.reduceProfile(snapshot, &account)
	p.reduceCustomerService(snapshot, &account)

	account.Vacations = p.itemCount(snapshot, citymind.SectionVacations)
	account.Alerts = p.itemCount(snapshot, citymind.SectionMyAlerts)
	account.Messages = p.itemCount(snapshot, citymind.SectionMyMessages)

	p.reduceAlertSettings(snapshot, &account)

	return account
}

func (p *AccountProcessor) reduceProfile(snapshot citymind.Snapshot, account *AccountData) {
	payload := snapshot.Sections[citymind.SectionMe]
	if payload == nil {
		return
	}

	var me citymind.MeProfile
	if err := json.Unmarshal(payload, &me); err != nil {
		p.logger.Warn("failed to parse account profile", zap.Error(err))
		return
	}

	account.AccountNumber, _ = me.AccountNumber.Int64()
	account.FirstName = me.FirstName
	account.LastName = me.LastName
	account.MunicipalID = me.MunicipalID.String()
}

func (p *AccountProcessor) reduceCustomerService(snapshot citymind.Snapshot, account *AccountData) {
	payload := snapshot.Sections[citymind.SectionCustomerService]
	if payload == nil {
		return
	}

	var service citymind.CustomerService
	if err := json.Unmarshal(payload, &service); err != nil {
		p.logger.Warn("failed to parse customer service section", zap.Error(err))
		return
	}

	account.MunicipalName = service.Description
	account.MunicipalPhone = service.PhoneNumber
	account.MunicipalEmail = service.Email
}

func (p *AccountProcessor) reduceAlertSettings(snapshot citymind.Snapshot, account *AccountData) {
	var entries []citymind.AlertSettingEntry

	payload := snapshot.Sections[citymind.SectionAlertSettings]
	if payload != nil {
		if err := json.Unmarshal(payload, &entries); err != nil {
			p.logger.Warn("failed to parse alert settings section", zap.Error(err))
		}
	}

	for _, key := range alertMatrix {
		enabled := false

		for _, entry := range entries {
			if entry.AlertTypeID == int(key.Type) && entry.MediaTypeID == int(key.Channel) {
				enabled = true
				break
			}
		}

		account.AlertSettings[key] = enabled
	}
}

func (p *AccountProcessor) itemCount(snapshot citymind.Snapshot, section string) int {
	payload := snapshot.Sections[section]
	if payload == nil {
		return 0
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		p.logger.Warn("failed to parse list section",
			zap.String("section", section),
			zap.Error(err),
		)
		return 0
	}

	return len(items)
}
