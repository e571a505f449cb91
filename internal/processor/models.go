package processor

import (
	"github.com/nadavgil/water-metering-collector/internal/citymind"
)

// AlertSettingKey identifies one cell of the alert-settings matrix.
type AlertSettingKey struct {
	Type    citymind.AlertType
	Channel citymind.AlertChannel
}

// AccountData is the per-cycle account snapshot reduced from the raw store.
// Fully replaced every cycle, never merged.
type AccountData struct {
	AccountNumber  int64
	FirstName      string
	LastName       string
	MunicipalID    string
	MunicipalName  string
	MunicipalPhone string
	MunicipalEmail string
	Vacations      int
	Alerts         int
	Messages       int
	AlertSettings  map[AlertSettingKey]bool
}

// CostConfig are the per-meter tariff parameters supplied by configuration.
type CostConfig struct {
	LowRateThreshold float64
	LowRateCost      float64
	HighRateCost     float64
	SewageCost       float64
}

// CostLookup resolves the tariff parameters for a meter id.
type CostLookup func(meterID string) CostConfig

// MeterData is the per-cycle snapshot of a single meter. Consumption fields
// are nil when the raw store had no matching row for the period.
type MeterData struct {
	MeterID              string
	SerialNumber         string
	Address              string
	LastRead             float64
	TodayConsumption     *float64
	YesterdayConsumption *float64
	MonthlyConsumption   *float64
	ConsumptionForecast  float64
	Cost                 CostConfig
}

func (m MeterData) monthly() float64 {
	if m.MonthlyConsumption == nil {
		return 0
	}

	return *m.MonthlyConsumption
}

// LowRateMonthlyConsumption is the portion of this month's consumption
// billed at the low rate: min(monthly, threshold).
func (m MeterData) LowRateMonthlyConsumption() float64 {
	monthly := m.monthly()

	if monthly > m.Cost.LowRateThreshold {
		return m.Cost.LowRateThreshold
	}

	return monthly
}

// HighRateMonthlyConsumption is the portion above the low-rate threshold.
func (m MeterData) HighRateMonthlyConsumption() float64 {
	monthly := m.monthly()

	if monthly > m.Cost.LowRateThreshold {
		return monthly - m.Cost.LowRateThreshold
	}

	return 0
}
