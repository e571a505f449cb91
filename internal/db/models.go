package db

import (
	"time"

	"github.com/google/uuid"
)

// AccountSnapshot is the archived account record, upserted once per cycle
type AccountSnapshot struct {
	AccountNumber  int64
	Email          string
	FirstName      string
	LastName       string
	MunicipalID    string
	MunicipalName  string
	MunicipalPhone string
	MunicipalEmail string
	Vacations      int
	Alerts         int
	Messages       int
	UpdatedAt      time.Time
}

// NormalizedReading is one archived per-meter reading snapshot
type NormalizedReading struct {
	ID                   uuid.UUID
	AccountNumber        int64
	MeterID              string
	SerialNumber         string
	ReadingDate          time.Time
	LastRead             float64
	TodayConsumption     *float64
	YesterdayConsumption *float64
	MonthlyConsumption   *float64
	ConsumptionForecast  float64
	ValidationStatus     string
	AnomalyReason        *string
	CollectedAt          time.Time
}
