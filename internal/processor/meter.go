package processor

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
)

// MeterProcessor reduces the raw data store into fresh per-meter snapshots.
// Like AccountProcessor it tolerates missing keys; a meter without
// consumption rows for the period simply carries nil readings.
type MeterProcessor struct {
	logger *zap.Logger
}

// NewMeterProcessor creates a meter processor.
func NewMeterProcessor(logger *zap.Logger) *MeterProcessor {
	return &MeterProcessor{logger: logger}
}

// Reduce computes a fresh map of meter snapshots keyed by meter id. costs
// may be nil when no tariff configuration applies.
func (p *MeterProcessor) Reduce(snapshot citymind.Snapshot, periods *citymind.AnalyticPeriods, costs CostLookup) map[string]MeterData {
	payload := snapshot.Sections[citymind.SectionMeters]
	if payload == nil {
		return nil
	}

	var meters []citymind.MeterListEntry
	if err := json.Unmarshal(payload, &meters); err != nil {
		p.logger.Warn("failed to parse meter list", zap.Error(err))
		return nil
	}

	lastReads := snapshot.Metered[citymind.SectionLastRead]
	daily := snapshot.Metered[citymind.SectionConsumptionDaily]
	monthly := snapshot.Metered[citymind.SectionConsumptionMonthly]
	forecasts := snapshot.Metered[citymind.SectionConsumptionForecast]

	result := make(map[string]MeterData, len(meters))

	for _, entry := range meters {
		meterID := entry.MeterCount.String()
		if meterID == "" {
			continue
		}

		data := MeterData{
			MeterID:      meterID,
			SerialNumber: entry.SerialNumber,
			Address:      entry.FullAddress,
		}

		data.LastRead = p.lastRead(lastReads[meterID], meterID)
		data.TodayConsumption = p.consumption(daily[meterID], meterID, periods.TodayISO())
		data.YesterdayConsumption = p.consumption(daily[meterID], meterID, periods.YesterdayISO())
		data.MonthlyConsumption = p.consumption(monthly[meterID], meterID, periods.CurrentMonthISO())
		data.ConsumptionForecast = p.forecast(forecasts[meterID], meterID)

		if costs != nil {
			data.Cost = costs(meterID)
		}

		result[meterID] = data
	}

	return result
}

func (p *MeterProcessor) lastRead(payload json.RawMessage, meterID string) float64 {
	if payload == nil {
		return 0
	}

	var lastRead citymind.LastReadPayload
	if err := json.Unmarshal(payload, &lastRead); err != nil {
		p.logger.Warn("failed to parse last read",
			zap.String("meter_id", meterID),
			zap.Error(err),
		)
		return 0
	}

	return roundTo(lastRead.Read, 3)
}

func (p *MeterProcessor) forecast(payload json.RawMessage, meterID string) float64 {
	if payload == nil {
		return 0
	}

	var forecast citymind.ForecastPayload
	if err := json.Unmarshal(payload, &forecast); err != nil {
		p.logger.Warn("failed to parse consumption forecast",
			zap.String("meter_id", meterID),
			zap.Error(err),
		)
		return 0
	}

	return roundTo(forecast.EstimatedConsumption, 3)
}

// consumption scans a consumption table for the row whose meter id matches
// and whose timestamp string starts with the target date; first match wins.
// Returns nil when no row matches.
func (p *MeterProcessor) consumption(payload json.RawMessage, meterID, datePrefix string) *float64 {
	for _, row := range decodeConsumption(payload) {
		if row.MeterCount.String() != meterID {
			continue
		}

		if !strings.HasPrefix(row.Date, datePrefix) {
			continue
		}

		if row.Consumption == nil {
			return nil
		}

		value := roundTo(*row.Consumption, 3)

		return &value
	}

	return nil
}

// decodeConsumption accepts both the bare-list and the {data: [...]} shapes
// the consumption endpoints return.
func decodeConsumption(payload json.RawMessage) []citymind.ConsumptionEntry {
	if payload == nil {
		return nil
	}

	var rows []citymind.ConsumptionEntry
	if err := json.Unmarshal(payload, &rows); err == nil {
		return rows
	}

	var series citymind.ConsumptionSeries
	if err := json.Unmarshal(payload, &series); err == nil {
		return series.Data
	}

	return nil
}

// roundTo rounds half away from zero to the given number of decimal digits,
// matching the formatting used throughout the portal payloads.
func roundTo(value float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))

	return math.Round(value*scale) / scale
}
