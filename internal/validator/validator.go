package validator

import (
	"fmt"

	"github.com/nadavgil/water-metering-collector/internal/processor"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid       bool
	AnomalyReason string
}

// Validator checks normalized meter snapshots before they are archived and
// republished. The portal occasionally serves negative or absurd readings
// after meter swaps; those are archived as invalid rather than dropped.
type Validator struct {
	maxDailyConsumption float64
}

// NewValidator creates a new validator with the specified daily ceiling
func NewValidator(maxDailyConsumption float64) *Validator {
	return &Validator{
		maxDailyConsumption: maxDailyConsumption,
	}
}

// ValidateReading validates a single normalized meter snapshot
func (v *Validator) ValidateReading(meter processor.MeterData) ValidationResult {
	result := ValidationResult{IsValid: true}

	if meter.MeterID == "" {
		result.IsValid = false
		result.AnomalyReason = "empty meter id"
		return result
	}

	if meter.LastRead < 0 {
		result.IsValid = false
		result.AnomalyReason = "negative last read"
		return result
	}

	for _, value := range []*float64{meter.TodayConsumption, meter.YesterdayConsumption, meter.MonthlyConsumption} {
		if value != nil && *value < 0 {
			result.IsValid = false
			result.AnomalyReason = "negative consumption value"
			return result
		}
	}

	if meter.TodayConsumption != nil && *meter.TodayConsumption > v.maxDailyConsumption {
		result.IsValid = false
		result.AnomalyReason = fmt.Sprintf("daily consumption %.3f exceeds ceiling %.3f", *meter.TodayConsumption, v.maxDailyConsumption)
		return result
	}

	return result
}
