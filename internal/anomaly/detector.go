package anomaly

import (
	"fmt"
)

// Detector flags suspicious daily consumption against recent history.
// A sudden spike usually means a leak or an unnoticed irrigation valve,
// which is exactly what downstream alerting wants to hear about.
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectConsumptionAnomaly checks a daily consumption value against recent
// daily values for the same meter.
func (d *Detector) DetectConsumptionAnomaly(dailyConsumption float64, recentDaily []float64) (bool, string) {
	if dailyConsumption < 0 {
		return true, "negative consumption"
	}

	// Need enough history for spike detection
	if len(recentDaily) < d.minDataPointsForDetection {
		return false, ""
	}

	sum := 0.0
	for _, v := range recentDaily {
		sum += v
	}
	average := sum / float64(len(recentDaily))

	if average > 0 && dailyConsumption > d.spikeThreshold*average {
		return true, fmt.Sprintf("consumption spike: %.3f exceeds %.1fx rolling average %.3f",
			dailyConsumption, d.spikeThreshold, average)
	}

	return false, ""
}
