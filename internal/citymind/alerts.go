package citymind

import "strconv"

// AlertChannel is the portal's numeric id for a notification medium.
type AlertChannel int

const (
	AlertChannelEmail AlertChannel = 1
	AlertChannelSMS   AlertChannel = 3
)

func (c AlertChannel) String() string {
	switch c {
	case AlertChannelEmail:
		return "email"
	case AlertChannelSMS:
		return "sms"
	default:
		return strconv.Itoa(int(c))
	}
}

// AlertType is the portal's numeric id for an alert category.
type AlertType int

const (
	AlertTypeDailyThreshold       AlertType = 12
	AlertTypeLeak                 AlertType = 23
	AlertTypeConsumptionWhileAway AlertType = 1001
)

func (t AlertType) String() string {
	switch t {
	case AlertTypeDailyThreshold:
		return "daily-threshold"
	case AlertTypeLeak:
		return "leak"
	case AlertTypeConsumptionWhileAway:
		return "consumption-while-away"
	default:
		return strconv.Itoa(int(t))
	}
}
