package citymind

import "encoding/json"

// Payload schemas for the portal's JSON responses. Numeric identifiers are
// decoded as json.Number since the portal is inconsistent about quoting.

// MeProfile is the account profile returned by the initialize group.
type MeProfile struct {
	AccountNumber json.Number `json:"accountNumber"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	MunicipalID   json.Number `json:"municipalId"`
}

// CustomerService is the municipality contact record.
type CustomerService struct {
	MunicipalID json.Number `json:"municipalId"`
	Description string      `json:"description"`
	PhoneNumber string      `json:"phoneNumber"`
	Email       string      `json:"email"`
}

// MeterListEntry is one meter in the account's meter list. MeterCount is
// the backend's numeric meter identifier, distinct from the serial number.
type MeterListEntry struct {
	MeterCount   json.Number `json:"meterCount"`
	SerialNumber string      `json:"serialNumber"`
	FullAddress  string      `json:"fullAddress"`
}

// AlertSettingEntry is one enabled (alert type, media channel) pair.
type AlertSettingEntry struct {
	AlertTypeID int `json:"alertTypeId"`
	MediaTypeID int `json:"mediaTypeId"`
}

// ConsumptionEntry is one row of a daily or monthly consumption table.
// Date is a timestamp string, not a bare date.
type ConsumptionEntry struct {
	MeterCount  json.Number `json:"meterCount"`
	Date        string      `json:"date"`
	Consumption *float64    `json:"consumption"`
}

// ConsumptionSeries is the wrapped form some consumption endpoints return.
type ConsumptionSeries struct {
	Data []ConsumptionEntry `json:"data"`
}

// LastReadPayload is the per-meter last-read response.
type LastReadPayload struct {
	MeterCount json.Number `json:"meterCount"`
	Read       float64     `json:"read"`
	ReadDate   string      `json:"readDate"`
}

// ForecastPayload is the per-meter consumption forecast response.
type ForecastPayload struct {
	EstimatedConsumption float64 `json:"estimatedConsumption"`
}
