package citymind

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the production portal. Tests point the client elsewhere.
const DefaultBaseURL = "https://api.city-mind.com"

// loginDeviceID is the fixed device identifier sent with every login request.
const loginDeviceID = "water-metering-collector"

// tokenHeader carries the session token on authenticated requests.
const tokenHeader = "x-access-token"

// errorCodeInvalidCredentials is the portal's login error sentinel for a
// rejected email/password pair.
const errorCodeInvalidCredentials = 5060

// Endpoint path templates. Placeholders are substituted by buildEndpoint;
// a template whose placeholder cannot be resolved is a hard error, never a
// malformed URL.
const (
	endpointLogin               = "/v1/auth/login"
	endpointMe                  = "/v1/consumer/me"
	endpointCustomerService     = "/v1/municipalities/{municipalityId}/customer-service"
	endpointMeters              = "/v1/consumer/meters"
	endpointMyAlerts            = "/v1/consumer/alerts"
	endpointMyMessages          = "/v1/consumer/messages"
	endpointVacations           = "/v1/consumer/vacations"
	endpointAlertSettings       = "/v1/consumer/alert-settings"
	endpointAlertSettingsUpdate = "/v1/consumer/alert-settings/{alertTypeId}"
	endpointLastRead            = "/v1/consumption/last-read/{meterId}"
	endpointConsumptionDaily    = "/v1/consumption/daily/{meterId}/{yesterday}/{today}"
	endpointConsumptionMonthly  = "/v1/consumption/monthly/{meterId}/{currentMonth}"
	endpointConsumptionForecast = "/v1/consumption/forecast/{meterId}/{lastDayOfMonth}"
)

// Placeholder names used inside the endpoint templates.
const (
	paramMeterID        = "{meterId}"
	paramMunicipalityID = "{municipalityId}"
	paramAlertTypeID    = "{alertTypeId}"
	paramToday          = "{today}"
	paramYesterday      = "{yesterday}"
	paramCurrentMonth   = "{currentMonth}"
	paramLastDayOfMonth = "{lastDayOfMonth}"
)

// Raw data store section keys. Each fetched endpoint lands under its key.
const (
	SectionMe                  = "me"
	SectionCustomerService     = "customer-service"
	SectionMeters              = "meters"
	SectionMyAlerts            = "my-alerts"
	SectionMyMessages          = "my-messages"
	SectionVacations           = "vacations"
	SectionAlertSettings       = "alert-settings"
	SectionLastRead            = "last-read"
	SectionConsumptionDaily    = "consumption-daily"
	SectionConsumptionMonthly  = "consumption-monthly"
	SectionConsumptionForecast = "consumption-forecast"
)

type endpointGroupEntry struct {
	key      string
	endpoint string
}

// initializeGroup resolves the account profile, which carries the
// municipality identifier required by the other templates.
var initializeGroup = []endpointGroupEntry{
	{SectionMe, endpointMe},
}

// updateGroup is fetched once per cycle for account-level resources.
var updateGroup = []endpointGroupEntry{
	{SectionCustomerService, endpointCustomerService},
	{SectionMeters, endpointMeters},
	{SectionMyAlerts, endpointMyAlerts},
	{SectionMyMessages, endpointMyMessages},
	{SectionVacations, endpointVacations},
	{SectionAlertSettings, endpointAlertSettings},
}

// perMeterGroup is fetched once per meter per cycle, keyed by meter id.
var perMeterGroup = []endpointGroupEntry{
	{SectionLastRead, endpointLastRead},
	{SectionConsumptionDaily, endpointConsumptionDaily},
	{SectionConsumptionMonthly, endpointConsumptionMonthly},
	{SectionConsumptionForecast, endpointConsumptionForecast},
}

// reloadGroup is re-fetched after an alert-settings mutation.
var reloadGroup = []endpointGroupEntry{
	{SectionAlertSettings, endpointAlertSettings},
}

// endpointParams are the values substituted into endpoint templates.
// Period values always resolve; meter, municipality and alert-type ids are
// request-specific and may legitimately be absent for templates that do not
// reference them.
type endpointParams struct {
	meterID        string
	municipalityID string
	alertTypeID    string
	periods        *AnalyticPeriods
}

// buildEndpoint substitutes the named placeholders of an endpoint template.
// Every placeholder present in the template must resolve to a non-empty
// value; a missing one (e.g. municipality id before the first initialize)
// is reported as an error instead of producing a malformed URL.
func buildEndpoint(endpoint string, params endpointParams) (string, error) {
	// Date placeholders are always seeded so a template that needs them
	// fails hard when no period window was supplied.
	values := map[string]string{
		paramMeterID:        params.meterID,
		paramMunicipalityID: params.municipalityID,
		paramAlertTypeID:    params.alertTypeID,
		paramToday:          "",
		paramYesterday:      "",
		paramCurrentMonth:   "",
		paramLastDayOfMonth: "",
	}

	if params.periods != nil {
		values[paramToday] = params.periods.TodayISO()
		values[paramYesterday] = params.periods.YesterdayISO()
		values[paramCurrentMonth] = params.periods.CurrentMonthISO()
		values[paramLastDayOfMonth] = params.periods.LastDayOfMonthISO()
	}

	result := endpoint

	for placeholder, value := range values {
		if !strings.Contains(result, placeholder) {
			continue
		}

		if value == "" {
			return "", fmt.Errorf("endpoint %s requires parameter %s", endpoint, placeholder)
		}

		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result, nil
}
