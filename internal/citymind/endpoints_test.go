package citymind

import (
	"testing"
	"time"
)

func testPeriods(t *testing.T) *AnalyticPeriods {
	t.Helper()

	periods := NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC))

	return periods
}

func TestBuildEndpoint_NoPlaceholders(t *testing.T) {
	got, err := buildEndpoint(endpointMeters, endpointParams{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != "/v1/consumer/meters" {
		t.Errorf("Unexpected endpoint: %s", got)
	}
}

func TestBuildEndpoint_MunicipalityID(t *testing.T) {
	got, err := buildEndpoint(endpointCustomerService, endpointParams{municipalityID: "77"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != "/v1/municipalities/77/customer-service" {
		t.Errorf("Unexpected endpoint: %s", got)
	}
}

func TestBuildEndpoint_DailyConsumption(t *testing.T) {
	params := endpointParams{meterID: "123", periods: testPeriods(t)}

	got, err := buildEndpoint(endpointConsumptionDaily, params)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != "/v1/consumption/daily/123/2026-03-06/2026-03-07" {
		t.Errorf("Unexpected endpoint: %s", got)
	}
}

func TestBuildEndpoint_MonthlyConsumption(t *testing.T) {
	params := endpointParams{meterID: "123", periods: testPeriods(t)}

	got, err := buildEndpoint(endpointConsumptionMonthly, params)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != "/v1/consumption/monthly/123/2026-03" {
		t.Errorf("Unexpected endpoint: %s", got)
	}
}

func TestBuildEndpoint_MissingParameterFails(t *testing.T) {
	// Municipality id is unknown before the first profile fetch.
	if _, err := buildEndpoint(endpointCustomerService, endpointParams{}); err == nil {
		t.Error("Expected error for unresolved municipality id")
	}

	if _, err := buildEndpoint(endpointLastRead, endpointParams{periods: testPeriods(t)}); err == nil {
		t.Error("Expected error for unresolved meter id")
	}
}

func TestBuildEndpoint_MissingPeriodsFails(t *testing.T) {
	// Date placeholders must never pass through unsubstituted.
	for _, endpoint := range []string{
		endpointConsumptionDaily,
		endpointConsumptionMonthly,
		endpointConsumptionForecast,
	} {
		got, err := buildEndpoint(endpoint, endpointParams{meterID: "123"})
		if err == nil {
			t.Errorf("Expected error for %s without a period window, got %q", endpoint, got)
		}
	}
}

func TestBuildEndpoint_AlertTypeID(t *testing.T) {
	got, err := buildEndpoint(endpointAlertSettingsUpdate, endpointParams{alertTypeID: "23"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != "/v1/consumer/alert-settings/23" {
		t.Errorf("Unexpected endpoint: %s", got)
	}
}
