package citymind_test

import (
	"testing"
	"time"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
)

func TestAnalyticPeriods_Update(t *testing.T) {
	periods := citymind.NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 7, 15, 42, 11, 0, time.UTC))

	if got := periods.TodayISO(); got != "2026-03-07" {
		t.Errorf("Expected today '2026-03-07', got '%s'", got)
	}

	if got := periods.YesterdayISO(); got != "2026-03-06" {
		t.Errorf("Expected yesterday '2026-03-06', got '%s'", got)
	}

	if got := periods.CurrentMonthISO(); got != "2026-03" {
		t.Errorf("Expected current month '2026-03', got '%s'", got)
	}

	if got := periods.LastDayOfMonthISO(); got != "2026-03-31" {
		t.Errorf("Expected last day '2026-03-31', got '%s'", got)
	}
}

func TestAnalyticPeriods_UpdateAcrossMonthStart(t *testing.T) {
	periods := citymind.NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC))

	// Yesterday falls into the previous month; the month window does not.
	if got := periods.YesterdayISO(); got != "2026-02-28" {
		t.Errorf("Expected yesterday '2026-02-28', got '%s'", got)
	}

	if got := periods.CurrentMonthISO(); got != "2026-03" {
		t.Errorf("Expected current month '2026-03', got '%s'", got)
	}
}

func TestAnalyticPeriods_RefreshSameDay(t *testing.T) {
	periods := citymind.NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 7, 1, 0, 0, 0, time.UTC))

	if periods.Refresh(time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)) {
		t.Error("Expected no refresh within the same calendar day")
	}

	if got := periods.TodayISO(); got != "2026-03-07" {
		t.Errorf("Expected today unchanged, got '%s'", got)
	}
}

func TestAnalyticPeriods_RefreshDayAdvance(t *testing.T) {
	periods := citymind.NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC))

	if !periods.Refresh(time.Date(2026, 3, 8, 0, 1, 0, 0, time.UTC)) {
		t.Error("Expected refresh when the day advances")
	}

	if got := periods.TodayISO(); got != "2026-03-08" {
		t.Errorf("Expected today '2026-03-08', got '%s'", got)
	}

	if got := periods.YesterdayISO(); got != "2026-03-07" {
		t.Errorf("Expected yesterday '2026-03-07', got '%s'", got)
	}
}

func TestAnalyticPeriods_TodayAtMidnight(t *testing.T) {
	periods := citymind.NewAnalyticPeriods()
	periods.Update(time.Date(2026, 3, 7, 18, 45, 12, 0, time.UTC))

	expected := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	if !periods.Today().Equal(expected) {
		t.Errorf("Expected today at midnight %v, got %v", expected, periods.Today())
	}
}
