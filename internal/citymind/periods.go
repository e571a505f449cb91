package citymind

import (
	"sync"
	"time"

	"github.com/nadavgil/water-metering-collector/tools/datefmt"
)

// AnalyticPeriods is the rolling today/yesterday/current-month date window
// used to parameterize the consumption endpoints. Recomputed eagerly on
// construction and again whenever the calendar day advances.
type AnalyticPeriods struct {
	mu sync.RWMutex

	today          time.Time
	yesterday      time.Time
	firstOfMonth   time.Time
	lastDayOfMonth time.Time
}

// NewAnalyticPeriods creates the period window for the current date.
func NewAnalyticPeriods() *AnalyticPeriods {
	p := &AnalyticPeriods{}
	p.Update(time.Now())

	return p
}

// Update recomputes all period boundaries from the given instant.
func (p *AnalyticPeriods) Update(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	p.today = today
	p.yesterday = today.AddDate(0, 0, -1)
	p.firstOfMonth = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	p.lastDayOfMonth = datefmt.LastDayOfMonth(today)
}

// Refresh recomputes the window only if the calendar day has advanced since
// the last update. Returns true when the window changed.
func (p *AnalyticPeriods) Refresh(now time.Time) bool {
	p.mu.RLock()
	sameDay := p.today.Year() == now.Year() && p.today.YearDay() == now.YearDay()
	p.mu.RUnlock()

	if sameDay {
		return false
	}

	p.Update(now)

	return true
}

func (p *AnalyticPeriods) Today() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.today
}

func (p *AnalyticPeriods) Yesterday() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.yesterday
}

func (p *AnalyticPeriods) FirstOfMonth() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.firstOfMonth
}

func (p *AnalyticPeriods) LastDayOfMonth() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastDayOfMonth
}

// TodayISO returns today's date as the portal's ISO date string.
func (p *AnalyticPeriods) TodayISO() string {
	return datefmt.FormatDateISO(p.Today())
}

// YesterdayISO returns yesterday's date as the portal's ISO date string.
func (p *AnalyticPeriods) YesterdayISO() string {
	return datefmt.FormatDateISO(p.Yesterday())
}

// CurrentMonthISO returns the current month as YYYY-MM.
func (p *AnalyticPeriods) CurrentMonthISO() string {
	return datefmt.FormatYearMonth(p.FirstOfMonth())
}

// LastDayOfMonthISO returns the last date of the current month as an ISO date.
func (p *AnalyticPeriods) LastDayOfMonthISO() string {
	return datefmt.FormatDateISO(p.LastDayOfMonth())
}
