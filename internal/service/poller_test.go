package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nadavgil/water-metering-collector/internal/anomaly"
	"github.com/nadavgil/water-metering-collector/internal/citymind"
	"github.com/nadavgil/water-metering-collector/internal/config"
	"github.com/nadavgil/water-metering-collector/internal/db"
	"github.com/nadavgil/water-metering-collector/internal/mq"
	"github.com/nadavgil/water-metering-collector/internal/service"
	"github.com/nadavgil/water-metering-collector/internal/validator"
	"go.uber.org/zap"
)

type fakeArchive struct {
	mu       sync.Mutex
	accounts []*db.AccountSnapshot
	readings []*db.NormalizedReading
	history  []float64
}

func (f *fakeArchive) UpsertAccount(ctx context.Context, account *db.AccountSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.accounts = append(f.accounts, account)
	return nil
}

func (f *fakeArchive) InsertMeterReading(ctx context.Context, reading *db.NormalizedReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readings = append(f.readings, reading)
	return nil
}

func (f *fakeArchive) RecentDailyConsumption(ctx context.Context, meterID string, limit int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.history, nil
}

func (f *fakeArchive) readingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.readings)
}

func (f *fakeArchive) readingsCopy() []*db.NormalizedReading {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*db.NormalizedReading(nil), f.readings...)
}

type fakePublisher struct {
	mu       sync.Mutex
	readings []mq.ReadingEvent
	statuses []mq.StatusEvent
}

func (f *fakePublisher) PublishReading(ctx context.Context, event mq.ReadingEvent, routingKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readings = append(f.readings, event)
	return nil
}

func (f *fakePublisher) PublishStatus(ctx context.Context, event mq.StatusEvent, routingKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statuses = append(f.statuses, event)
	return nil
}

func (f *fakePublisher) statusNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, len(f.statuses))
	for i, event := range f.statuses {
		names[i] = event.Status
	}

	return names
}

func portalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/auth/login":
			w.Write([]byte(`{"token":"abc123"}`))
		case r.URL.Path == "/v1/consumer/me":
			w.Write([]byte(`{"accountNumber":1234,"firstName":"Ada","lastName":"Naor","municipalId":77}`))
		case r.URL.Path == "/v1/municipalities/77/customer-service":
			w.Write([]byte(`{"description":"City Waterworks","phoneNumber":"107","email":"water@example.gov"}`))
		case r.URL.Path == "/v1/consumer/meters":
			w.Write([]byte(`[{"meterCount":123,"serialNumber":"SN-1","fullAddress":"1 Main St"}]`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumer/alert-settings"):
			w.Write([]byte(`[{"alertTypeId":23,"mediaTypeId":1}]`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumer/"):
			w.Write([]byte(`[]`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumption/last-read/"):
			w.Write([]byte(`{"meterCount":"123","read":843.12,"readDate":"2026-03-07T00:00:00"}`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumption/daily/"):
			parts := strings.Split(r.URL.Path, "/")
			today := parts[len(parts)-1]
			w.Write([]byte(`[{"meterCount":123,"date":"` + today + `T00:00:00","consumption":0.42}]`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumption/monthly/"):
			w.Write([]byte(`{"data":[]}`))
		case strings.HasPrefix(r.URL.Path, "/v1/consumption/forecast/"):
			w.Write([]byte(`{"estimatedConsumption":12.4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		ServiceName: "water-metering-collector",
		Portal: config.PortalConfig{
			BaseURL:        baseURL,
			RequestTimeout: 5 * time.Second,
			SettleDelay:    time.Millisecond,
		},
		Poll: config.PollConfig{
			Interval:          30 * time.Minute,
			WeekendInterval:   time.Hour,
			ReconnectInterval: 10 * time.Millisecond,
		},
		RabbitMQ: config.RabbitMQConfig{
			ReadingsRoutingKey: "meter.reading.normalized",
			StatusRoutingKey:   "collector.status.changed",
		},
		Cost:       config.CostConfig{LowRateThreshold: 7},
		Validation: config.ValidationConfig{MaxDailyConsumption: 100},
		Anomaly:    config.AnomalyConfig{SpikeThreshold: 3, MinDataPointsForDetection: 3},
	}
}

func startPoller(t *testing.T, handler http.Handler, archive *fakeArchive, publisher *fakePublisher) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	registry := citymind.NewRegistry(zap.NewNop())

	poller, err := service.NewPoller(
		config.AccountConfig{Email: "resident@example.com", Password: "secret"},
		registry,
		archive,
		publisher,
		anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection),
		validator.NewValidator(cfg.Validation.MaxDailyConsumption),
		cfg,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		registry.Close()
	})
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("Condition not met within deadline")
}

func TestPoller_ArchivesAndPublishesCycle(t *testing.T) {
	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	startPoller(t, portalHandler(), archive, publisher)

	waitFor(t, func() bool { return archive.readingCount() > 0 })

	readings := archive.readingsCopy()
	reading := readings[0]

	if reading.AccountNumber != 1234 {
		t.Errorf("Unexpected account number: %d", reading.AccountNumber)
	}

	if reading.MeterID != "123" || reading.SerialNumber != "SN-1" {
		t.Errorf("Unexpected meter identity: %s / %s", reading.MeterID, reading.SerialNumber)
	}

	if reading.LastRead != 843.12 {
		t.Errorf("Unexpected last read: %f", reading.LastRead)
	}

	if reading.TodayConsumption == nil || *reading.TodayConsumption != 0.42 {
		t.Errorf("Unexpected today consumption: %v", reading.TodayConsumption)
	}

	if reading.ValidationStatus != "valid" {
		t.Errorf("Expected valid reading, got %s (%v)", reading.ValidationStatus, reading.AnomalyReason)
	}

	waitFor(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.readings) > 0
	})
}

func TestPoller_PublishesStatusTransitions(t *testing.T) {
	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	startPoller(t, portalHandler(), archive, publisher)

	waitFor(t, func() bool {
		for _, name := range publisher.statusNames() {
			if name == "Connected" {
				return true
			}
		}
		return false
	})

	names := publisher.statusNames()
	if names[0] != "Connecting" {
		t.Errorf("Expected first transition 'Connecting', got '%s'", names[0])
	}
}

func TestPoller_InvalidCredentialsIsTerminal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorCode":5060,"errorReason":"Authentication failed"}`))
	})

	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	startPoller(t, handler, archive, publisher)

	waitFor(t, func() bool {
		for _, name := range publisher.statusNames() {
			if name == "InvalidCredentials" {
				return true
			}
		}
		return false
	})

	if archive.readingCount() != 0 {
		t.Error("Expected no archived readings with rejected credentials")
	}
}

func TestPoller_ReconnectsAfterTransportFailure(t *testing.T) {
	handler := portalHandler()

	var loginCount int32
	loginTimes := make(chan time.Time, 16)

	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/login" {
			loginTimes <- time.Now()
			// First login attempt fails at the transport level.
			if atomic.AddInt32(&loginCount, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		handler(w, r)
	})

	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	startPoller(t, flaky, archive, publisher)

	waitFor(t, func() bool {
		for _, name := range publisher.statusNames() {
			if name == "Connected" {
				return true
			}
		}
		return false
	})

	names := publisher.statusNames()
	if names[1] != "Failed" {
		t.Errorf("Expected 'Failed' before recovery, got %v", names)
	}

	first := <-loginTimes
	second := <-loginTimes
	if gap := second.Sub(first); gap < 10*time.Millisecond {
		t.Errorf("Expected re-login delayed by the reconnect interval, got %v", gap)
	}
}

func TestPoller_TokenRejectionIsThrottled(t *testing.T) {
	var loginCount int32

	// The portal accepts logins but rejects every token it issues, the
	// way a concurrent login kicks the session.
	rejecting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/login" {
			atomic.AddInt32(&loginCount, 1)
			w.Write([]byte(`{"token":"abc123"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	startPoller(t, rejecting, archive, publisher)

	waitFor(t, func() bool { return atomic.LoadInt32(&loginCount) >= 2 })
	time.Sleep(120 * time.Millisecond)

	// Each re-login waits the 10ms reconnect interval, so the count stays
	// bounded instead of looping hot.
	if count := atomic.LoadInt32(&loginCount); count > 25 {
		t.Errorf("Expected throttled re-logins, got %d", count)
	}

	if archive.readingCount() != 0 {
		t.Error("Expected no archived readings while the session is rejected")
	}
}

func TestPoller_MarksAnomalousReading(t *testing.T) {
	handler := portalHandler()
	spiking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/consumption/daily/") {
			parts := strings.Split(r.URL.Path, "/")
			today := parts[len(parts)-1]
			w.Write([]byte(`[{"meterCount":123,"date":"` + today + `T00:00:00","consumption":50}]`))
			return
		}
		handler(w, r)
	})

	archive := &fakeArchive{history: []float64{0.4, 0.5, 0.3}}
	publisher := &fakePublisher{}

	startPoller(t, spiking, archive, publisher)

	waitFor(t, func() bool { return archive.readingCount() > 0 })

	reading := archive.readingsCopy()[0]
	if reading.ValidationStatus != "invalid" {
		t.Errorf("Expected invalid reading for spike, got %s", reading.ValidationStatus)
	}

	if reading.AnomalyReason == nil {
		t.Error("Expected anomaly reason for spike")
	}
}
