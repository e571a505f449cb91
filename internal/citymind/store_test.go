package citymind_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
)

func TestStore_SetSection(t *testing.T) {
	store := citymind.NewStore()

	if !store.SetSection(citymind.SectionMe, json.RawMessage(`{"accountNumber":1234}`)) {
		t.Error("Expected non-empty payload to be stored")
	}

	got := store.Section(citymind.SectionMe)
	if string(got) != `{"accountNumber":1234}` {
		t.Errorf("Unexpected stored payload: %s", got)
	}
}

func TestStore_EmptyPayloadKeepsPriorValue(t *testing.T) {
	store := citymind.NewStore()
	store.SetSection(citymind.SectionVacations, json.RawMessage(`[{"id":1}]`))

	for _, payload := range []json.RawMessage{nil, json.RawMessage(""), json.RawMessage("null"), json.RawMessage("  null  ")} {
		if store.SetSection(citymind.SectionVacations, payload) {
			t.Errorf("Expected empty payload %q to be skipped", payload)
		}
	}

	got := store.Section(citymind.SectionVacations)
	if string(got) != `[{"id":1}]` {
		t.Errorf("Expected prior value retained, got %s", got)
	}
}

func TestStore_SetMeterSection(t *testing.T) {
	store := citymind.NewStore()

	store.SetMeterSection(citymind.SectionLastRead, "123", json.RawMessage(`{"read":843.12}`))
	store.SetMeterSection(citymind.SectionLastRead, "456", json.RawMessage(`{"read":17.5}`))

	metered := store.MeterSection(citymind.SectionLastRead)
	if len(metered) != 2 {
		t.Fatalf("Expected 2 meter entries, got %d", len(metered))
	}

	if string(metered["123"]) != `{"read":843.12}` {
		t.Errorf("Unexpected payload for meter 123: %s", metered["123"])
	}
}

func TestStore_MeterSectionMergeLeavesOtherMeters(t *testing.T) {
	store := citymind.NewStore()

	store.SetMeterSection(citymind.SectionLastRead, "123", json.RawMessage(`{"read":1}`))
	store.SetMeterSection(citymind.SectionLastRead, "456", json.RawMessage(`{"read":2}`))

	// Updating one meter must not disturb the other's entry.
	store.SetMeterSection(citymind.SectionLastRead, "123", json.RawMessage(`{"read":3}`))

	metered := store.MeterSection(citymind.SectionLastRead)
	if string(metered["123"]) != `{"read":3}` {
		t.Errorf("Expected meter 123 updated, got %s", metered["123"])
	}

	if string(metered["456"]) != `{"read":2}` {
		t.Errorf("Expected meter 456 untouched, got %s", metered["456"])
	}
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	store := citymind.NewStore()
	store.SetSection(citymind.SectionMe, json.RawMessage(`{"a":1}`))
	store.SetMeterSection(citymind.SectionLastRead, "123", json.RawMessage(`{"read":1}`))

	snapshot := store.Snapshot()

	store.SetSection(citymind.SectionMe, json.RawMessage(`{"a":2}`))
	store.SetMeterSection(citymind.SectionLastRead, "123", json.RawMessage(`{"read":9}`))

	if string(snapshot.Sections[citymind.SectionMe]) != `{"a":1}` {
		t.Errorf("Snapshot section mutated: %s", snapshot.Sections[citymind.SectionMe])
	}

	if string(snapshot.Metered[citymind.SectionLastRead]["123"]) != `{"read":1}` {
		t.Errorf("Snapshot metered section mutated: %s", snapshot.Metered[citymind.SectionLastRead]["123"])
	}
}

func TestStore_LastUpdate(t *testing.T) {
	store := citymind.NewStore()

	if !store.LastUpdate().IsZero() {
		t.Error("Expected zero last-update on a fresh store")
	}

	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	store.TouchLastUpdate(now)

	if !store.LastUpdate().Equal(now) {
		t.Errorf("Expected last-update %v, got %v", now, store.LastUpdate())
	}
}
