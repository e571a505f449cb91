package citymind

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"
)

// Store is the raw data store: a mapping from endpoint section key to the
// last successfully fetched payload, plus per-meter sub-maps for the
// meter-scoped endpoints. Only the session client writes to it during an
// update cycle; processors and the archive read snapshots.
//
// Merge policy: a fetch that returned no data leaves the existing value
// untouched. Stale-but-present data is preferred over erasing known-good
// prior data on a transient empty response.
type Store struct {
	mu sync.RWMutex

	sections map[string]json.RawMessage
	metered  map[string]map[string]json.RawMessage

	lastUpdate time.Time
}

// Snapshot is a point-in-time copy of the store contents, safe to read
// while the next cycle is writing.
type Snapshot struct {
	Sections   map[string]json.RawMessage
	Metered    map[string]map[string]json.RawMessage
	LastUpdate time.Time
}

func NewStore() *Store {
	return &Store{
		sections: map[string]json.RawMessage{},
		metered:  map[string]map[string]json.RawMessage{},
	}
}

var jsonNull = []byte("null")

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)

	return len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull)
}

// SetSection replaces the payload stored under key. Empty payloads are
// skipped and the prior value retained; returns whether the value was stored.
func (s *Store) SetSection(key string, payload json.RawMessage) bool {
	if isEmptyPayload(payload) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sections[key] = payload

	return true
}

// SetMeterSection stores the payload for a single meter under the section's
// per-meter sub-map. Entries for other meters are untouched.
func (s *Store) SetMeterSection(key, meterID string, payload json.RawMessage) bool {
	if isEmptyPayload(payload) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metered, ok := s.metered[key]
	if !ok {
		metered = map[string]json.RawMessage{}
		s.metered[key] = metered
	}

	metered[meterID] = payload

	return true
}

// Section returns the last payload stored under key, or nil.
func (s *Store) Section(key string) json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sections[key]
}

// MeterSection returns a copy of the per-meter sub-map stored under key.
func (s *Store) MeterSection(key string) map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metered, ok := s.metered[key]
	if !ok {
		return nil
	}

	result := make(map[string]json.RawMessage, len(metered))
	for meterID, payload := range metered {
		result[meterID] = payload
	}

	return result
}

// TouchLastUpdate refreshes the last successful fetch timestamp.
func (s *Store) TouchLastUpdate(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUpdate = t
}

// LastUpdate returns when an authenticated fetch last succeeded.
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastUpdate
}

// Snapshot copies the full store contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := Snapshot{
		Sections:   make(map[string]json.RawMessage, len(s.sections)),
		Metered:    make(map[string]map[string]json.RawMessage, len(s.metered)),
		LastUpdate: s.lastUpdate,
	}

	for key, payload := range s.sections {
		snapshot.Sections[key] = payload
	}

	for key, metered := range s.metered {
		copied := make(map[string]json.RawMessage, len(metered))
		for meterID, payload := range metered {
			copied[meterID] = payload
		}

		snapshot.Metered[key] = copied
	}

	return snapshot
}
