package latesttrip

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fleetops/internal/domain/models"
	"fleetops/internal/reconcile"
)

var errStoreDown = errors.New("store unavailable")

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 8, 0, 0, 0, time.UTC)
	return &t
}

func at(d, hour int) *time.Time {
	t := time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
	return &t
}

type memTrips struct {
	mu            sync.Mutex
	trips         map[string]models.Trip
	failSummaries error
	failSiblings  error
}

func newMemTrips(trips ...models.Trip) *memTrips {
	m := &memTrips{trips: map[string]models.Trip{}}
	for _, t := range trips {
		m.trips[t.ID] = t
	}
	return m
}

func (m *memTrips) put(t models.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
}

func (m *memTrips) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trips, id)
}

func (m *memTrips) rank(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trips[id].RankIndex
}

func (m *memTrips) summaries(vehicle string) []models.TripSummary {
	var out []models.TripSummary
	for _, t := range m.trips {
		if t.VehicleNumber == vehicle {
			out = append(out, t.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memTrips) FindTripSummaries(ctx context.Context, vehicle string) ([]models.TripSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSummaries != nil {
		return nil, m.failSummaries
	}
	return m.summaries(vehicle), nil
}

func (m *memTrips) FindLatestTripSummary(ctx context.Context, vehicle string) (models.TripSummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSummaries != nil {
		return models.TripSummary{}, false, m.failSummaries
	}
	ranked := Rank(m.summaries(vehicle))
	if len(ranked) == 0 {
		return models.TripSummary{}, false, nil
	}
	return ranked[0], true, nil
}

func (m *memTrips) FindSameDaySiblings(ctx context.Context, vehicle string, from, to time.Time, excludeID string) ([]models.TripSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSiblings != nil {
		return nil, m.failSiblings
	}
	var out []models.TripSummary
	for _, s := range m.summaries(vehicle) {
		if s.ID == excludeID || s.StartDate == nil {
			continue
		}
		if !s.StartDate.Before(from) && s.StartDate.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memTrips) IncrementRanks(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		t := m.trips[id]
		t.RankIndex++
		m.trips[id] = t
	}
	return nil
}

func (m *memTrips) SetRank(ctx context.Context, id string, rank int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.trips[id]
	t.RankIndex = rank
	m.trips[id] = t
	return nil
}

type memVehicles struct {
	mu       sync.Mutex
	pointers map[string]string
	failing  map[string]int // remaining failed writes per vehicle, <0 = always
	failBulk error
	writes   int
	bulks    int
}

func newMemVehicles(numbers ...string) *memVehicles {
	m := &memVehicles{pointers: map[string]string{}, failing: map[string]int{}}
	for _, n := range numbers {
		m.pointers[n] = ""
	}
	return m
}

func (m *memVehicles) failWrites(vehicle string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[vehicle] = n
}

func (m *memVehicles) pointer(vehicle string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointers[vehicle]
}

func (m *memVehicles) FindLatestTripPointer(ctx context.Context, vehicle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointers[vehicle], nil
}

func (m *memVehicles) SetLatestTripPointer(ctx context.Context, vehicle, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.failing[vehicle]; ok && n != 0 {
		if n > 0 {
			m.failing[vehicle] = n - 1
		}
		return errStoreDown
	}
	m.writes++
	m.pointers[vehicle] = tripID
	return nil
}

func (m *memVehicles) BulkSetLatestTripPointers(ctx context.Context, updates []models.PointerUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBulk != nil {
		return m.failBulk
	}
	m.bulks++
	for _, u := range updates {
		m.pointers[u.VehicleNumber] = u.TripID
	}
	return nil
}

func (m *memVehicles) ListVehicleNumbers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pointers))
	for n := range m.pointers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

type recordingQueue struct {
	mu     sync.Mutex
	jobs   []reconcile.Job
	full   bool
	active int
}

func (q *recordingQueue) Submit(job reconcile.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

func (q *recordingQueue) Stats() reconcile.Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return reconcile.Stats{Capacity: 3, Active: q.active, Submitted: uint64(len(q.jobs))}
}

func (q *recordingQueue) Close(context.Context) error { return nil }

func (q *recordingQueue) queuedVehicles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, j := range q.jobs {
		out = append(out, j.VehicleNumbers...)
	}
	sort.Strings(out)
	return out
}

// testConfig keeps retries and backoffs short.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WriteAttempts = 2
	cfg.WriteBaseDelay = time.Millisecond
	cfg.JobBaseDelay = time.Millisecond
	cfg.JobTimeout = time.Second
	cfg.OpTimeout = time.Second
	cfg.RateLimitWindow = 20 * time.Millisecond
	cfg.RateLimitMax = 100
	cfg.RateLimitDelay = 5 * time.Millisecond
	cfg.Location = time.UTC
	return cfg
}
