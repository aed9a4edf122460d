// Package diag keeps the raw failure detail of recent fan-out operations in
// memory, keyed by correlation id, for the admin-only debug surface. Public
// responses only ever carry the normalized failure summary; the raw provider
// errors live here.
package diag

import (
	"sync"
	"time"
)

// defaultCapacity bounds the ring. Old entries fall off; the debug surface
// is for investigating recent incidents, not history.
const defaultCapacity = 256

// Record is the retained detail for one settled operation.
type Record struct {
	CorrelationID string    `json:"correlation_id"`
	Question      string    `json:"question"`
	CohortSize    int       `json:"cohort_size"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	RawFailures   []string  `json:"raw_failures"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Recorder is a fixed-size ring of failure records.
type Recorder struct {
	mu    sync.RWMutex
	byID  map[string]*Record
	order []string
	cap   int
}

// NewRecorder builds a recorder; capacity <= 0 uses the default.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{
		byID: make(map[string]*Record, capacity),
		cap:  capacity,
	}
}

// Record retains the failure detail for a correlation id, evicting the
// oldest entry once at capacity. Operations with no failures are skipped;
// there is nothing to debug.
func (r *Recorder) Record(rec Record) {
	if rec.Failed == 0 || rec.CorrelationID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rec.CorrelationID]; !exists {
		if len(r.order) >= r.cap {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.byID, oldest)
		}
		r.order = append(r.order, rec.CorrelationID)
	}
	r.byID[rec.CorrelationID] = &rec
}

// Lookup returns the record for a correlation id.
func (r *Recorder) Lookup(correlationID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[correlationID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}
