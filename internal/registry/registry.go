package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record is one registry entry: a device identity plus its last known
// reachability and the key material that applies to it.
//
// Records are owned by the Registry; every accessor returns a copy, so
// callers can never mutate registry state through a returned Record.
type Record struct {
	// Identity is the immutable device identity.
	Identity device.Identity

	// LocalAddr is the last known local address ("ip:port"), empty if the
	// device has never been seen locally or its entry went stale.
	LocalAddr string

	// LastSeen is when the device last answered locally. Zero when
	// LocalAddr is empty.
	LastSeen time.Time

	// CloudKnown marks devices the cloud relay can reach.
	CloudKnown bool

	// Key is the per-device AES key, nil when the device uses the
	// well-known development key. Sessions look this up per attempt and
	// never cache it independently.
	Key []byte
}

// copy returns a deep copy of the record.
func (r *Record) copy() Record {
	c := *r
	if r.Key != nil {
		c.Key = append([]byte{}, r.Key...)
	}
	return c
}

// LocallyReachable reports whether the record carries a usable local
// address.
func (r Record) LocallyReachable() bool { return r.LocalAddr != "" }

// Reachability is the observation fed into Upsert: where a device was
// seen and when.
type Reachability struct {
	// LocalAddr is the observed local address, empty for cloud-only
	// observations.
	LocalAddr string

	// CloudKnown marks a cloud-side observation.
	CloudKnown bool

	// SeenAt timestamps the observation. Concurrent upserts for the same
	// identity are serialised and the later SeenAt wins.
	SeenAt time.Time
}

// Registry is the in-memory catalogue of known devices, keyed by unit id.
// A unit id appears at most once at any time.
//
// An optional Repository persists records across runs so a fresh process
// can dispatch to known devices before the first discovery round answers.
//
// All public methods are thread-safe. Upserts are serialised by a single
// writer lock; the SeenAt comparison makes their arrival order
// irrelevant.
type Registry struct {
	mu      sync.RWMutex
	records map[device.UnitID]*Record

	repo   Repository
	logger Logger
}

// New creates a registry. The repository may be nil for a purely
// in-memory registry.
func New(repo Repository) *Registry {
	return &Registry{
		records: make(map[device.UnitID]*Record),
		repo:    repo,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// LoadCache populates the registry from the repository.
// Call once at startup; a nil repository makes this a no-op.
func (r *Registry) LoadCache(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading cached devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		r.records[rec.Identity.UnitID] = &rec
	}

	r.logger.Info("device cache loaded", "count", len(records))
	return nil
}

// Upsert records an observation of a device. A new record is created for
// an unknown identity; an existing record is refreshed. For the same
// identity, the observation with the later SeenAt wins regardless of
// arrival order; cloud knowledge is sticky until PurgeStale removes the
// record.
func (r *Registry) Upsert(ctx context.Context, identity device.Identity, info Reachability) error {
	if identity.UnitID == "" {
		return ErrEmptyUnitID
	}

	r.mu.Lock()
	rec, ok := r.records[identity.UnitID]
	if !ok {
		rec = &Record{Identity: identity}
		r.records[identity.UnitID] = rec
	}
	if info.LocalAddr != "" && !info.SeenAt.Before(rec.LastSeen) {
		rec.LocalAddr = info.LocalAddr
		rec.LastSeen = info.SeenAt
	}
	if info.CloudKnown {
		rec.CloudKnown = true
	}
	if identity.ProductID != "" && rec.Identity.ProductID == "" {
		// A selector-built record learning its full identity from discovery.
		rec.Identity = identity
	}
	snapshot := rec.copy()
	r.mu.Unlock()

	r.persist(ctx, snapshot)

	r.logger.Debug("device upserted",
		"unit_id", identity.UnitID,
		"local_addr", info.LocalAddr,
		"cloud_known", snapshot.CloudKnown,
	)
	return nil
}

// SetKey associates per-device AES key material with a unit id, creating
// a bare record if the device is not yet known. Key material is held in
// memory only; it is never written to the repository.
func (r *Registry) SetKey(unitID device.UnitID, key []byte) error {
	if unitID == "" {
		return ErrEmptyUnitID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[unitID]
	if !ok {
		rec = &Record{Identity: device.Identity{UnitID: unitID, Class: device.ClassUnknown}}
		r.records[unitID] = rec
	}
	rec.Key = append([]byte{}, key...)
	return nil
}

// Lookup returns a copy of the record for a unit id.
// Returns ErrNotFound if the device is unknown.
func (r *Registry) Lookup(unitID device.UnitID) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[unitID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, unitID)
	}
	return rec.copy(), nil
}

// All returns copies of every record, in unspecified order.
func (r *Registry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.copy())
	}
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Stale reports whether a record's local reachability is older than the
// threshold. Records never seen locally are not stale, just unreachable.
func (r Record) Stale(threshold time.Duration, now time.Time) bool {
	return r.LocalAddr != "" && now.Sub(r.LastSeen) > threshold
}

// PurgeStale clears local reachability older than threshold. Records that
// are also unknown to the cloud are removed entirely. Returns the number
// of records touched.
func (r *Registry) PurgeStale(ctx context.Context, threshold time.Duration) int {
	now := time.Now()
	touched := 0

	r.mu.Lock()
	var removed []device.UnitID
	var demoted []Record
	for id, rec := range r.records {
		if !rec.Stale(threshold, now) {
			continue
		}
		touched++
		if rec.CloudKnown {
			rec.LocalAddr = ""
			rec.LastSeen = time.Time{}
			demoted = append(demoted, rec.copy())
		} else {
			delete(r.records, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	for _, rec := range demoted {
		r.persist(ctx, rec)
	}
	if r.repo != nil {
		for _, id := range removed {
			if err := r.repo.Delete(ctx, id); err != nil {
				r.logger.Warn("removing cached device", "unit_id", id, "error", err)
			}
		}
	}

	if touched > 0 {
		r.logger.Info("purged stale reachability", "count", touched, "threshold", threshold)
	}
	return touched
}

// persist writes a record snapshot to the repository, logging failures
// instead of surfacing them; a broken cache must not fail discovery.
func (r *Registry) persist(ctx context.Context, rec Record) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Save(ctx, rec); err != nil {
		r.logger.Warn("persisting device record", "unit_id", rec.Identity.UnitID, "error", err)
	}
}

// Stats holds registry statistics for logging and monitoring.
type Stats struct {
	Total        int
	LocallyKnown int
	CloudKnown   int
	ByClass      map[device.Class]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{ByClass: make(map[device.Class]int)}
	stats.Total = len(r.records)
	for _, rec := range r.records {
		if rec.LocalAddr != "" {
			stats.LocallyKnown++
		}
		if rec.CloudKnown {
			stats.CloudKnown++
		}
		stats.ByClass[rec.Identity.Class]++
	}
	return stats
}
