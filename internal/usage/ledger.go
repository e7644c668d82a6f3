package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"recipegate/internal/storage"
)

// Ledger counts upstream calls for the current day and persists the count
// through a storage.KV. It is safe for concurrent use.
//
// Every access re-reads the stored record, so counts and resets written by
// another process sharing the KV are seen immediately. The record's date is
// compared with today's and a fresh record is started when they differ.
// When the KV read fails the ledger keeps working on its last known copy and
// does not write, so an unreadable store is never overwritten.
type Ledger struct {
	cfg Config
	kv  storage.KV

	mu     sync.Mutex
	record Record
	// degraded is set while the KV cannot be read.
	degraded bool
}

// NewLedger creates a ledger. kv may be nil for a purely in-memory ledger.
func NewLedger(kv storage.KV, cfg Config) *Ledger {
	return &Ledger{
		cfg: cfg.withDefaults(),
		kv:  kv,
	}
}

// Limit returns the configured daily limit.
func (l *Ledger) Limit() int {
	return l.cfg.DailyLimit
}

func (l *Ledger) today() string {
	return l.cfg.Clock().In(l.cfg.Location).Format(dateLayout)
}

func (l *Ledger) freshRecord(date string) Record {
	return Record{
		Date:      date,
		Endpoints: make(map[string]int),
		LastReset: l.cfg.Clock().UTC(),
	}
}

// current refreshes the record from the KV and returns today's record.
// Caller must hold l.mu.
func (l *Ledger) current(ctx context.Context) *Record {
	l.sync(ctx)

	today := l.today()
	if l.record.Date != today {
		if l.record.Date != "" {
			slog.Info("usage ledger rolled over", "previous_date", l.record.Date, "date", today, "previous_calls", l.record.Calls)
		}
		l.record = l.freshRecord(today)
		l.persist(ctx)
	}
	return &l.record
}

// sync replaces the in-memory record with the stored one. On a read error
// the in-memory record is kept and the ledger stops writing until a read
// succeeds again. Caller must hold l.mu.
func (l *Ledger) sync(ctx context.Context) {
	if l.kv == nil {
		return
	}

	data, ok, err := l.kv.Get(ctx, l.cfg.StorageKey)
	if err != nil {
		ledgerReadFailures.Inc()
		if !l.degraded {
			slog.Warn("usage ledger unavailable, using in-memory state", "key", l.cfg.StorageKey, "error", err)
			l.degraded = true
		}
		return
	}
	if l.degraded {
		slog.Info("usage ledger storage recovered", "key", l.cfg.StorageKey)
		l.degraded = false
	}

	if !ok {
		l.record = Record{}
		return
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("usage ledger record is corrupt, starting fresh", "key", l.cfg.StorageKey, "error", err)
		l.record = Record{}
		return
	}
	if rec.Endpoints == nil {
		rec.Endpoints = make(map[string]int)
	}
	l.record = rec
}

// persist writes the whole record. It is a no-op while the stored record is
// unknown. Caller must hold l.mu.
func (l *Ledger) persist(ctx context.Context) {
	if l.kv == nil || l.degraded {
		return
	}
	l.write(ctx)
}

func (l *Ledger) write(ctx context.Context) {
	data, err := json.Marshal(l.record)
	if err != nil {
		slog.Error("failed to encode usage ledger", "error", err)
		return
	}
	if err := l.kv.Set(ctx, l.cfg.StorageKey, data); err != nil {
		ledgerWriteFailures.Inc()
		slog.Warn("failed to persist usage ledger", "key", l.cfg.StorageKey, "error", err)
	}
}

// RecordCall counts an upstream call. A successful call consumes quota and is
// attributed to endpoint; a failed call only increments the error count.
func (l *Ledger) RecordCall(ctx context.Context, endpoint string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.current(ctx)
	if success {
		rec.Calls++
		rec.Endpoints[endpoint]++
		callsTotal.WithLabelValues(endpoint, "success").Inc()
	} else {
		rec.Errors++
		callsTotal.WithLabelValues(endpoint, "error").Inc()
	}
	callsToday.Set(float64(rec.Calls))
	l.persist(ctx)
}

// RecordCacheHit counts a request that was answered without an upstream call.
func (l *Ledger) RecordCacheHit(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.current(ctx)
	rec.CachedHits++
	cacheHitsTotal.Inc()
	l.persist(ctx)
}

// CanMakeCall reports whether today's successful calls are below the limit.
func (l *Ledger) CanMakeCall(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current(ctx).Calls < l.cfg.DailyLimit
}

// Stats returns the derived usage view for today.
func (l *Ledger) Stats(ctx context.Context) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.current(ctx).clone()
	limit := l.cfg.DailyLimit
	ratio := float64(rec.Calls) / float64(limit)

	return Stats{
		Calls:        rec.Calls,
		Remaining:    max(0, limit-rec.Calls),
		Limit:        limit,
		UsagePercent: math.Round(ratio*1000) / 10,
		Status:       l.status(ratio),
		Endpoints:    rec.Endpoints,
		Errors:       rec.Errors,
		Cached:       rec.CachedHits,
		CanMakeCall:  rec.Calls < limit,
	}
}

func (l *Ledger) status(ratio float64) Status {
	switch {
	case ratio >= l.cfg.CriticalThreshold:
		return StatusCritical
	case ratio >= l.cfg.WarningThreshold:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// Snapshot returns a copy of today's raw record.
func (l *Ledger) Snapshot(ctx context.Context) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current(ctx).clone()
}

// Reset discards today's counts.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.record = l.freshRecord(l.today())
	callsToday.Set(0)
	if l.kv != nil {
		l.write(ctx)
	}
	slog.Info("usage ledger reset", "date", l.record.Date)
}

// TimeUntilReset returns the time left until the next UTC midnight.
// It is informational; rollover itself follows the ledger's date string.
func (l *Ledger) TimeUntilReset() ResetCountdown {
	now := l.cfg.Clock().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	left := midnight.Sub(now)

	return ResetCountdown{
		Hours:   int(left / time.Hour),
		Minutes: int((left % time.Hour) / time.Minute),
	}
}
