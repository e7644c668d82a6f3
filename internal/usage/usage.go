// Package usage keeps the advisory daily ledger of upstream recipe API calls.
// The upstream service is the real quota enforcer; the ledger only lets the
// application avoid calls it expects to be refused.
package usage

import (
	"time"
)

// DefaultStorageKey is the key the ledger record is persisted under.
const DefaultStorageKey = "recipegate:api-usage"

// dateLayout formats the calendar day a record belongs to.
const dateLayout = "2006-01-02"

// Status classifies how close today's usage is to the limit.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Record is the persisted state for one calendar day.
type Record struct {
	Date       string         `json:"date"`
	Calls      int            `json:"calls"`
	Errors     int            `json:"errors"`
	CachedHits int            `json:"cachedHits"`
	Endpoints  map[string]int `json:"endpointCounts"`
	LastReset  time.Time      `json:"lastReset"`
}

func (r Record) clone() Record {
	out := r
	out.Endpoints = make(map[string]int, len(r.Endpoints))
	for k, v := range r.Endpoints {
		out.Endpoints[k] = v
	}
	return out
}

// Stats is the derived view returned to callers.
type Stats struct {
	Calls        int            `json:"calls"`
	Remaining    int            `json:"remaining"`
	Limit        int            `json:"limit"`
	UsagePercent float64        `json:"usagePercent"`
	Status       Status         `json:"status"`
	Endpoints    map[string]int `json:"endpoints"`
	Errors       int            `json:"errors"`
	Cached       int            `json:"cached"`
	CanMakeCall  bool           `json:"canMakeCall"`
}

// ResetCountdown is the time left until the next UTC midnight.
type ResetCountdown struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Config holds ledger configuration
type Config struct {
	// DailyLimit is the number of successful calls allowed per day (default: 150)
	DailyLimit int

	// WarningThreshold is the usage fraction at which status becomes warning (default: 0.8)
	WarningThreshold float64

	// CriticalThreshold is the usage fraction at which status becomes critical (default: 0.95)
	CriticalThreshold float64

	// StorageKey is the KV key the record is stored under
	StorageKey string

	// Location decides where the calendar day boundary falls (default: time.Local)
	Location *time.Location

	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		DailyLimit:        150,
		WarningThreshold:  0.8,
		CriticalThreshold: 0.95,
		StorageKey:        DefaultStorageKey,
		Location:          time.Local,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DailyLimit <= 0 {
		c.DailyLimit = def.DailyLimit
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = def.WarningThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = def.CriticalThreshold
	}
	if c.StorageKey == "" {
		c.StorageKey = def.StorageKey
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
