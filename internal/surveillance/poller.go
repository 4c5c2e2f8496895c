package surveillance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/model"
)

// Rate limits between successive provider polls: authenticated OpenSky
// access is allowed to poll more aggressively than anonymous.
const (
	RateLimitAuthenticated = 5 * time.Second
	RateLimitAnonymous     = 10 * time.Second
)

// Snapshot is an immutable point-in-time view of tracked contacts, keyed by
// ICAO24 only (resolved Open Question: callsigns are not unique and churn
// too quickly within a single pass to key on).
type Snapshot struct {
	Contacts  []model.Contact
	byICAO24  map[string]model.Contact
	takenAt   time.Time
}

// ByICAO24 looks up a contact by its transponder address.
func (s *Snapshot) ByICAO24(icao24 string) (model.Contact, bool) {
	c, ok := s.byICAO24[icao24]
	return c, ok
}

// ByCallsign performs a linear scan for a callsign equal to the given one
// after trimming and upper-casing both. Multiple contacts may share a
// callsign; the first match wins.
func (s *Snapshot) ByCallsign(callsign string) (model.Contact, bool) {
	want := strings.ToUpper(strings.TrimSpace(callsign))
	if want == "" {
		return model.Contact{}, false
	}
	for _, c := range s.Contacts {
		if strings.ToUpper(strings.TrimSpace(c.Callsign)) == want {
			return c, true
		}
	}
	return model.Contact{}, false
}

func newSnapshot(contacts []model.Contact) *Snapshot {
	byICAO24 := make(map[string]model.Contact, len(contacts))
	for _, c := range contacts {
		byICAO24[c.ICAO24] = c
	}
	return &Snapshot{Contacts: contacts, byICAO24: byICAO24, takenAt: time.Now()}
}

// Poller periodically queries a Source and publishes a fresh Snapshot,
// replacing the previous one atomically so readers never observe a partial
// update.
type Poller struct {
	source    Source
	lat, lon  float64
	radiusNM  float64
	rateLimit time.Duration
	log       zerolog.Logger

	subsMu sync.Mutex
	subs   []chan *Snapshot

	current atomicSnapshot
}

// atomicSnapshot is a tiny mutex-guarded box; sync/atomic.Value would also
// work but requires consistent concrete types across every Store, which a
// nil initial snapshot violates.
type atomicSnapshot struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func (a *atomicSnapshot) Load() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

func (a *atomicSnapshot) Store(s *Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = s
}

// NewPoller creates a poller. rateLimit should be RateLimitAuthenticated or
// RateLimitAnonymous depending on whether the source has usable credentials.
func NewPoller(source Source, lat, lon, radiusNM float64, rateLimit time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		source:    source,
		lat:       lat,
		lon:       lon,
		radiusNM:  radiusNM,
		rateLimit: rateLimit,
		log:       log.With().Str("component", "surveillance-poller").Logger(),
	}
}

// Snapshot returns the most recently published snapshot, or nil before the
// first successful poll.
func (p *Poller) Snapshot() *Snapshot {
	return p.current.Load()
}

// HasSnapshot reports whether at least one successful poll has completed.
func (p *Poller) HasSnapshot() bool {
	return p.current.Load() != nil
}

// Subscribe registers a channel that receives every successfully published
// snapshot. The channel is buffered size 1 and drops stale values rather than
// blocking the poller.
func (p *Poller) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	p.subsMu.Lock()
	p.subs = append(p.subs, ch)
	p.subsMu.Unlock()
	return ch
}

func (p *Poller) publish(s *Snapshot) {
	p.current.Store(s)
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Run polls the source at the configured rate limit until ctx is canceled.
// A failed poll is logged and the previous snapshot remains in effect —
// surveillance outages degrade the fusion picture, they never abort the run.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.rateLimit)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	contacts, err := p.source.GetAircraftInArea(ctx, p.lat, p.lon, p.radiusNM)
	if err != nil {
		p.log.Warn().Err(err).Msg("surveillance poll failed, keeping previous snapshot")
		return
	}
	p.publish(newSnapshot(contacts))
	p.log.Debug().Int("contacts", len(contacts)).Msg("surveillance snapshot updated")
}
