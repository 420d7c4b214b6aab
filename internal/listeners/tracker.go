// Tracker periodically aggregates a stream's active listeners into
// time-bucketed counts and flushes them to an analytics backend.
//
// Adapted from internal/stream/analytics.go's bucketState/StartAnalytics,
// generalized from per-studio to per-stream and simplified to report only
// currently active listeners per flush (the original end-of-session second
// report was never wired to a reachable call site).
package listeners

import (
	"context"
	"sync"
	"time"

	"github.com/ivugurura/edicast/internal/analytics"
)

type bucketState struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*analytics.ListenerBucket
}

func newBucketState() *bucketState {
	return &bucketState{
		data: map[string]map[time.Time]*analytics.ListenerBucket{
			"MINUTE":   {},
			"FIVE_MIN": {},
			"HOUR":     {},
		},
	}
}

var bucketDurations = map[string]time.Duration{
	"MINUTE":   time.Minute,
	"FIVE_MIN": 5 * time.Minute,
	"HOUR":     time.Hour,
}

func (b *bucketState) addSample(now time.Time, active int, countries map[string]int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, dur := range bucketDurations {
		start := now.Truncate(dur).UTC()
		m := b.data[key]
		bkt, ok := m[start]
		if !ok {
			bkt = &analytics.ListenerBucket{
				Interval:    key,
				BucketStart: start,
				Countries:   map[string]int{},
			}
			m[start] = bkt
		}
		if active > bkt.ActivePeak {
			bkt.ActivePeak = active
		}
		for c, n := range countries {
			bkt.Countries[c] += n
		}
	}
}

func (b *bucketState) accrueListenerMinutes(delta time.Duration, active int) {
	if active <= 0 || delta <= 0 {
		return
	}
	minutes := int(delta.Minutes() + 0.5)
	if minutes <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.data {
		for _, bkt := range m {
			bkt.ListenerMinutes += minutes * active
		}
	}
}

func (b *bucketState) drainReady(cutoff time.Time) []analytics.ListenerBucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []analytics.ListenerBucket
	for key, mm := range b.data {
		dur := bucketDurations[key]
		for start, bkt := range mm {
			if !start.Add(dur).After(cutoff) {
				out = append(out, *bkt)
				delete(mm, start)
			}
		}
	}
	return out
}

// Tracker owns one stream's listener-analytics bucket state and flush loop.
type Tracker struct {
	streamName string
	store      *Store
	client     *analytics.Client
	bk         *bucketState
}

// NewTracker constructs a Tracker for streamName, reading listeners from
// store and flushing via client.
func NewTracker(streamName string, store *Store, client *analytics.Client) *Tracker {
	return &Tracker{streamName: streamName, store: store, client: client, bk: newBucketState()}
}

// Run flushes aggregated listener counts every flushEvery until ctx is
// done. A non-positive flushEvery or a Client with no URL configured is a
// no-op run that still respects ctx.
func (t *Tracker) Run(ctx context.Context, flushEvery time.Duration) {
	if flushEvery <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	last := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now().UTC()
		active, countries, sessions := t.collect()
		t.bk.addSample(now, active, countries)
		t.bk.accrueListenerMinutes(now.Sub(last), active)
		last = now

		batch := analytics.IngestListenerBatch{
			StreamName: t.streamName,
			Sessions:   sessions,
			Buckets:    t.bk.drainReady(now.Add(-time.Second)),
		}
		_ = t.client.SendListenerBatch(ctx, batch)
	}
}

func (t *Tracker) collect() (active int, countries map[string]int, sessions []analytics.ListenerSession) {
	countries = map[string]int{}
	for _, l := range t.store.ActiveByStream(t.streamName) {
		active++
		if l.Country != "" {
			countries[l.Country]++
		}
		sessions = append(sessions, analytics.ListenerSession{
			ID:         l.ID,
			StartedAt:  l.ConnectedAt,
			IPHash:     l.IPHash,
			UserAgent:  l.UserAgent,
			ClientType: l.ClientType,
			Country:    l.Country,
			Region:     l.Region,
			City:       l.City,
			Lat:        l.Lat,
			Lon:        l.Lon,
			TotalBytes: l.ByteSent.Load(),
		})
	}
	return
}

// Snapshot returns a point-in-time summary across every listener in the
// named streams, for the relay's periodic monitor log line (the public
// HTTP surface has no status endpoint; this is logged, not served).
func (s *Store) Snapshot(streamNames []string) analytics.Snapshot {
	snap := analytics.Snapshot{
		GeneratedAt: time.Now().UTC(),
		Streams:     make(map[string]analytics.StreamSnapshot, len(streamNames)),
		ClientTypes: map[string]int{},
	}
	for _, name := range streamNames {
		countries := map[string]int{}
		active := s.ActiveByStream(name)
		for _, l := range active {
			if l.Country != "" {
				countries[l.Country]++
			}
			if l.ClientType != "" {
				snap.ClientTypes[l.ClientType]++
			}
		}
		snap.Streams[name] = analytics.StreamSnapshot{
			StreamName: name,
			Active:     len(active),
			Countries:  countries,
		}
		snap.TotalActive += len(active)
	}
	return snap
}
