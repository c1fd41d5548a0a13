package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// Fetcher loads one page for a descriptor from the remote API.
//
// Implementations must honor ctx: the store applies the per-fetch timeout
// through it. Errors should be *apierr.Error values; anything else is
// classified as a transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) (*Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, d Descriptor) (*Page, error)

// Fetch calls f(ctx, d).
func (f FetcherFunc) Fetch(ctx context.Context, d Descriptor) (*Page, error) { return f(ctx, d) }

// Options configures a Store. Zero values select the defaults noted per field.
type Options struct {
	// FetchTimeout bounds a whole fetch including retries (default 10s).
	FetchTimeout time.Duration
	// Retry is the number of additional attempts after a retryable failure.
	// Negative disables retries; zero means zero retries.
	Retry int
	// RetryDelay is the pause before the first retry, doubled per attempt (default 1s).
	RetryDelay time.Duration
	// GCTTL is how long an unreferenced entry survives a sweep (default 5m).
	GCTTL time.Duration
	// GCInterval is the sweep period used by Run (default 1m).
	GCInterval time.Duration
	// Logger receives cache diagnostics (default: the global zerolog logger).
	Logger *zerolog.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// subscription is one registered callback.
type subscription struct {
	fn     func(Snapshot)
	active atomic.Bool
	// last is the seq of the newest snapshot delivered to fn.
	last atomic.Uint64
}

// advance claims delivery of a snapshot with sequence seq. It fails when a
// newer snapshot has already been delivered.
func (sub *subscription) advance(seq uint64) bool {
	for {
		last := sub.last.Load()
		if seq <= last {
			return false
		}
		if sub.last.CompareAndSwap(last, seq) {
			return true
		}
	}
}

// Store is the read-through cache for paginated resource queries.
//
// One Store is created at process start and shared by every consumer. All
// entry state lives behind mu; the lock is never held across a fetch or a
// subscriber callback. Store is safe for concurrent use.
type Store struct {
	fetcher Fetcher

	timeout    time.Duration
	retry      int
	retryDelay time.Duration
	gcTTL      time.Duration
	gcInterval time.Duration
	now        func() time.Time
	log        zerolog.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64
}

// NewStore constructs a Store that loads pages through f.
func NewStore(f Fetcher, opts Options) *Store {
	s := &Store{
		fetcher:    f,
		timeout:    opts.FetchTimeout,
		retry:      opts.Retry,
		retryDelay: opts.RetryDelay,
		gcTTL:      opts.GCTTL,
		gcInterval: opts.GCInterval,
		now:        opts.Now,
		tracer:     otel.Tracer("resource/Store"),
		entries:    make(map[string]*entry),
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.retry < 0 {
		s.retry = 0
	}
	if s.retryDelay <= 0 {
		s.retryDelay = time.Second
	}
	if s.gcTTL <= 0 {
		s.gcTTL = 5 * time.Minute
	}
	if s.gcInterval <= 0 {
		s.gcInterval = time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "resource_store").Logger()
	} else {
		s.log = log.With().Str("component", "resource_store").Logger()
	}
	return s
}

// Query returns the entry for d without blocking on the network.
//
//   - Fresh: returned as is, no fetch.
//   - Stale: returned as is and a background refetch starts (one at a time).
//   - Pending: the in-flight fetch is shared, nothing new starts.
//   - Errored or missing: a fetch starts and the entry reports Pending.
//
// Query never returns fetch failures; they surface as StatusErrored.
func (s *Store) Query(ctx context.Context, d Descriptor) Snapshot {
	snap, _ := s.acquire(ctx, d, nil)
	return snap
}

// Wait is Query followed by blocking until the entry's fetch settles. A Fresh
// entry returns immediately; a Stale one is refetched before returning. The
// only error returned is ctx's.
func (s *Store) Wait(ctx context.Context, d Descriptor) (Snapshot, error) {
	for {
		snap, done := s.acquire(ctx, d, nil)
		if done == nil {
			return snap, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
		settled, ok := s.Peek(d)
		if ok && settled.Status != StatusStale && !settled.Fetching {
			return settled, nil
		}
		// Invalidated while in flight or already collected: go around again.
	}
}

// Peek returns the current entry for d without creating it or fetching.
func (s *Store) Peek(d Descriptor) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[d.Key()]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a snapshot of every cached entry ordered by key.
func (s *Store) Entries() []Snapshot {
	s.mu.Lock()
	out := make([]Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snapshot())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe registers fn for every status transition and settled fetch of
// d's entry, creating (and fetching) the entry as Query would. The returned
// function unregisters fn; calling it more than once has no further effect.
// fn runs on the goroutine that caused the transition and must not block.
func (s *Store) Subscribe(ctx context.Context, d Descriptor, fn func(Snapshot)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	var id uint64
	s.acquire(ctx, d, func(e *entry) {
		s.nextSub++
		id = s.nextSub
		if e.subs == nil {
			e.subs = make(map[uint64]*subscription)
		}
		e.subs[id] = sub
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			defer s.mu.Unlock()
			if e, ok := s.entries[d.Key()]; ok {
				delete(e.subs, id)
				e.lastUsed = s.now()
			}
		})
	}
}

// Invalidate marks every entry of resourceType Stale, regardless of filters
// or page. Entries with a fetch in flight settle as Stale when it completes.
// It returns the number of entries affected.
func (s *Store) Invalidate(resourceType string) int {
	type note struct {
		snap Snapshot
		subs []*subscription
	}
	var notes []note

	s.mu.Lock()
	n := 0
	for _, e := range s.entries {
		if e.desc.ResourceType() != resourceType {
			continue
		}
		n++
		if e.flight != nil {
			e.flight.invalidated = true
		}
		if e.status == StatusFresh || e.status == StatusErrored {
			e.status = StatusStale
			e.err = nil
			notes = append(notes, note{snap: e.snapshot(), subs: e.subscribers()})
		}
	}
	s.mu.Unlock()

	invalidations.WithLabelValues(resourceType).Inc()
	s.log.Debug().Str("resource", resourceType).Int("entries", n).Msg("invalidate")

	for _, nt := range notes {
		notify(nt.subs, nt.snap)
	}
	return n
}

// acquire performs the lookup-or-create step under the lock, starts a fetch
// when the entry's state calls for one, and optionally lets the caller mutate
// the entry (Subscribe) inside the same critical section. It returns the
// snapshot and the done channel of the fetch the caller may wait on.
func (s *Store) acquire(ctx context.Context, d Descriptor, with func(*entry)) (Snapshot, <-chan struct{}) {
	rt := d.ResourceType()
	now := s.now()

	s.mu.Lock()
	e, ok := s.entries[d.Key()]
	if !ok {
		e = &entry{desc: d}
		s.entries[d.Key()] = e
		cacheEntries.Set(float64(len(s.entries)))
	}
	e.lastUsed = now

	var (
		start      *flight
		transition bool
		result     string
	)
	switch {
	case !ok:
		e.status = StatusPending
		start = s.beginLocked(e)
		result = "miss"
	case e.flight != nil:
		result = "dedup"
	case e.status == StatusFresh:
		result = "hit"
	case e.status == StatusStale:
		start = s.beginLocked(e)
		result = "stale"
	default: // StatusErrored (Pending always has a flight)
		e.status = StatusPending
		e.err = nil
		start = s.beginLocked(e)
		transition = true
		result = "retry"
	}
	if with != nil {
		with(e)
	}
	snap := e.snapshot()
	var done <-chan struct{}
	if e.flight != nil {
		done = e.flight.done
	}
	subs := e.subscribers()
	s.mu.Unlock()

	queries.WithLabelValues(rt, result).Inc()

	if transition {
		notify(subs, snap)
	}
	if start != nil {
		go s.run(ctx, d, start)
	}
	return snap, done
}

// beginLocked installs a new flight on e. Caller holds s.mu.
func (s *Store) beginLocked(e *entry) *flight {
	fl := &flight{done: make(chan struct{})}
	e.flight = fl
	return fl
}

// run executes one fetch detached from the requester's cancellation and
// settles the entry it belongs to.
func (s *Store) run(parent context.Context, d Descriptor, fl *flight) {
	rt := d.ResourceType()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "fetch",
		trace.WithAttributes(
			attribute.String("resource.type", rt),
			attribute.String("cache.key", d.Key()),
		),
	)
	defer span.End()

	start := time.Now()
	page, err := s.fetchWithRetry(ctx, d)
	fetchLatency.WithLabelValues(rt).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fetches.WithLabelValues(rt, err.Kind.String()).Inc()
		s.log.Warn().
			Str("resource", rt).
			Str("key", d.Key()).
			Str("kind", err.Kind.String()).
			Err(err).
			Msg("fetch failed")
	} else {
		fetches.WithLabelValues(rt, "ok").Inc()
	}

	s.mu.Lock()
	e, ok := s.entries[d.Key()]
	if !ok || e.flight != fl {
		// The entry is gone (never happens while a flight is attached, since
		// Sweep skips in-flight entries) or owned by a newer fetch.
		s.mu.Unlock()
		close(fl.done)
		return
	}
	now := s.now()
	e.flight = nil
	e.lastUsed = now
	if err != nil {
		e.status = StatusErrored
		e.err = err
	} else {
		e.data = page
		e.err = nil
		e.fetchedAt = now
		e.status = StatusFresh
		if fl.invalidated {
			e.status = StatusStale
		}
	}
	snap := e.snapshot()
	subs := e.subscribers()
	s.mu.Unlock()

	close(fl.done)
	notify(subs, snap)
}

// fetchWithRetry calls the fetcher, retrying retryable failures up to
// s.retry times with doubling delays, all within ctx's deadline.
func (s *Store) fetchWithRetry(ctx context.Context, d Descriptor) (*Page, *apierr.Error) {
	const op = "resource.fetch"
	delay := s.retryDelay

	for attempt := 0; ; attempt++ {
		page, err := s.safeFetch(ctx, d)
		if err == nil {
			if page == nil {
				page = &Page{Items: nil, Page: d.Page(), PageSize: d.PageSize()}
			}
			return page, nil
		}

		if errors.Is(err, errFetcherPanic) {
			return nil, apierr.Transport(op, err)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apierr.Timeout(op, ctx.Err())
		}
		aerr := apierr.Classify(op, err)
		if attempt >= s.retry || !apierr.Retryable(aerr) {
			return nil, aerr
		}

		s.log.Debug().
			Str("resource", d.ResourceType()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying fetch")

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, apierr.Timeout(op, ctx.Err())
		}
		delay *= 2
	}
}

var errFetcherPanic = errors.New("fetcher panic")

// safeFetch calls the fetcher and turns a panic into a transport error so a
// faulty fetcher settles the entry instead of crashing the process.
func (s *Store) safeFetch(ctx context.Context, d Descriptor) (page *Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("resource", d.ResourceType()).
				Str("key", d.Key()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("fetcher panicked")
			page, err = nil, fmt.Errorf("%w: %v", errFetcherPanic, r)
		}
	}()
	return s.fetcher.Fetch(ctx, d)
}

// notify invokes every still-active subscription with snap. Notifications
// run outside the lock, so two of them can race; a subscription that has
// already seen a newer snapshot skips the older one.
func notify(subs []*subscription, snap Snapshot) {
	for _, sub := range subs {
		if sub.active.Load() && sub.advance(snap.seq) {
			sub.fn(snap)
		}
	}
}
