package resource

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// ----- fake fetcher -----

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	// gate, when non-nil, blocks every fetch until it is closed or ctx ends.
	gate chan struct{}
	// fail returns the error for the n-th (1-based) call of a key, or nil.
	fail func(d Descriptor, n int) error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, d Descriptor) (*Page, error) {
	f.mu.Lock()
	f.calls[d.Key()]++
	n := f.calls[d.Key()]
	gate := f.gate
	fail := f.fail
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(d, n); err != nil {
			return nil, err
		}
	}
	item, _ := json.Marshal(map[string]any{"call": n, "type": d.ResourceType()})
	return &Page{Items: []json.RawMessage{item}, Total: 1, Page: d.Page(), PageSize: d.PageSize()}, nil
}

func (f *fakeFetcher) count(d Descriptor) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[d.Key()]
}

func testOpts() Options {
	return Options{FetchTimeout: time.Second, RetryDelay: time.Millisecond}
}

func articles(page int) Descriptor {
	return MustDescriptor("articles", map[string]any{"keyword": "go"}, page, 10)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ----- tests -----

func TestQuery_ConcurrentIdenticalDescriptors_FetchOnce(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewStore(f, testOpts())
	d := articles(1)

	var wg sync.WaitGroup
	snaps := make([]Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Equal descriptor built independently.
			snaps[i] = s.Query(context.Background(), articles(1))
		}(i)
	}
	wg.Wait()

	for _, sn := range snaps {
		assert.Equal(t, StatusPending, sn.Status)
		assert.True(t, sn.Fetching)
	}
	assert.Equal(t, 1, s.Len())

	close(f.gate)
	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
	assert.Equal(t, 1, f.count(d))
}

func TestQuery_FreshIsServedWithoutFetch(t *testing.T) {
	f := newFakeFetcher()
	s := NewStore(f, testOpts())
	d := articles(1)

	first, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	require.Equal(t, StatusFresh, first.Status)
	require.NotNil(t, first.Data)

	again := s.Query(context.Background(), d)
	assert.Equal(t, StatusFresh, again.Status)
	assert.False(t, again.Fetching)
	assert.Same(t, first.Data, again.Data)
	assert.Equal(t, 1, f.count(d))
}

func TestInvalidate_OnlyMatchingResourceType(t *testing.T) {
	f := newFakeFetcher()
	s := NewStore(f, testOpts())
	ctx := waitCtx(t)

	a1, a2 := articles(1), articles(2)
	cats := MustDescriptor("categories", nil, 1, 100)
	for _, d := range []Descriptor{a1, a2, cats} {
		_, err := s.Wait(ctx, d)
		require.NoError(t, err)
	}

	n := s.Invalidate("articles")
	assert.Equal(t, 2, n)

	for _, d := range []Descriptor{a1, a2} {
		sn, ok := s.Peek(d)
		require.True(t, ok)
		assert.Equal(t, StatusStale, sn.Status, d.Key())
		assert.NotNil(t, sn.Data, "stale entries keep their data")
	}
	sn, _ := s.Peek(cats)
	assert.Equal(t, StatusFresh, sn.Status)
	assert.Equal(t, 0, s.Invalidate("unknown"))
}

func TestQuery_StaleWhileRevalidate(t *testing.T) {
	f := newFakeFetcher()
	s := NewStore(f, testOpts())
	d := articles(1)

	first, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	s.Invalidate("articles")

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()

	stale := s.Query(context.Background(), d)
	assert.Equal(t, StatusStale, stale.Status)
	assert.True(t, stale.Fetching)
	assert.Same(t, first.Data, stale.Data, "old data is served immediately")

	// A second read while refetching shares the same fetch.
	_ = s.Query(context.Background(), d)

	close(f.gate)
	fresh, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, fresh.Status)
	assert.Equal(t, 2, f.count(d))

	items, err := DecodeItems[map[string]any](fresh.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 2, items[0]["call"])
}

func TestInvalidate_DuringFlight_SettlesStale(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewStore(f, testOpts())
	d := articles(1)

	sn := s.Query(context.Background(), d)
	require.Equal(t, StatusPending, sn.Status)

	s.Invalidate("articles")
	sn, _ = s.Peek(d)
	assert.Equal(t, StatusPending, sn.Status, "in-flight entries stay pending")

	done := make(chan Snapshot, 4)
	unsub := s.Subscribe(context.Background(), d, func(sn Snapshot) { done <- sn })
	defer unsub()

	f.mu.Lock()
	close(f.gate)
	f.gate = nil
	f.mu.Unlock()

	select {
	case got := <-done:
		assert.Equal(t, StatusStale, got.Status)
		assert.NotNil(t, got.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("no settle notification")
	}

	// Wait refetches until the entry is fresh.
	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
	assert.Equal(t, 2, f.count(d))
}

func TestFetch_TimeoutErrorsThenRefetches(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{}) // never released: every fetch times out
	opts := testOpts()
	opts.FetchTimeout = 20 * time.Millisecond
	s := NewStore(f, opts)
	d := articles(1)

	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, got.Status)
	require.NotNil(t, got.Err)
	assert.Equal(t, apierr.KindTimeout, got.Err.Kind)

	s.timeout = time.Second
	next := s.Query(context.Background(), d)
	assert.Equal(t, StatusPending, next.Status, "errored entries are not cache hits")
	assert.True(t, next.Fetching)
	assert.Nil(t, next.Err)

	close(f.gate)
	got, err = s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
	assert.Equal(t, 2, f.count(d))
}

func TestFetch_RetriesRetryableFailuresOnce(t *testing.T) {
	f := newFakeFetcher()
	f.fail = func(_ Descriptor, n int) error {
		if n == 1 {
			return errors.New("connection reset")
		}
		return nil
	}
	opts := testOpts()
	opts.Retry = 1
	s := NewStore(f, opts)
	d := articles(1)

	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
	assert.Equal(t, 2, f.count(d))
}

func TestFetch_GivesUpAfterRetryBudget(t *testing.T) {
	f := newFakeFetcher()
	f.fail = func(Descriptor, int) error { return apierr.Server("get", 502, "bad gateway") }
	opts := testOpts()
	opts.Retry = 1
	s := NewStore(f, opts)
	d := articles(1)

	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, got.Status)
	assert.Equal(t, apierr.KindServer, got.Err.Kind)
	assert.Equal(t, 502, got.Err.StatusCode)
	assert.Equal(t, "bad gateway", got.Err.Message)
	assert.Equal(t, 2, f.count(d))
}

func TestFetch_ClientErrorsAreNotRetried(t *testing.T) {
	f := newFakeFetcher()
	f.fail = func(Descriptor, int) error { return apierr.Server("get", 404, "not found") }
	opts := testOpts()
	opts.Retry = 3
	s := NewStore(f, opts)
	d := articles(1)

	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusErrored, got.Status)
	assert.Equal(t, 1, f.count(d))
}

func TestFetch_FetcherPanicSettlesErrored(t *testing.T) {
	f := newFakeFetcher()
	f.fail = func(_ Descriptor, n int) error {
		if n == 1 {
			panic("index out of range")
		}
		return nil
	}
	opts := testOpts()
	opts.Retry = 3
	s := NewStore(f, opts)
	d := articles(1)

	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, got.Status)
	assert.Equal(t, apierr.KindTransport, got.Err.Kind)
	assert.ErrorIs(t, got.Err, errFetcherPanic)
	assert.Equal(t, 1, f.count(d), "a panicking fetch is not retried")

	// The entry recovers on the next read.
	got, err = s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
}

func TestErrored_RefetchKeepsPreviousData(t *testing.T) {
	f := newFakeFetcher()
	var failing atomic.Bool
	f.fail = func(Descriptor, int) error {
		if failing.Load() {
			return apierr.Server("get", 500, "boom")
		}
		return nil
	}
	s := NewStore(f, testOpts())
	d := articles(1)
	ctx := waitCtx(t)

	ok1, err := s.Wait(ctx, d)
	require.NoError(t, err)

	failing.Store(true)
	s.Invalidate("articles")
	bad, err := s.Wait(ctx, d)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, bad.Status)
	assert.Same(t, ok1.Data, bad.Data)

	failing.Store(false)
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
	pending := s.Query(context.Background(), d)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Same(t, ok1.Data, pending.Data)
	close(f.gate)
}

func TestSubscribe_NotifiesAndUnsubscribeIsIdempotent(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewStore(f, testOpts())
	d := articles(1)

	got := make(chan Snapshot, 8)
	unsub := s.Subscribe(context.Background(), d, func(sn Snapshot) { got <- sn })

	sn, ok := s.Peek(d)
	require.True(t, ok)
	assert.Equal(t, 1, sn.Subscribers)
	assert.Equal(t, StatusPending, sn.Status)

	close(f.gate)
	select {
	case first := <-got:
		assert.Equal(t, StatusFresh, first.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("expected fresh notification")
	}

	s.Invalidate("articles")
	select {
	case second := <-got:
		assert.Equal(t, StatusStale, second.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("expected stale notification")
	}

	assert.NotPanics(t, func() {
		unsub()
		unsub()
	})
	sn, _ = s.Peek(d)
	assert.Equal(t, 0, sn.Subscribers)
}

func TestNotify_DropsSnapshotsOlderThanDelivered(t *testing.T) {
	e := &entry{desc: articles(1), status: StatusPending}
	pending := e.snapshot()
	e.status = StatusFresh
	fresh := e.snapshot()

	var got []Status
	sub := &subscription{fn: func(sn Snapshot) { got = append(got, sn.Status) }}
	sub.active.Store(true)
	subs := []*subscription{sub}

	// The settle notification overtakes the earlier Pending one.
	notify(subs, fresh)
	notify(subs, pending)
	notify(subs, fresh)

	assert.Equal(t, []Status{StatusFresh}, got)
}

func TestSubscribe_ImmediateDoubleUnsubscribe(t *testing.T) {
	s := NewStore(newFakeFetcher(), testOpts())
	d := articles(1)

	other := s.Subscribe(context.Background(), d, func(Snapshot) {})
	defer other()

	unsub := s.Subscribe(context.Background(), d, func(Snapshot) {})
	unsub()
	unsub()

	sn, ok := s.Peek(d)
	require.True(t, ok)
	assert.Equal(t, 1, sn.Subscribers, "second call must not decrement again")
}

func TestUnsubscribeDuringFlight_CachePopulatedWithoutCallback(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewStore(f, testOpts())
	d := articles(1)

	var called atomic.Int32
	unsub := s.Subscribe(context.Background(), d, func(Snapshot) { called.Add(1) })
	unsub()

	close(f.gate)
	got, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, got.Status)
	assert.NotNil(t, got.Data)
	assert.Equal(t, int32(0), called.Load())
}

func TestWait_ContextCancelledReturnsPendingSnapshot(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	defer close(f.gate)
	s := NewStore(f, testOpts())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	sn, err := s.Wait(ctx, articles(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusPending, sn.Status)
}

func TestSweep_EvictsIdleUnreferencedEntries(t *testing.T) {
	var clock atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Store(base.UnixNano())
	now := func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	opts := testOpts()
	opts.GCTTL = time.Minute
	opts.Now = now
	s := NewStore(newFakeFetcher(), opts)
	ctx := waitCtx(t)

	idle, watched := articles(1), articles(2)
	_, err := s.Wait(ctx, idle)
	require.NoError(t, err)
	_, err = s.Wait(ctx, watched)
	require.NoError(t, err)
	unsub := s.Subscribe(ctx, watched, func(Snapshot) {})
	defer unsub()

	assert.Equal(t, 0, s.Sweep(base.Add(30*time.Second)), "younger than TTL")
	assert.Equal(t, 1, s.Sweep(base.Add(2*time.Minute)))

	_, ok := s.Peek(idle)
	assert.False(t, ok)
	_, ok = s.Peek(watched)
	assert.True(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	opts := testOpts()
	opts.GCInterval = time.Millisecond
	s := NewStore(newFakeFetcher(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMetrics_QueryOutcomesAndFetches(t *testing.T) {
	const rt = "metrics_sample"
	d := MustDescriptor(rt, nil, 1, 1)
	s := NewStore(newFakeFetcher(), testOpts())

	baseMiss := testutil.ToFloat64(queries.WithLabelValues(rt, "miss"))
	baseHit := testutil.ToFloat64(queries.WithLabelValues(rt, "hit"))
	baseOK := testutil.ToFloat64(fetches.WithLabelValues(rt, "ok"))
	baseInv := testutil.ToFloat64(invalidations.WithLabelValues(rt))

	_, err := s.Wait(waitCtx(t), d)
	require.NoError(t, err)
	s.Query(context.Background(), d)
	s.Invalidate(rt)

	assert.Equal(t, baseMiss+1, testutil.ToFloat64(queries.WithLabelValues(rt, "miss")))
	assert.Equal(t, baseHit+1, testutil.ToFloat64(queries.WithLabelValues(rt, "hit")))
	assert.Equal(t, baseOK+1, testutil.ToFloat64(fetches.WithLabelValues(rt, "ok")))
	assert.Equal(t, baseInv+1, testutil.ToFloat64(invalidations.WithLabelValues(rt)))
}

func TestEntries_SortedByKey(t *testing.T) {
	s := NewStore(newFakeFetcher(), testOpts())
	ctx := waitCtx(t)

	_, err := s.Wait(ctx, articles(2))
	require.NoError(t, err)
	_, err = s.Wait(ctx, articles(1))
	require.NoError(t, err)
	_, err = s.Wait(ctx, MustDescriptor("categories", nil, 1, 10))
	require.NoError(t, err)

	got := s.Entries()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Key, got[i].Key)
	}
	for _, snap := range got {
		assert.Equal(t, StatusFresh, snap.Status)
	}
}
