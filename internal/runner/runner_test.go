package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/request"
	"github.com/torosent/provbench/internal/runner"
	"github.com/torosent/provbench/internal/stats"
)

type fakeClient struct {
	name       string
	configured bool
	caps       provider.CapabilitySet
	delay      time.Duration
	// failEvery > 0 fails every n-th call with a terminal 404.
	failEvery int32
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32

	mu        sync.Mutex
	addresses map[string]int
}

func (f *fakeClient) seen() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.addresses))
	for k, v := range f.addresses {
		out[k] = v
	}
	return out
}

func (f *fakeClient) Name() string                         { return f.name }
func (f *fakeClient) Configured() bool                     { return f.configured }
func (f *fakeClient) Capabilities() provider.CapabilitySet { return f.caps }

func (f *fakeClient) Run(ctx context.Context, s provider.Scenario, t provider.Target) (provider.Measurement, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	if f.addresses == nil {
		f.addresses = make(map[string]int)
	}
	f.addresses[t.Address]++
	f.mu.Unlock()
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxFlight.Load()
		if cur <= prev || f.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failEvery > 0 && n%f.failEvery == 0 {
		return provider.Measurement{}, &request.RequestError{Status: 404, Message: "HTTP 404: Not Found", Latency: time.Millisecond}
	}
	ttfb := 1.0
	size := int64(128)
	return provider.Measurement{LatencyMs: 2, TTFBMs: &ttfb, PayloadBytes: &size, HTTPStatus: 200}, nil
}

func handle(c *fakeClient) provider.Handle {
	return provider.Handle{ID: c.name, DisplayName: c.name, Client: c}
}

func quickConfig(iterations int) runner.RunConfiguration {
	return runner.RunConfiguration{IterationsPerScenario: iterations, Timeout: time.Second}
}

func drain(h *runner.RunHandle) []runner.Event {
	var events []runner.Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	return events
}

func TestRunProducesSummaryPerPair(t *testing.T) {
	a := &fakeClient{name: "alpha", configured: true, caps: provider.AllCapabilities()}
	b := &fakeClient{name: "beta", configured: true, caps: provider.AllCapabilities()}

	r := runner.New(quickConfig(5))
	h, err := r.Start(context.Background(), []provider.Handle{handle(a), handle(b)})
	require.NoError(t, err)

	events := drain(h)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runner.StateCompleted, h.State())
	assert.False(t, snap.InProgress)
	assert.Equal(t, 40, snap.Completed)
	assert.Equal(t, 40, snap.Total)
	assert.Equal(t, 8, snap.PairsCompleted)

	summaries := snap.Summaries()
	require.Len(t, summaries, 8)
	for _, s := range summaries {
		assert.Equal(t, 5, s.TotalRequests, "%s/%s", s.Provider, s.Scenario)
		assert.Equal(t, 100.0, s.SuccessRatePercent)
		assert.Equal(t, 128.0, s.AvgPayloadBytes)
	}

	var progress, results, finals int
	var last runner.Event
	for _, ev := range events {
		switch e := ev.(type) {
		case runner.ProgressEvent:
			progress++
			assert.LessOrEqual(t, e.PairCompleted, e.PairTotal)
			assert.Equal(t, 40, e.Total)
		case runner.ResultEvent:
			results++
		case runner.SnapshotEvent:
			if !e.Snapshot.InProgress {
				finals++
			}
		}
		last = ev
	}
	assert.Equal(t, 40, progress)
	assert.Equal(t, 8, results)
	assert.Equal(t, 1, finals)
	final, ok := last.(runner.SnapshotEvent)
	require.True(t, ok, "final snapshot is the last event")
	assert.False(t, final.Snapshot.InProgress)
}

func TestRunSkipsUndeclaredScenarios(t *testing.T) {
	c := &fakeClient{name: "mobula", configured: true, caps: provider.Capabilities(provider.BalanceLookup, provider.Transactions, provider.TokenPrices)}

	h, err := runner.New(quickConfig(2), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Summaries(), 3)
	_, ok := snap.Summary("mobula", string(provider.NftMetadata))
	assert.False(t, ok)
	assert.Equal(t, int32(6), c.calls.Load())
}

func TestUnconfiguredProviderIsSkipped(t *testing.T) {
	ok := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.TokenPrices)}
	missing := &fakeClient{name: "ghost", configured: false, caps: provider.AllCapabilities()}

	h, err := runner.New(quickConfig(3), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(ok), handle(missing)})
	require.NoError(t, err)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, snap.Providers, "ghost")
	assert.Equal(t, "not configured", snap.Skipped["ghost"])
	assert.Equal(t, int32(0), missing.calls.Load())
	assert.Len(t, snap.Summaries(), 1)
}

func TestNoConfiguredProvidersFails(t *testing.T) {
	c := &fakeClient{name: "ghost", caps: provider.AllCapabilities()}

	h, err := runner.New(quickConfig(3)).Start(context.Background(), []provider.Handle{handle(c)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, runner.ErrNoConfiguredProviders))
	var cfgErr *runner.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	require.NotNil(t, h)
	assert.Equal(t, runner.StateFailed, h.State())
	select {
	case <-h.Done():
	default:
		t.Fatal("failed run should be done immediately")
	}
	assert.Empty(t, drain(h))

	_, err = runner.New(quickConfig(1)).Start(context.Background(), nil)
	assert.True(t, errors.Is(err, runner.ErrNoConfiguredProviders))
}

func TestConfiguredProviderWithoutScenariosCompletes(t *testing.T) {
	c := &fakeClient{name: "mobula", configured: true}
	sink := &memorySink{}

	h, err := runner.New(quickConfig(3), runner.WithSink(sink)).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)

	events := drain(h)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runner.StateCompleted, h.State())
	assert.Equal(t, runner.StateCompleted, snap.State)
	assert.False(t, snap.InProgress)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.PairsTotal)
	assert.Empty(t, snap.Summaries())
	assert.Equal(t, "no supported scenarios", snap.Skipped["mobula"])
	assert.Equal(t, int32(0), c.calls.Load())

	require.Len(t, events, 1)
	final, ok := events[0].(runner.SnapshotEvent)
	require.True(t, ok)
	assert.False(t, final.Snapshot.InProgress)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, snap.ID, sink.saved[0].ID)
}

func TestFailuresAreContainedPerCall(t *testing.T) {
	flaky := &fakeClient{name: "flaky", configured: true, caps: provider.Capabilities(provider.BalanceLookup), failEvery: 2}
	broken := &fakeClient{name: "broken", configured: true, caps: provider.Capabilities(provider.BalanceLookup), failEvery: 1}

	h, err := runner.New(quickConfig(4), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(flaky), handle(broken)})
	require.NoError(t, err)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StateCompleted, snap.State)

	f, ok := snap.Summary("flaky", "balanceLookup")
	require.True(t, ok)
	assert.Equal(t, 4, f.TotalRequests)
	assert.Equal(t, 50.0, f.SuccessRatePercent)
	assert.Empty(t, f.Error)

	b, ok := snap.Summary("broken", "balanceLookup")
	require.True(t, ok)
	assert.Equal(t, 0.0, b.SuccessRatePercent)
	assert.True(t, b.AllFailed)
	assert.Equal(t, "HTTP 404: Not Found", b.Error)
	assert.Equal(t, "404", b.ErrorCode)
	assert.Equal(t, 4, b.Latency.Count, "failed calls keep their latency")
}

func TestAbortMidRun(t *testing.T) {
	c := &fakeClient{name: "slow", configured: true, caps: provider.AllCapabilities(), delay: 20 * time.Millisecond}
	limit := runner.WithLimiterFactory(func(provider.Handle) *runner.RateLimiter {
		return runner.NewRateLimiter(1, 50*time.Millisecond)
	})

	h, err := runner.New(quickConfig(10), limit).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)

	var final runner.RunSnapshot
	var sawFinal int
	for ev := range h.Events() {
		switch e := ev.(type) {
		case runner.ProgressEvent:
			if e.Completed == 2 {
				h.Abort()
			}
		case runner.SnapshotEvent:
			if !e.Snapshot.InProgress {
				final = e.Snapshot
				sawFinal++
			}
		}
	}

	snap, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sawFinal)
	assert.Equal(t, runner.StateStopped, h.State())
	assert.Equal(t, runner.StateStopped, snap.State)
	assert.False(t, final.InProgress)
	assert.Less(t, snap.Total, 40, "skipped units leave the total")
	assert.Equal(t, snap.Completed, snap.Total)
	for _, s := range snap.Summaries() {
		assert.LessOrEqual(t, s.TotalRequests, 10)
	}
	assert.Equal(t, int(c.calls.Load()), snap.Completed, "every dispatched call is recorded")
}

func TestParentContextCancelStopsRun(t *testing.T) {
	c := &fakeClient{name: "slow", configured: true, caps: provider.Capabilities(provider.TokenPrices), delay: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	limit := runner.WithLimiterFactory(func(provider.Handle) *runner.RateLimiter {
		return runner.NewRateLimiter(1, 100*time.Millisecond)
	})

	h, err := runner.New(quickConfig(20), limit, runner.WithoutEvents()).Start(ctx, []provider.Handle{handle(c)})
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	cancel()

	snap, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StateStopped, snap.State)
	assert.Less(t, snap.Completed, 20)
}

func TestInterRequestDelayStaggersDispatch(t *testing.T) {
	c := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.BalanceLookup)}
	cfg := runner.RunConfiguration{IterationsPerScenario: 4, InterRequestDelay: 30 * time.Millisecond, Timeout: time.Second}

	start := time.Now()
	h, err := runner.New(cfg, runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestUnitsRunConcurrently(t *testing.T) {
	c := &fakeClient{name: "alpha", configured: true, caps: provider.AllCapabilities(), delay: 30 * time.Millisecond}

	start := time.Now()
	h, err := runner.New(quickConfig(5), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	assert.Greater(t, c.maxFlight.Load(), int32(1))
	assert.Less(t, time.Since(start), 20*30*time.Millisecond, "units must not run serially")
}

type memorySink struct {
	mu    sync.Mutex
	saved []runner.RunSnapshot
	err   error
}

func (s *memorySink) Save(_ context.Context, snap runner.RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return s.err
}

func TestSinkReceivesFinalSnapshot(t *testing.T) {
	c := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.TokenPrices)}
	sink := &memorySink{}

	h, err := runner.New(quickConfig(2), runner.WithSink(sink), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	snap, err := h.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.saved, 1)
	assert.Equal(t, snap.ID, sink.saved[0].ID)
	assert.Equal(t, h.ID(), snap.ID)
	assert.False(t, sink.saved[0].InProgress)
}

func TestSinkErrorDoesNotChangeState(t *testing.T) {
	c := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.TokenPrices)}
	sink := &memorySink{err: errors.New("disk full")}

	h, err := runner.New(quickConfig(1), runner.WithSink(sink), runner.WithoutEvents()).Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	snap, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, runner.StateCompleted, snap.State)
}

type countingRecorder struct {
	n atomic.Int32
}

func (r *countingRecorder) RecordOutcome(string, string, stats.CallOutcome) {
	r.n.Add(1)
}

type fixedTargets struct {
	calls atomic.Int32
}

func (f *fixedTargets) Next(context.Context) (provider.Target, error) {
	f.calls.Add(1)
	return provider.Target{Address: "0xabc"}, nil
}

func TestRecorderAndTargets(t *testing.T) {
	c := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.BalanceLookup, provider.Transactions)}
	rec := &countingRecorder{}
	targets := &fixedTargets{}

	h, err := runner.New(quickConfig(3), runner.WithRecorder(rec), runner.WithTargets(targets), runner.WithoutEvents()).
		Start(context.Background(), []provider.Handle{handle(c)})
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(6), rec.n.Load())
	assert.Equal(t, int32(3), targets.calls.Load(), "one target per iteration")
	assert.Equal(t, map[string]int{"0xabc": 6}, c.seen())
}

type rotatingTargets struct {
	mu    sync.Mutex
	addrs []string
	next  int
}

func (r *rotatingTargets) Next(context.Context) (provider.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := r.addrs[r.next%len(r.addrs)]
	r.next++
	return provider.Target{Address: addr}, nil
}

func TestProvidersQueryTheSameTargets(t *testing.T) {
	for trial := 0; trial < 5; trial++ {
		a := &fakeClient{name: "alpha", configured: true, caps: provider.Capabilities(provider.BalanceLookup, provider.TokenPrices)}
		b := &fakeClient{name: "beta", configured: true, caps: provider.Capabilities(provider.BalanceLookup), delay: time.Millisecond}
		targets := &rotatingTargets{addrs: []string{"0xA", "0xB", "0xC"}}

		h, err := runner.New(quickConfig(5), runner.WithTargets(targets), runner.WithoutEvents()).
			Start(context.Background(), []provider.Handle{handle(a), handle(b)})
		require.NoError(t, err)
		_, err = h.Wait(context.Background())
		require.NoError(t, err)

		want := map[string]int{"0xA": 2, "0xB": 2, "0xC": 1}
		assert.Equal(t, want, b.seen())
		assert.Equal(t, map[string]int{"0xA": 4, "0xB": 4, "0xC": 2}, a.seen(), "two scenarios per iteration")
	}
}

func TestStartRunBuildsFreshHandles(t *testing.T) {
	var built atomic.Int32
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(provider.Definition{
		ID: "fake",
		New: func(s provider.Settings) provider.Client {
			built.Add(1)
			return &fakeClient{name: "fake", configured: s.APIKey != "", caps: provider.Capabilities(provider.TokenPrices)}
		},
	}))

	for i := 0; i < 2; i++ {
		h, err := runner.StartRun(context.Background(), quickConfig(1), reg, map[string]provider.Settings{"fake": {APIKey: "k"}}, runner.WithoutEvents())
		require.NoError(t, err)
		snap, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Summaries(), 1)
	}
	assert.Equal(t, int32(2), built.Load())

	_, err := runner.StartRun(context.Background(), quickConfig(1), reg, nil)
	assert.True(t, errors.Is(err, runner.ErrNoConfiguredProviders))
}

func TestStateUnmarshalText(t *testing.T) {
	for _, want := range []runner.State{runner.StateIdle, runner.StateRunning, runner.StateCompleted, runner.StateStopped, runner.StateFailed} {
		text, err := want.MarshalText()
		require.NoError(t, err)
		var got runner.State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, want, got)
	}

	got := runner.StateCompleted
	err := got.UnmarshalText([]byte("exploded"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"exploded"`)
	assert.Equal(t, runner.StateCompleted, got, "unknown text leaves the state untouched")
}
