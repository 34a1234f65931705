package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/request"
	"github.com/torosent/provbench/internal/stats"
	"github.com/torosent/provbench/internal/tracing"
)

const defaultEventBuffer = 256

// Runner executes the provider × scenario × iteration matrix.
type Runner struct {
	cfg         RunConfiguration
	limiters    LimiterFactory
	sink        Sink
	recorder    Recorder
	tracer      trace.Tracer
	targets     TargetSource
	eventBuffer int
	noEvents    bool
}

func New(cfg RunConfiguration, opts ...Option) *Runner {
	r := &Runner{
		cfg:         cfg.Normalize(),
		limiters:    defaultLimiterFactory,
		eventBuffer: defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the normalized configuration.
func (r *Runner) Config() RunConfiguration {
	return r.cfg
}

// unit is one (provider, scenario, iteration) triple.
type unit struct {
	provider  string
	scenario  provider.Scenario
	iteration int
}

// landing is what a unit reports back to the aggregator: an outcome, or a
// skip when abort won the race against dispatch.
type landing struct {
	unit
	skipped bool
	outcome stats.CallOutcome
	at      time.Time
}

type pair struct {
	provider  string
	scenario  string
	expected  int
	outcomes  []stats.CallOutcome
	skipped   int
	last      time.Time
	finalized bool
	summary   stats.ScenarioSummary
}

func (p *pair) settled() bool {
	return len(p.outcomes)+p.skipped >= p.expected
}

// Start schedules every unit and returns immediately. Handles that are not
// configured, or that declare no scenario, are reported as skipped. With no
// configured handle at all the run fails with a *ConfigurationError and
// nothing is scheduled. Configured handles with nothing to run complete at
// once with an empty final snapshot.
func (r *Runner) Start(ctx context.Context, handles []provider.Handle) (*RunHandle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dispatchCtx, cancel := context.WithCancel(ctx)
	h := &RunHandle{
		id:     ulid.Make().String(),
		cancel: cancel,
		events: newEventQueue(r.eventBuffer, r.noEvents),
		done:   make(chan struct{}),
	}

	skipped := make(map[string]string)
	var active []provider.Handle
	configured := 0
	for _, handle := range handles {
		if handle.Client == nil || !handle.Client.Configured() {
			skipped[handle.ID] = "not configured"
			continue
		}
		configured++
		if handle.Client.Capabilities().Len() == 0 {
			skipped[handle.ID] = "no supported scenarios"
			continue
		}
		active = append(active, handle)
	}

	if configured == 0 {
		cancel()
		h.setState(StateFailed)
		h.publish(RunSnapshot{
			ID:                    h.id,
			State:                 StateFailed,
			Providers:             map[string]map[string]stats.ScenarioSummary{},
			Skipped:               skipped,
			Timestamp:             time.Now(),
			IterationsPerScenario: r.cfg.IterationsPerScenario,
		})
		h.events.close()
		close(h.done)
		return h, &ConfigurationError{Reason: describeSkipped(handles, skipped), Err: ErrNoConfiguredProviders}
	}

	iterations := r.cfg.IterationsPerScenario
	pairs := make(map[string]*pair)
	var units []unit
	for _, handle := range active {
		for _, sc := range handle.Client.Capabilities().List() {
			pairs[pairKey(handle.ID, string(sc))] = &pair{provider: handle.ID, scenario: string(sc), expected: iterations}
			for i := 0; i < iterations; i++ {
				units = append(units, unit{provider: handle.ID, scenario: sc, iteration: i})
			}
		}
	}

	h.setState(StateRunning)
	start := time.Now()
	h.publish(RunSnapshot{
		ID:                    h.id,
		State:                 StateRunning,
		Providers:             map[string]map[string]stats.ScenarioSummary{},
		Skipped:               skipped,
		Timestamp:             start,
		StartedAt:             start,
		IterationsPerScenario: iterations,
		InProgress:            true,
		Total:                 len(units),
		PairsTotal:            len(pairs),
	})

	var targets []provider.Target
	if len(units) > 0 {
		targets = r.resolveTargets(ctx, iterations)
	}

	landings := make(chan landing, len(units))
	clients := make(map[string]provider.Client, len(active))
	limiters := make(map[string]*RateLimiter, len(active))
	for _, handle := range active {
		clients[handle.ID] = handle.Client
		limiters[handle.ID] = r.limiters(handle)
	}

	go func() {
		select {
		case <-ctx.Done():
			h.Abort()
		case <-h.done:
		}
	}()

	callCtx := context.WithoutCancel(ctx)
	for _, u := range units {
		go r.runUnit(dispatchCtx, callCtx, h, u, targets[u.iteration], clients[u.provider], limiters[u.provider], landings)
	}

	agg := &aggregator{
		runner:   r,
		handle:   h,
		pairs:    pairs,
		skipped:  skipped,
		start:    start,
		total:    len(units),
		units:    len(units),
		landings: landings,
		sinkCtx:  callCtx,
	}
	go agg.run()

	return h, nil
}

// StartRun builds fresh handles from registry and starts a run. Settings
// without an explicit policy inherit the run configuration's policy.
func StartRun(ctx context.Context, cfg RunConfiguration, registry *provider.Registry, settings map[string]provider.Settings, opts ...Option) (*RunHandle, error) {
	r := New(cfg, opts...)
	policy := r.cfg.Policy()
	merged := make(map[string]provider.Settings, len(settings))
	for _, id := range registry.IDs() {
		s := settings[id]
		if s.Policy == (request.Policy{}) {
			s.Policy = policy
		}
		merged[id] = s
	}
	return r.Start(ctx, registry.Build(merged))
}

// resolveTargets draws one target per iteration so every provider and
// scenario at iteration i queries the same wallet.
func (r *Runner) resolveTargets(ctx context.Context, iterations int) []provider.Target {
	targets := make([]provider.Target, iterations)
	for i := range targets {
		targets[i] = provider.DefaultTarget()
		if r.targets == nil {
			continue
		}
		if next, err := r.targets.Next(ctx); err == nil {
			targets[i] = next.WithDefaults()
		}
	}
	return targets
}

func (r *Runner) runUnit(dispatchCtx, callCtx context.Context, h *RunHandle, u unit, target provider.Target, client provider.Client, limiter *RateLimiter, out chan<- landing) {
	skip := func() {
		out <- landing{unit: u, skipped: true, at: time.Now()}
	}

	if delay := r.cfg.InterRequestDelay * time.Duration(u.iteration); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-dispatchCtx.Done():
			timer.Stop()
			skip()
			return
		case <-timer.C:
		}
	}
	if h.Aborted() {
		skip()
		return
	}
	if err := limiter.Acquire(dispatchCtx); err != nil {
		skip()
		return
	}
	if h.Aborted() {
		skip()
		return
	}

	spanCtx := callCtx
	var span trace.Span
	if r.tracer != nil {
		spanCtx, span = tracing.StartUnitSpan(callCtx, r.tracer, u.provider, string(u.scenario), u.iteration)
	}
	m, err := client.Run(spanCtx, u.scenario, target)
	if span != nil {
		tracing.EndSpan(span, err, tracing.OutcomeAttributes(m.HTTPStatus, m.LatencyMs)...)
	}

	out <- landing{unit: u, outcome: outcomeFrom(u.iteration, m, err), at: time.Now()}
}

func outcomeFrom(iteration int, m provider.Measurement, err error) stats.CallOutcome {
	o := stats.CallOutcome{Iteration: iteration}
	if err == nil {
		latency := m.LatencyMs
		o.Success = true
		o.LatencyMs = &latency
		o.TTFBMs = m.TTFBMs
		o.PayloadBytes = m.PayloadBytes
		if m.HTTPStatus != 0 {
			status := m.HTTPStatus
			o.HTTPStatus = &status
		}
		return o
	}

	o.ErrorMessage = err.Error()
	var reqErr *request.RequestError
	if errors.As(err, &reqErr) {
		o.ErrorCode = reqErr.CodeOrStatus()
		if reqErr.Latency > 0 {
			latency := reqErr.LatencyMs()
			o.LatencyMs = &latency
		}
		if reqErr.Status != 0 {
			status := reqErr.Status
			o.HTTPStatus = &status
		}
	}
	if o.ErrorCode == "" {
		o.ErrorCode = "ERROR"
	}
	return o
}

// aggregator is the only goroutine that touches pair accumulators.
type aggregator struct {
	runner    *Runner
	handle    *RunHandle
	pairs     map[string]*pair
	skipped   map[string]string
	start     time.Time
	total     int
	completed int
	finalized int
	units     int
	landings  <-chan landing
	sinkCtx   context.Context
}

func (a *aggregator) run() {
	h := a.handle
	for i := 0; i < a.units; i++ {
		l := <-a.landings
		p := a.pairs[pairKey(l.provider, string(l.scenario))]

		if l.skipped {
			p.skipped++
			a.total--
		} else {
			p.outcomes = append(p.outcomes, l.outcome)
			p.last = l.at
			p.summary = a.summarize(p)
			a.completed++
			if a.runner.recorder != nil {
				a.runner.recorder.RecordOutcome(p.provider, p.scenario, l.outcome)
			}
			h.events.send(ProgressEvent{
				Provider:      p.provider,
				Scenario:      p.scenario,
				PairCompleted: len(p.outcomes),
				PairTotal:     p.expected - p.skipped,
				Completed:     a.completed,
				Total:         a.total,
				Outcome:       l.outcome,
			})
		}

		if !p.finalized && p.settled() {
			p.finalized = true
			a.finalized++
			if len(p.outcomes) > 0 {
				h.events.send(ResultEvent{Summary: p.summary})
			}
		}

		if !l.skipped {
			snap := a.snapshot(true, StateRunning)
			h.publish(snap)
			h.events.send(SnapshotEvent{Snapshot: snap})
		}
	}

	final := StateCompleted
	if h.Aborted() {
		final = StateStopped
	}
	snap := a.snapshot(false, final)
	h.setState(final)
	h.publish(snap)
	h.events.send(SnapshotEvent{Snapshot: snap})

	if sink := a.runner.sink; sink != nil {
		if err := sink.Save(a.sinkCtx, snap); err != nil {
			h.mu.Lock()
			h.sinkErr = fmt.Errorf("save run %s: %w", snap.ID, err)
			h.mu.Unlock()
		}
	}

	h.events.close()
	h.cancel()
	close(h.done)
}

func (a *aggregator) summarize(p *pair) stats.ScenarioSummary {
	return stats.Summarize(p.provider, p.scenario, p.outcomes, p.last.Sub(a.start))
}

func (a *aggregator) snapshot(inProgress bool, state State) RunSnapshot {
	providers := make(map[string]map[string]stats.ScenarioSummary)
	for _, p := range a.pairs {
		if len(p.outcomes) == 0 {
			continue
		}
		byScenario, ok := providers[p.provider]
		if !ok {
			byScenario = make(map[string]stats.ScenarioSummary)
			providers[p.provider] = byScenario
		}
		byScenario[p.scenario] = p.summary
	}
	skipped := make(map[string]string, len(a.skipped))
	for k, v := range a.skipped {
		skipped[k] = v
	}
	return RunSnapshot{
		ID:                    a.handle.id,
		State:                 state,
		Providers:             providers,
		Skipped:               skipped,
		Timestamp:             time.Now(),
		StartedAt:             a.start,
		IterationsPerScenario: a.runner.cfg.IterationsPerScenario,
		InProgress:            inProgress,
		Completed:             a.completed,
		Total:                 a.total,
		PairsCompleted:        a.finalized,
		PairsTotal:            len(a.pairs),
	}
}

func pairKey(providerID, scenario string) string {
	return providerID + "\x00" + scenario
}

func describeSkipped(handles []provider.Handle, skipped map[string]string) string {
	if len(handles) == 0 {
		return ErrNoConfiguredProviders.Error()
	}
	parts := make([]string, 0, len(skipped))
	for _, id := range sortedKeys(skipped) {
		parts = append(parts, id+": "+skipped[id])
	}
	return fmt.Sprintf("%s (%s)", ErrNoConfiguredProviders, strings.Join(parts, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
