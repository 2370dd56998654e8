// Package scheduler runs the market tick cycle: for every instrument it
// pulls an activity score, advances the price, commits it and resolves
// the instrument's pending orders and alerts against the new price.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/pricing"
)

// ActivitySource supplies one instrument's activity score for the window
// since the previous tick. Implementations should honour ctx; the
// scheduler stops waiting when it is done either way.
type ActivitySource interface {
	Score(ctx context.Context, symbol string, window time.Duration) (int64, error)
}

// Evaluator resolves an instrument's pending orders and alerts against a
// newly committed price.
type Evaluator interface {
	Evaluate(symbol string, prevPrice, newPrice int64) (engine.Evaluation, error)
}

// Recorder receives tick metrics.
type Recorder interface {
	ObserveTick(outcome string, d time.Duration)
	InstrumentFailed(symbol string)
	OrdersFilled(n int)
	AlertsFired(n int)
	SetPrice(symbol string, price int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(string, time.Duration) {}
func (nopRecorder) InstrumentFailed(string) {}
func (nopRecorder) OrdersFilled(int) {}
func (nopRecorder) AlertsFired(int) {}
func (nopRecorder) SetPrice(string, int64) {}

// State is the scheduler's position in its Idle → Ticking → Idle cycle.
type State int32

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	if s == Ticking {
		return "ticking"
	}
	return "idle"
}

// Config holds the scheduler's timing knobs.
type Config struct {
	Period             time.Duration
	ActivityTimeout    time.Duration
	InstrumentDeadline time.Duration
	// ZeroActivityOnTimeout prices an instrument with a zero score when
	// its activity fetch times out instead of skipping it for the tick.
	ZeroActivityOnTimeout bool
}

// Scheduler owns the periodic tick. Only one cycle runs at a time.
type Scheduler struct {
	cfg      Config
	registry *market.Registry
	process  *pricing.Process
	activity ActivitySource
	eval     Evaluator
	sink     engine.EventSink
	metrics  Recorder
	logger   *zap.Logger
	now      func() time.Time

	period atomic.Int64
	state  atomic.Int32
	seq    atomic.Uint64
	runMu  sync.Mutex
	reset  chan struct{}

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	lastTick time.Time
}

// New creates a Scheduler. Nil sink and recorder discard their output.
func New(
	cfg Config,
	registry *market.Registry,
	process *pricing.Process,
	activity ActivitySource,
	eval Evaluator,
	sink engine.EventSink,
	rec Recorder,
	logger *zap.Logger,
) *Scheduler {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:      cfg,
		registry: registry,
		process:  process,
		activity: activity,
		eval:     eval,
		sink:     sink,
		metrics:  rec,
		logger:   logger.With(zap.String("component", "scheduler")),
		now:      func() time.Time { return time.Now().UTC() },
		reset:    make(chan struct{}, 1),
	}
	s.period.Store(int64(cfg.Period))
	return s
}

// Period returns the current tick period.
func (s *Scheduler) Period() time.Duration {
	return time.Duration(s.period.Load())
}

// SetPeriod changes the tick period. A running loop re-arms its timer
// with the new period immediately.
func (s *Scheduler) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return domain.Invalid("tick period must be > 0")
	}
	s.period.Store(int64(d))
	select {
	case s.reset <- struct{}{}:
	default:
	}
	s.logger.Info("tick period changed", zap.Duration("period", d))
	return nil
}

// State reports whether a cycle is in flight.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start launches the periodic loop. It returns an error if the loop is
// already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	return nil
}

// Stop halts the loop between ticks and waits for an in-flight cycle to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.Period())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.Period())
		case <-timer.C:
			// A started cycle always runs to completion.
			if _, err := s.RunOnce(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("tick aborted, will retry next period", zap.Error(err))
			}
			timer.Reset(s.Period())
		}
	}
}

// Exclusive runs fn while no cycle is in flight. Out-of-band price
// changes use it so they never interleave with a tick.
func (s *Scheduler) Exclusive(fn func() error) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return fn()
}

// RunOnce executes one full cycle. Per-instrument failures are recorded
// in the result and do not fail the call; a systemic failure stops
// instruments that have not started yet and is returned. Instruments
// already in flight finish their unit of work.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.TickResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.state.Store(int32(Ticking))
	defer s.state.Store(int32(Idle))

	start := s.now()
	res := domain.TickResult{
		Seq:       s.seq.Add(1),
		StartedAt: start,
		Failures:  make(map[string]string),
	}

	window := s.Period()
	s.mu.Lock()
	if !s.lastTick.IsZero() {
		window = start.Sub(s.lastTick)
	}
	s.lastTick = start
	s.mu.Unlock()

	// gctx only gates whether an instrument starts. Once started, an
	// instrument runs to completion under its own deadline, unaffected by
	// a sibling's systemic failure or by shutdown.
	var resMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	unit := context.WithoutCancel(ctx)
	for _, sym := range s.registry.Symbols() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				resMu.Lock()
				res.Failures[sym] = "skipped: " + context.Cause(gctx).Error()
				resMu.Unlock()
				return nil
			}

			upd, ev, err := s.tickInstrument(unit, sym, window)

			resMu.Lock()
			defer resMu.Unlock()
			if upd != nil {
				res.Updates = append(res.Updates, *upd)
				res.OrdersFilled += len(ev.Fills)
				res.AlertsFired += len(ev.Fired)
			}
			if err != nil {
				res.Failures[sym] = err.Error()
				s.metrics.InstrumentFailed(sym)
				if errors.Is(err, domain.ErrSystemicFailure) {
					return fmt.Errorf("%s: %w", sym, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(res.Updates, func(i, j int) bool {
		return res.Updates[i].Symbol < res.Updates[j].Symbol
	})
	res.FinishedAt = s.now()
	res.Aborted = err != nil
	if len(res.Failures) == 0 {
		res.Failures = nil
	}

	s.record(res)
	if err != nil {
		return res, fmt.Errorf("tick %d: %w", res.Seq, err)
	}
	return res, nil
}

func (s *Scheduler) record(res domain.TickResult) {
	outcome := "ok"
	switch {
	case res.Aborted:
		outcome = "aborted"
	case len(res.Failures) > 0:
		outcome = "partial"
	}
	elapsed := res.FinishedAt.Sub(res.StartedAt)

	s.metrics.ObserveTick(outcome, elapsed)
	s.metrics.OrdersFilled(res.OrdersFilled)
	s.metrics.AlertsFired(res.AlertsFired)
	for _, u := range res.Updates {
		s.metrics.SetPrice(u.Symbol, u.NewPrice)
	}

	s.logger.Info("tick completed",
		zap.Uint64("seq", res.Seq),
		zap.String("outcome", outcome),
		zap.Int("updated", len(res.Updates)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("orders_filled", res.OrdersFilled),
		zap.Int("alerts_fired", res.AlertsFired),
		zap.Duration("elapsed", elapsed),
	)

	if s.sink != nil {
		s.sink.Publish(domain.Event{
			Kind: domain.EventTickCompleted,
			Details: map[string]any{
				"seq":      res.Seq,
				"updates":  res.Updates,
				"failures": res.Failures,
				"aborted":  res.Aborted,
			},
			Timestamp: res.FinishedAt,
		})
	}
}

// tickInstrument runs one instrument's unit of work. It returns a nil
// update when the price was not committed.
func (s *Scheduler) tickInstrument(ctx context.Context, symbol string, window time.Duration) (*domain.PriceUpdate, engine.Evaluation, error) {
	log := s.logger.With(zap.String("symbol", symbol))

	inst, err := s.registry.Get(symbol)
	if err != nil {
		return nil, engine.Evaluation{}, err
	}

	deadline := s.cfg.InstrumentDeadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	score, err := s.fetchActivity(ctx, symbol, window)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if !timedOut || !s.cfg.ZeroActivityOnTimeout {
			log.Warn("activity fetch failed, price unchanged this tick", zap.Error(err))
			return nil, engine.Evaluation{}, fmt.Errorf("activity: %w", err)
		}
		log.Warn("activity fetch timed out, pricing with zero activity", zap.Error(err))
		score = 0
	}

	prev := inst.State()
	out, err := s.process.Advance(pricing.Input{
		Price:      prev.Price,
		Momentum:   prev.Momentum,
		Baseline:   inst.Baseline,
		Volatility: inst.Volatility,
	}, score)
	if err != nil {
		log.Warn("price process failed", zap.Error(err))
		return nil, engine.Evaluation{}, fmt.Errorf("price: %w", err)
	}

	next := domain.InstrumentState{
		Price:     out.Price,
		Momentum:  out.Momentum,
		Activity:  score,
		UpdatedAt: s.now(),
	}
	if err := s.registry.Commit(symbol, next); err != nil {
		log.Error("price commit failed", zap.Error(err))
		return nil, engine.Evaluation{}, err
	}

	upd := &domain.PriceUpdate{
		Symbol:   symbol,
		OldPrice: prev.Price,
		NewPrice: out.Price,
		Delta:    out.Price - prev.Price,
		Activity: score,
		Momentum: out.Momentum,
	}
	log.Debug("price committed",
		zap.Int64("old", prev.Price),
		zap.Int64("new", out.Price),
		zap.Int64("activity", score),
		zap.Float64("drift", out.Terms.Drift),
		zap.Float64("reversion", out.Terms.Reversion),
		zap.Float64("momentum", out.Terms.Momentum),
		zap.Float64("noise", out.Terms.Noise),
	)

	ev, err := s.eval.Evaluate(symbol, prev.Price, out.Price)
	if err != nil {
		log.Error("order evaluation failed", zap.Error(err))
		return upd, ev, fmt.Errorf("evaluate: %w", err)
	}
	return upd, ev, nil
}

// fetchActivity bounds the source call by ACTIVITY_TIMEOUT even when the
// source ignores its context.
func (s *Scheduler) fetchActivity(ctx context.Context, symbol string, window time.Duration) (int64, error) {
	if s.activity == nil {
		return 0, nil
	}
	if s.cfg.ActivityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ActivityTimeout)
		defer cancel()
	}

	type result struct {
		score int64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		score, err := s.activity.Score(ctx, symbol, window)
		ch <- result{score, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return 0, r.err
		}
		if r.score < 0 {
			return 0, nil
		}
		return r.score, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
