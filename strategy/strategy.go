// Package strategy implements the cooperative scheduler (C9): on every
// slow-chain snapshot it rebuilds a precompute.Precompute; on every
// fast-chain snapshot it attempts a search.Find and holds the winning
// candidate; an emit deadline armed at 75% of the slow block interval
// publishes the held candidate to a signalbus.Bus. Directly modeled on
// chains/ethereum/client.go's Dial/Option/loop triad: a functional-options
// constructor that starts one long-running goroutine bound to the caller's
// context, reporting fatal errors on a dedicated channel.
package strategy

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/pairstream"
	"github.com/veblen-group/kuma-core/precompute"
	"github.com/veblen-group/kuma-core/repository"
	"github.com/veblen-group/kuma-core/search"
	"github.com/veblen-group/kuma-core/signal"
	"github.com/veblen-group/kuma-core/signalbus"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

// Logger is the narrow structured-logging contract shared across kuma-core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// State names the scheduler's three states per spec.md section 4.6. It is
// carried only for observability; transitions are actually driven by the
// presence or absence of currentPrecompute/currentCandidate.
type State int

const (
	Idle State = iota
	Armed
	HasCandidate
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case HasCandidate:
		return "has_candidate"
	default:
		return "unknown"
	}
}

// Option configures the Scheduler. The interface method is unexported to
// prevent external modification after Dial, following
// chains/ethereum/client.go's Option pattern.
type Option interface {
	apply(*Scheduler)
}

type funcOption func(*Scheduler)

func (f funcOption) apply(s *Scheduler) { f(s) }

func newOption(f func(*Scheduler)) Option {
	return funcOption(f)
}

// WithLogger sets the structured logger used for soft-failure reporting.
// Defaults to a no-op logger.
func WithLogger(logger Logger) Option {
	return newOption(func(s *Scheduler) { s.logger = logger })
}

// WithMetrics wires Prometheus instrumentation for precompute timing, pool
// failures, search timing/outcomes, and emission counts. Defaults to nil,
// which disables instrumentation.
func WithMetrics(buildDuration, searchDuration prometheus.Observer, poolFailures prometheus.Counter, searchOutcomes *prometheus.CounterVec, signalsEmitted prometheus.Counter) Option {
	return newOption(func(s *Scheduler) {
		s.buildDuration = buildDuration
		s.searchDuration = searchDuration
		s.poolFailures = poolFailures
		s.searchOutcomes = searchOutcomes
		s.signalsEmitted = signalsEmitted
	})
}

// WithSignalWriter wires an optional persistence hand-off for emitted
// signals.
func WithSignalWriter(w repository.SignalWriter) Option {
	return newOption(func(s *Scheduler) { s.signalWriter = w })
}

// WithSpotPriceWriter wires an optional persistence hand-off fired whenever
// a precompute's min/max spot prices change relative to the previous one.
func WithSpotPriceWriter(w repository.SpotPriceWriter) Option {
	return newOption(func(s *Scheduler) { s.spotPriceWriter = w })
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scheduler runs the single-threaded cooperative state machine described in
// spec.md section 4.6. Construct with Dial; it begins running immediately
// and stops when ctx is cancelled.
type Scheduler struct {
	slowStream *pairstream.Stream
	fastStream *pairstream.Stream
	slowChain  chainmeta.Chain
	fastChain  chainmeta.Chain
	slowPair   token.Pair
	fastPair   token.Pair

	steps         int
	slowInventory [2]*big.Int // [A, B]
	searchParams  search.Params

	bus    *signalbus.Bus
	logger Logger

	buildDuration  prometheus.Observer
	searchDuration prometheus.Observer
	poolFailures   prometheus.Counter
	searchOutcomes *prometheus.CounterVec
	signalsEmitted prometheus.Counter

	signalWriter    repository.SignalWriter
	spotPriceWriter repository.SpotPriceWriter

	ctx   context.Context
	wg    sync.WaitGroup
	errCh chan error

	mu               sync.RWMutex
	state            State
	currentPrecomp   atomic.Pointer[precompute.Precompute]
	currentCandidate *signal.Signal
	prevMinPrice     *float64
	prevMaxPrice     *float64
}

// Dial starts the scheduler's loop bound to ctx and returns immediately.
func Dial(
	ctx context.Context,
	slowStream, fastStream *pairstream.Stream,
	slowChain, fastChain chainmeta.Chain,
	slowPair, fastPair token.Pair,
	steps int,
	slowInventoryA, slowInventoryB *big.Int,
	searchParams search.Params,
	bus *signalbus.Bus,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		slowStream:    slowStream,
		fastStream:    fastStream,
		slowChain:     slowChain,
		fastChain:     fastChain,
		slowPair:      slowPair,
		fastPair:      fastPair,
		steps:         steps,
		slowInventory: [2]*big.Int{slowInventoryA, slowInventoryB},
		searchParams:  searchParams,
		bus:           bus,
		logger:        noopLogger{},
		state:         Idle,
		errCh:         make(chan error, 1),
	}

	for _, opt := range opts {
		opt.apply(s)
	}

	s.ctx = ctx
	s.wg.Add(1)
	go s.loop()

	s.logger.Info("strategy scheduler started", "slow_chain", string(slowChain.Name), "fast_chain", string(fastChain.Name))
	return s
}

// Err reports a fatal scheduler error, if one ever occurs. Currently the
// scheduler has no fatal error path of its own (upstream collector errors
// are out of its scope) but the channel is kept for symmetry with
// chains/ethereum/client.go's Err() and future-proofing against upstream
// wiring that needs it.
func (s *Scheduler) Err() <-chan error {
	return s.errCh
}

// State reports the scheduler's current state, safe for concurrent use from
// a debug/metrics endpoint.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentPrecompute returns the scheduler's live precompute, or nil before
// the first slow-chain snapshot arrives. Safe for concurrent use without
// taking the scheduler's own lock.
func (s *Scheduler) CurrentPrecompute() *precompute.Precompute {
	return s.currentPrecomp.Load()
}

// loop handles events in the priority order shutdown > emit-deadline >
// slow-update > fast-update on a best-effort basis: non-blocking pre-selects
// check each higher-priority source in turn, then one blocking select waits
// on all of them. Go's select picks uniformly among ready cases, so events
// that become ready together while that final select is waiting are not
// ordered exactly.
func (s *Scheduler) loop() {
	defer s.wg.Done()
	defer close(s.errCh)

	slowCh := make(chan snapshot.PairSnapshot)
	fastCh := make(chan snapshot.PairSnapshot)
	go pump(s.ctx, s.slowStream, slowCh)
	go pump(s.ctx, s.fastStream, fastCh)

	deadline := time.NewTimer(time.Hour)
	if !deadline.Stop() {
		<-deadline.C
	}
	deadlineArmed := false

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if deadlineArmed {
			select {
			case <-s.ctx.Done():
				return
			case <-deadline.C:
				deadlineArmed = false
				s.onDeadline()
				continue
			default:
			}
		}

		select {
		case <-s.ctx.Done():
			return
		case slowSnap, ok := <-slowCh:
			if !ok {
				return
			}
			s.onSlow(slowSnap, deadline, &deadlineArmed)
			continue
		default:
		}

		select {
		case <-s.ctx.Done():
			return
		case slowSnap, ok := <-slowCh:
			if !ok {
				return
			}
			s.onSlow(slowSnap, deadline, &deadlineArmed)
		case fastSnap, ok := <-fastCh:
			if !ok {
				return
			}
			s.onFast(fastSnap)
		case <-timerChan(deadline, deadlineArmed):
			deadlineArmed = false
			s.onDeadline()
		}
	}
}

// timerChan returns deadline's channel only while armed, so the final
// blocking select in loop() never wakes on a timer nobody reset.
func timerChan(t *time.Timer, armed bool) <-chan time.Time {
	if !armed {
		return nil
	}
	return t.C
}

func pump(ctx context.Context, stream *pairstream.Stream, out chan<- snapshot.PairSnapshot) {
	for {
		snap, ok := stream.Next(ctx)
		if !ok {
			close(out)
			return
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) onSlow(snap snapshot.PairSnapshot, deadline *time.Timer, deadlineArmed *bool) {
	prior := s.currentPrecomp.Load()
	pc := precompute.Build(prior, snap, s.slowPair, s.steps, s.slowInventory[0], s.slowInventory[1], s.logger, s.buildDuration, s.poolFailures)
	s.currentPrecomp.Store(pc)
	s.reportSpotPriceExtrema(pc)

	s.mu.Lock()
	s.currentCandidate = nil
	s.state = Armed
	s.mu.Unlock()

	hint := s.slowChain.BlockTimeHint
	if hint <= 0 {
		hint = chainmeta.DefaultBlockTimeHint
	}
	if !deadline.Stop() && *deadlineArmed {
		select {
		case <-deadline.C:
		default:
		}
	}
	deadline.Reset(time.Duration(float64(hint) * 0.75))
	*deadlineArmed = true
}

func (s *Scheduler) onFast(snap snapshot.PairSnapshot) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state == Idle {
		return
	}

	pc := s.currentPrecomp.Load()
	if pc == nil {
		return
	}

	if s.searchDuration != nil {
		timer := prometheus.NewTimer(s.searchDuration)
		defer timer.ObserveDuration()
	}

	sig, err := search.Find(pc, s.slowChain, snap, s.fastChain, s.fastPair, s.searchParams, s.logger)
	if err != nil {
		s.logger.Debug("strategy: fast update produced no candidate", "error", err)
		s.observeSearchOutcome(err)
		return
	}
	s.observeSearchOutcome(nil)

	s.mu.Lock()
	s.currentCandidate = &sig
	s.state = HasCandidate
	s.mu.Unlock()
}

func (s *Scheduler) observeSearchOutcome(err error) {
	if s.searchOutcomes == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.searchOutcomes.WithLabelValues(outcome).Inc()
}

func (s *Scheduler) onDeadline() {
	s.mu.Lock()
	candidate := s.currentCandidate
	s.currentCandidate = nil
	if candidate != nil {
		s.state = Armed
	}
	s.mu.Unlock()

	if candidate == nil {
		return
	}

	s.bus.Publish(*candidate, s.logger)
	if s.signalsEmitted != nil {
		s.signalsEmitted.Inc()
	}
	if s.signalWriter != nil {
		if err := s.signalWriter.WriteSignal(s.ctx, *candidate); err != nil {
			s.logger.Warn("strategy: failed to persist emitted signal", "error", err)
		}
	}
}

func (s *Scheduler) reportSpotPriceExtrema(pc *precompute.Precompute) {
	if s.spotPriceWriter == nil || len(pc.SortedSpotPrices) == 0 {
		return
	}
	min := pc.SortedSpotPrices[0]
	max := pc.SortedSpotPrices[len(pc.SortedSpotPrices)-1]

	if s.prevMinPrice != nil && s.prevMaxPrice != nil && *s.prevMinPrice == min.Price && *s.prevMaxPrice == max.Price {
		return
	}
	s.prevMinPrice = &min.Price
	s.prevMaxPrice = &max.Price

	if err := s.spotPriceWriter.WriteSpotPriceExtrema(s.ctx, s.slowChain.Name, s.slowPair, pc.Height, min.PoolID, min.Price, max.PoolID, max.Price); err != nil {
		s.logger.Warn("strategy: failed to persist spot price extrema", "error", err)
	}
}
