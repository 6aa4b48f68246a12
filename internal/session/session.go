// Package session orchestrates the accelerator's load/compute/poll/read
// cycle over an abstract protocol driver and accumulates performance
// statistics. One Session exclusively owns one channel from Connect until
// Close; there is never more than one request in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/mxhost/tpulink/internal/link"
	"github.com/mxhost/tpulink/internal/matrix"
)

var tracer = otel.Tracer("tpulink-session")

// ErrLinkSuspended indicates the breaker refused the command because the
// link failed repeatedly and the cooldown has not elapsed.
var ErrLinkSuspended = errors.New("session: link suspended after repeated failures")

// ErrClosed indicates use after Close.
var ErrClosed = errors.New("session: closed")

// Config holds the session parameters.
type Config struct {
	// Dim is the accelerator's square array dimension, shared host/device
	// configuration (not negotiated over the wire).
	Dim int
	// PollInterval and PollTimeout bound the status polling loop.
	PollInterval time.Duration
	PollTimeout  time.Duration
	// ResetBeforeRun issues a reset at the top of every multiply.
	ResetBeforeRun bool
	// EnableCache serves repeated operand pairs from a host-side cache.
	EnableCache bool
	// Breaker thresholds; see Breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// DefaultConfig matches the 8x8 systolic array bitstream.
func DefaultConfig() Config {
	return Config{
		Dim:             8,
		PollInterval:    link.DefaultPollInterval,
		PollTimeout:     link.DefaultPollTimeout,
		BreakerFailures: 3,
		BreakerCooldown: 2 * time.Second,
	}
}

// Stats is a snapshot of the session's running totals.
type Stats struct {
	Count   int64
	Total   time.Duration
	Average time.Duration
	Last    time.Duration
	// Throughput is MAC operations per second: dim^3 per multiply.
	Throughput float64
}

// Session is the runtime state of one open accelerator connection.
type Session struct {
	drv     link.Driver
	cfg     Config
	log     zerolog.Logger
	sem     *semaphore.Weighted
	breaker *Breaker
	cache   *resultCache

	mu     sync.Mutex
	count  int64
	total  time.Duration
	last   time.Duration
	closed bool
}

// Connect takes ownership of drv and verifies the link with a reset
// handshake. On handshake failure the driver is closed before returning.
func Connect(drv link.Driver, cfg Config, log zerolog.Logger) (*Session, error) {
	if cfg.Dim <= 0 {
		_ = drv.Close()
		return nil, fmt.Errorf("session: invalid dimension %d", cfg.Dim)
	}
	if err := drv.Reset(); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("connect: reset handshake: %w", err)
	}

	s := &Session{
		drv:     drv,
		cfg:     cfg,
		log:     log,
		sem:     semaphore.NewWeighted(1),
		breaker: NewBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
	}
	if cfg.EnableCache {
		s.cache = newResultCache(cfg.Dim)
	}
	log.Info().Int("dim", cfg.Dim).Msg("Session connected")
	return s, nil
}

// Close releases the channel. Idempotent; safe on every exit path.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.log.Info().Msg("Session closed")
	return s.drv.Close()
}

// RunMultiply drives one full cycle: (reset) -> write A -> write B ->
// start -> poll until done -> read result -> decode. The first failing
// step short-circuits the rest; its name is attached to the error.
func (s *Session) RunMultiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	ctx, span := tracer.Start(ctx, "RunMultiply")
	defer span.End()

	if s.isClosed() {
		return nil, ErrClosed
	}
	if err := a.CheckShape(s.cfg.Dim); err != nil {
		return nil, fmt.Errorf("operand A: %w", err)
	}
	if err := b.CheckShape(s.cfg.Dim); err != nil {
		return nil, fmt.Errorf("operand B: %w", err)
	}

	payloadA := a.Serialize()
	payloadB := b.Serialize()

	var key [32]byte
	if s.cache != nil {
		key = cacheKey(payloadA, payloadB)
		if m, ok := s.cache.get(key); ok {
			cacheHits.Inc()
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return m, nil
		}
	}

	if !s.breaker.Allow() {
		return nil, ErrLinkSuspended
	}

	// One in-flight transaction per channel, ever.
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	start := time.Now()
	result, cycles, err := s.runSteps(ctx, payloadA, payloadB)
	if err != nil {
		s.breaker.Failure()
		linkErrors.WithLabelValues(errorKind(err)).Inc()
		span.RecordError(err)
		s.log.Error().Err(err).Msg("Multiply failed")
		return nil, err
	}
	elapsed := time.Since(start)

	s.breaker.Success()
	s.record(elapsed)
	computesTotal.Inc()
	computeDuration.Observe(elapsed.Seconds())
	deviceCycles.Set(float64(cycles))
	throughputOps.Set(s.Stats().Throughput)
	span.SetAttributes(
		attribute.Int("dim", s.cfg.Dim),
		attribute.Int64("device_cycles", int64(cycles)),
	)
	s.log.Debug().
		Dur("elapsed", elapsed).
		Uint32("cycles", cycles).
		Msg("Multiply complete")

	if s.cache != nil {
		s.cache.put(key, result)
	}
	return result, nil
}

func (s *Session) runSteps(ctx context.Context, payloadA, payloadB []byte) (*matrix.Matrix, uint32, error) {
	if s.cfg.ResetBeforeRun {
		if err := s.drv.Reset(); err != nil {
			return nil, 0, fmt.Errorf("reset: %w", err)
		}
	}
	if err := s.drv.LoadOperand(link.OperandA, payloadA); err != nil {
		return nil, 0, fmt.Errorf("write operand A: %w", err)
	}
	if err := s.drv.LoadOperand(link.OperandB, payloadB); err != nil {
		return nil, 0, fmt.Errorf("write operand B: %w", err)
	}
	if err := s.drv.StartCompute(); err != nil {
		return nil, 0, fmt.Errorf("start compute: %w", err)
	}

	st, err := link.PollUntilDone(ctx, s.drv, s.cfg.PollTimeout, s.cfg.PollInterval)
	if err != nil {
		return nil, 0, fmt.Errorf("poll status: %w", err)
	}

	raw, err := s.drv.ReadResult(matrix.WireSize(s.cfg.Dim, s.cfg.Dim))
	if err != nil {
		return nil, 0, fmt.Errorf("read result: %w", err)
	}
	m, err := matrix.Deserialize(raw, s.cfg.Dim, s.cfg.Dim)
	if err != nil {
		return nil, 0, fmt.Errorf("decode result: %w", err)
	}
	return m, st.Cycles, nil
}

// ResetDevice issues an explicit reset, the recovery path after an
// accelerator fault. A successful reset re-closes the breaker.
func (s *Session) ResetDevice(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	if err := s.drv.Reset(); err != nil {
		s.breaker.Failure()
		return fmt.Errorf("reset: %w", err)
	}
	s.breaker.Success()
	return nil
}

// Stats returns a snapshot of the running statistics. Throughput is defined
// as zero until the first multiply completes.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Count: s.count, Total: s.total, Last: s.last}
	if s.count > 0 {
		st.Average = time.Duration(int64(s.total) / s.count)
		if secs := s.total.Seconds(); secs > 0 {
			ops := float64(s.cfg.Dim) * float64(s.cfg.Dim) * float64(s.cfg.Dim)
			st.Throughput = ops * float64(s.count) / secs
		}
	}
	return st
}

// BreakerState exposes the link health for reporting.
func (s *Session) BreakerState() BreakerState { return s.breaker.State() }

func (s *Session) record(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.total += elapsed
	s.last = elapsed
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// errorKind maps an error to its taxonomy bucket for metrics.
func errorKind(err error) string {
	var (
		verr  *matrix.ValidationError
		nack  *link.NackError
		fault *link.FaultError
		terr  *link.TransportError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &nack):
		return "nack"
	case errors.As(err, &fault):
		return "fault"
	case errors.As(err, &terr):
		return "transport"
	case errors.Is(err, link.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}
