// internal/capture/scheduler.go
// Fixed-rate acquisition loop: read a frame, run the pipeline, publish the result
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"face-mood-detector/internal/core"
)

const DefaultFPS = 16

// State of the acquisition loop
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Processor annotates a frame in place
type Processor interface {
	Process(frame gocv.Mat) (core.Result, error)
}

// Publisher receives every successfully processed frame and takes ownership of it
type Publisher interface {
	Publish(frame gocv.Mat)
}

type Options struct {
	FPS    int
	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// Scheduler drives one worker goroutine that ticks at a fixed rate. Ticks
// never overlap and never queue up: a slow tick delays the next one, the
// missed ones are dropped.
type Scheduler struct {
	source    FrameSource
	processor Processor
	publisher Publisher
	interval  time.Duration
	clock     clock.Clock
	logger    logrus.FieldLogger
	stats     *Stats

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(source FrameSource, processor Processor, publisher Publisher, opts Options) *Scheduler {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Scheduler{
		source:    source,
		processor: processor,
		publisher: publisher,
		interval:  time.Second / time.Duration(opts.FPS),
		clock:     opts.Clock,
		logger:    opts.Logger,
		stats:     &Stats{},
	}
}

// Interval between ticks; also the grace period Stop waits for an in-flight tick
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Stats() *Stats {
	return s.stats
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the frame source and begins ticking. Starting a running
// scheduler does nothing. A source that fails to open yields a
// *SourceOpenError and leaves the scheduler stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.logger.Debug("SCHEDULER: Start ignored, already running")
		return nil
	}

	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrShutdownPending
		}
	}

	if !s.source.IsOpen() {
		if err := s.source.Open(); err != nil {
			s.logger.WithError(err).WithField("source", s.source.String()).Error("SCHEDULER: Failed to open the frame source")
			return &SourceOpenError{Source: s.source.String(), Err: err}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = Running

	go s.run(runCtx, done)

	s.logger.WithFields(logrus.Fields{
		"source":      s.source.String(),
		"interval_ms": s.interval.Milliseconds(),
	}).Info("SCHEDULER: Acquisition started")
	return nil
}

// Stop cancels future ticks and waits at most one interval for an in-flight
// tick. Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("SCHEDULER: Acquisition stopped")
	case <-s.clock.After(s.interval):
		s.logger.WithField("grace_ms", s.interval.Milliseconds()).Warn("SCHEDULER: Tick still running after grace period, not waiting")
	}
}

// Done is closed once the worker of the latest run has returned and released
// the source. It is already closed when the scheduler never started. Unlike
// Stop it does not give up on a stuck tick.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.done
}

// Toggle backs the single start/stop control of the window: it stops a
// running scheduler and starts a stopped one.
func (s *Scheduler) Toggle(ctx context.Context) error {
	if s.State() == Running {
		s.Stop()
		return nil
	}
	return s.Start(ctx)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer s.finish(done)

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		s.tick()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// finish runs on the worker once it stops ticking, so the source is never
// closed under an in-flight read.
func (s *Scheduler) finish(done chan struct{}) {
	if err := s.source.Close(); err != nil {
		s.logger.WithError(err).Warn("SCHEDULER: Failed to close the frame source")
	}

	s.mu.Lock()
	if s.done == done && s.state == Running {
		// parent context ended without Stop
		s.state = Stopped
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()

	close(done)
}

func (s *Scheduler) tick() {
	start := s.clock.Now()
	stage := "read"
	frame := gocv.NewMat()
	published := false

	defer func() {
		if r := recover(); r != nil {
			s.fail(&TransientError{Stage: stage, Err: fmt.Errorf("panic: %v", r)})
		}
		if !published {
			frame.Close()
		}
		s.stats.recordTick(s.clock.Since(start))
	}()

	if !s.source.Read(&frame) || frame.Empty() {
		s.stats.recordEmpty()
		s.logger.Debug("SCHEDULER: No frame available")
		return
	}

	stage = "process"
	result, err := s.processor.Process(frame)
	if err != nil {
		s.fail(&TransientError{Stage: stage, Err: err})
		return
	}
	s.stats.recordFrame(len(result.Faces), result.Smiling())

	stage = "publish"
	published = true
	s.publisher.Publish(frame)
}

func (s *Scheduler) fail(err *TransientError) {
	s.stats.recordFailure()
	s.logger.WithError(err).WithField("stage", err.Stage).Warn("SCHEDULER: Frame dropped")
}
