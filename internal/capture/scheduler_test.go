package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"face-mood-detector/internal/core"
)

const testFPS = 50 // 20ms ticks

type fakeSource struct {
	mu      sync.Mutex
	openErr error
	open    bool
	opens   int
	closes  int
	frame   gocv.Mat
}

func newFakeSource(frame gocv.Mat) *fakeSource {
	return &fakeSource{frame: frame}
}

func (f *fakeSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeSource) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSource) Read(dst *gocv.Mat) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.frame.Empty() {
		return false
	}
	f.frame.CopyTo(dst)
	return true
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

func (f *fakeSource) String() string {
	return "fake"
}

func (f *fakeSource) setOpenErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *fakeSource) counts() (opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes
}

// fakeProcessor calls fn with the 1-based call number, and fails the test if calls overlap.
type fakeProcessor struct {
	t        *testing.T
	calls    atomic.Int32
	inFlight atomic.Bool
	fn       func(call int) (core.Result, error)
}

func (p *fakeProcessor) Process(frame gocv.Mat) (core.Result, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.t.Error("overlapping ticks")
	}
	defer p.inFlight.Store(false)

	n := int(p.calls.Add(1))
	if p.fn != nil {
		return p.fn(n)
	}
	return core.Result{}, nil
}

type fakePublisher struct {
	count atomic.Int32
}

func (p *fakePublisher) Publish(frame gocv.Mat) {
	p.count.Add(1)
	frame.Close()
}

func testFrame() gocv.Mat {
	return gocv.NewMatWithSize(24, 32, gocv.MatTypeCV8UC3)
}

func newTestScheduler(t *testing.T, source FrameSource, proc Processor, pub Publisher) (*Scheduler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewScheduler(source, proc, pub, Options{FPS: testFPS, Logger: logger}), hook
}

func TestStopWhenStoppedIsNoop(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	s, _ := newTestScheduler(t, source, &fakeProcessor{t: t}, &fakePublisher{})

	assert.Equal(t, Stopped, s.State())
	s.Stop()
	s.Stop()

	assert.Equal(t, Stopped, s.State())
	opens, closes := source.counts()
	assert.Zero(t, opens)
	assert.Zero(t, closes)
}

func TestStartReportsSourceOpenError(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	cause := errors.New("no camera attached")
	source.setOpenErr(cause)
	pub := &fakePublisher{}
	s, hook := newTestScheduler(t, source, &fakeProcessor{t: t}, pub)

	err := s.Start(context.Background())

	var openErr *SourceOpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "fake", openErr.Source)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Stopped, s.State())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	// a later start retries the open
	source.setOpenErr(nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, Running, s.State())
	assert.Eventually(t, func() bool { return pub.count.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartProcessesAndPublishes(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	proc := &fakeProcessor{t: t, fn: func(int) (core.Result, error) {
		return core.Result{Faces: []core.Face{{Mood: core.Smiling}, {Mood: core.NotSmiling}}}, nil
	}}
	pub := &fakePublisher{}
	s, _ := newTestScheduler(t, source, proc, pub)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	require.Eventually(t, func() bool { return pub.count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, Stopped, s.State())

	opens, closes := source.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, source.IsOpen())

	snap := s.Stats().Snapshot()
	assert.GreaterOrEqual(t, snap.Processed, uint64(3))
	assert.Equal(t, 2*snap.Processed, snap.Faces)
	assert.Equal(t, snap.Processed, snap.Smiling)
	assert.Zero(t, snap.Failures)

	// no ticks after Stop returned
	published := pub.count.Load()
	time.Sleep(5 * s.Interval())
	assert.Equal(t, published, pub.count.Load())
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	s, _ := newTestScheduler(t, source, &fakeProcessor{t: t}, &fakePublisher{})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, Running, s.State())
	opens, _ := source.counts()
	assert.Equal(t, 1, opens)
}

func TestStopIsBoundedByInterval(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	proc := &fakeProcessor{t: t, fn: func(call int) (core.Result, error) {
		if call == 1 {
			entered <- struct{}{}
			<-release
		}
		return core.Result{}, nil
	}}
	pub := &fakePublisher{}
	s, hook := newTestScheduler(t, source, proc, pub)

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never started")
	}

	began := time.Now()
	s.Stop()
	elapsed := time.Since(began)

	assert.Equal(t, Stopped, s.State())
	assert.Less(t, elapsed, s.Interval()+150*time.Millisecond)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// the source stays open until the stuck tick is done with it
	assert.True(t, source.IsOpen())
	assert.ErrorIs(t, s.Start(context.Background()), ErrShutdownPending)

	close(release)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker never finished")
	}
	assert.False(t, source.IsOpen())
	assert.Equal(t, int32(1), pub.count.Load())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	s.Stop()
}

func TestTickFailuresDoNotStopTheStream(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	proc := &fakeProcessor{t: t, fn: func(call int) (core.Result, error) {
		switch call {
		case 1:
			return core.Result{}, errors.New("corrupt frame")
		case 2:
			panic("detector blew up")
		}
		return core.Result{}, nil
	}}
	pub := &fakePublisher{}
	s, hook := newTestScheduler(t, source, proc, pub)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return pub.count.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, uint64(2), s.Stats().Snapshot().Failures)

	var transient []*TransientError
	for _, entry := range hook.AllEntries() {
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
			var te *TransientError
			if errors.As(err, &te) {
				transient = append(transient, te)
			}
		}
	}
	require.Len(t, transient, 2)
	assert.Equal(t, "process", transient[0].Stage)
	assert.Equal(t, "process", transient[1].Stage)
	assert.Contains(t, transient[1].Error(), "detector blew up")
}

func TestEmptyFramesAreSkipped(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	source := newFakeSource(empty)
	proc := &fakeProcessor{t: t}
	pub := &fakePublisher{}
	s, _ := newTestScheduler(t, source, proc, pub)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Stats().Snapshot().EmptyReads >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Running, s.State())
	s.Stop()

	assert.Zero(t, proc.calls.Load())
	assert.Zero(t, pub.count.Load())
}

func TestToggle(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	s, _ := newTestScheduler(t, newFakeSource(frame), &fakeProcessor{t: t}, &fakePublisher{})

	require.NoError(t, s.Toggle(context.Background()))
	assert.Equal(t, Running, s.State())

	require.NoError(t, s.Toggle(context.Background()))
	assert.Equal(t, Stopped, s.State())
}

func TestParentContextCancelStops(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)
	s, _ := newTestScheduler(t, source, &fakeProcessor{t: t}, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return s.State() == Stopped }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { _, closes := source.counts(); return closes == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestDefaultInterval(t *testing.T) {
	s := NewScheduler(newFakeSource(gocv.NewMat()), &fakeProcessor{t: t}, &fakePublisher{}, Options{})
	assert.Equal(t, 62500*time.Microsecond, s.Interval())
}

func TestDoneBeforeStartIsClosed(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	s, _ := newTestScheduler(t, newFakeSource(frame), &fakeProcessor{t: t}, &fakePublisher{})

	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed before the first Start")
	}
}

func TestDoneWaitsForStuckTick(t *testing.T) {
	frame := testFrame()
	defer frame.Close()
	source := newFakeSource(frame)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	proc := &fakeProcessor{t: t, fn: func(call int) (core.Result, error) {
		if call == 1 {
			entered <- struct{}{}
			<-release
		}
		return core.Result{}, nil
	}}
	s, _ := newTestScheduler(t, source, proc, &fakePublisher{})

	require.NoError(t, s.Start(context.Background()))
	<-entered
	s.Stop()

	// Stop gave up after one interval; the worker still holds the source
	select {
	case <-s.Done():
		t.Fatal("Done closed while a tick was still running")
	case <-time.After(3 * s.Interval()):
	}
	assert.True(t, source.IsOpen())

	close(release)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after the tick finished")
	}
	assert.False(t, source.IsOpen())
}
