package gui

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"face-mood-detector/internal/capture"
	"face-mood-detector/internal/config"
	"face-mood-detector/internal/display"
)

type fakeAcquisition struct {
	mu       sync.Mutex
	state    capture.State
	startErr error
	starts   int
	stops    int
	gate     chan struct{} // when set, Start waits on it
}

func (f *fakeAcquisition) Start(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = capture.Running
	return nil
}

func (f *fakeAcquisition) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = capture.Stopped
}

func (f *fakeAcquisition) Toggle(ctx context.Context) error {
	if f.State() == capture.Running {
		f.Stop()
		return nil
	}
	return f.Start(ctx)
}

func (f *fakeAcquisition) State() capture.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAcquisition) setStartErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

func (f *fakeAcquisition) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func newTestApplication(t *testing.T, acq *fakeAcquisition) (*Application, *display.Bridge) {
	t.Helper()
	fyneApp := test.NewApp()
	t.Cleanup(fyneApp.Quit)

	bridge := display.NewBridge()
	t.Cleanup(bridge.Close)

	logger, _ := logtest.NewNullLogger()
	a := NewApplication(fyneApp, acq, bridge, "device 0", config.Default().Window, logger)
	t.Cleanup(a.StopAcquisition)
	return a, bridge
}

// widgetState reads the controls on the fyne thread
type widgetState struct {
	status  string
	label   string
	enabled bool
	image   image.Image
}

func readState(a *Application) widgetState {
	var s widgetState
	fyne.DoAndWait(func() {
		s = widgetState{
			status:  a.status.Text,
			label:   a.toggle.Text,
			enabled: !a.toggle.Disabled(),
			image:   a.sink.Image(),
		}
	})
	return s
}

func tap(a *Application) {
	fyne.DoAndWait(func() { test.Tap(a.toggle) })
}

func TestWindowIsFixedSize(t *testing.T) {
	a, _ := newTestApplication(t, &fakeAcquisition{})

	assert.Equal(t, config.DefaultWindowTitle, a.window.Title())
	assert.True(t, a.window.FixedSize())
}

func TestInitStartsAcquisitionAndPump(t *testing.T) {
	acq := &fakeAcquisition{}
	a, bridge := newTestApplication(t, acq)

	a.Init()
	assert.Equal(t, capture.Running, acq.State())
	assert.Eventually(t, func() bool {
		s := readState(a)
		return s.status == "Running: device 0" && s.label == stopLabel
	}, time.Second, 5*time.Millisecond)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 12, 16, gocv.MatTypeCV8UC3)
	bridge.Publish(frame)

	var shown image.Image
	require.Eventually(t, func() bool {
		shown = readState(a).image
		return shown != nil && shown.Bounds() == image.Rect(0, 0, 16, 12)
	}, time.Second, 5*time.Millisecond)

	r, g, b, _ := shown.At(3, 3).RGBA()
	assert.Equal(t, color.RGBA{R: 255, A: 255}, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255})
}

func TestToggleButton(t *testing.T) {
	acq := &fakeAcquisition{}
	a, _ := newTestApplication(t, acq)
	a.Init()

	tap(a)
	assert.Eventually(t, func() bool {
		s := readState(a)
		return acq.State() == capture.Stopped && s.label == startLabel && s.enabled
	}, time.Second, 5*time.Millisecond)

	tap(a)
	assert.Eventually(t, func() bool {
		s := readState(a)
		return acq.State() == capture.Running && s.label == stopLabel && s.enabled
	}, time.Second, 5*time.Millisecond)
}

func TestToggleDoesNotBlockTheUI(t *testing.T) {
	acq := &fakeAcquisition{}
	a, _ := newTestApplication(t, acq)

	gate := make(chan struct{})
	acq.mu.Lock()
	acq.gate = gate
	acq.mu.Unlock()

	tapped := make(chan struct{})
	go func() {
		tap(a)
		close(tapped)
	}()
	select {
	case <-tapped:
	case <-time.After(time.Second):
		t.Fatal("tap blocked on a slow source open")
	}

	// a second tap while the first is pending is ignored
	assert.False(t, readState(a).enabled)
	tap(a)

	close(gate)
	assert.Eventually(t, func() bool {
		s := readState(a)
		return s.enabled && s.label == stopLabel
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, capture.Running, acq.State())
	acq.mu.Lock()
	assert.Equal(t, 1, acq.starts)
	acq.mu.Unlock()
}

func TestInitReportsOpenFailure(t *testing.T) {
	acq := &fakeAcquisition{startErr: &capture.SourceOpenError{Source: "device 0", Err: errors.New("busy")}}
	a, _ := newTestApplication(t, acq)

	a.Init()
	assert.Equal(t, capture.Stopped, acq.State())
	assert.Eventually(t, func() bool {
		s := readState(a)
		return s.status == "Camera unavailable: failed to open frame source device 0: busy" && s.label == startLabel
	}, time.Second, 5*time.Millisecond)

	// retry through the button once the camera is free
	acq.setStartErr(nil)
	tap(a)
	assert.Eventually(t, func() bool { return acq.State() == capture.Running }, time.Second, 5*time.Millisecond)
}

func TestStopAcquisitionIsIdempotent(t *testing.T) {
	acq := &fakeAcquisition{}
	a, _ := newTestApplication(t, acq)
	a.Init()

	a.StopAcquisition()
	a.StopAcquisition()

	assert.Equal(t, capture.Stopped, acq.State())
	assert.Equal(t, 1, acq.stopCount())
}
