// Main window: live view, start/stop control and acquisition lifecycle
package gui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"face-mood-detector/internal/capture"
	"face-mood-detector/internal/config"
	"face-mood-detector/internal/display"
)

const (
	startLabel = "Start camera"
	stopLabel  = "Stop camera"
)

// Acquisition is the capture loop as the window drives it
type Acquisition interface {
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) error
	State() capture.State
}

// Application owns the window and ties the acquisition loop to the live view.
type Application struct {
	app    fyne.App
	window fyne.Window
	logger logrus.FieldLogger

	acquisition Acquisition
	bridge      *display.Bridge
	source      string

	sink   *CanvasSink
	status *widget.Label
	toggle *widget.Button

	mu         sync.Mutex
	ctx        context.Context
	cancelPump context.CancelFunc
	stopOnce   sync.Once
}

func NewApplication(app fyne.App, acquisition Acquisition, bridge *display.Bridge, source string, cfg config.WindowConfig, logger logrus.FieldLogger) *Application {
	window := app.NewWindow(cfg.Title)
	window.Resize(fyne.NewSize(float32(cfg.Width), float32(cfg.Height)))
	window.SetFixedSize(true)
	window.CenterOnScreen()

	a := &Application{
		app:         app,
		window:      window,
		logger:      logger,
		acquisition: acquisition,
		bridge:      bridge,
		source:      source,
	}

	a.initializeGUI(cfg)
	a.setupLayout()

	return a
}

func (a *Application) initializeGUI(cfg config.WindowConfig) {
	a.sink = NewCanvasSink(fyne.NewSize(float32(cfg.Width)*0.9, float32(cfg.Height)*0.8))
	a.status = widget.NewLabel("Stopped")
	a.toggle = widget.NewButton(startLabel, a.onToggle)
}

func (a *Application) setupLayout() {
	controls := container.NewBorder(nil, nil, nil, a.toggle, a.status)
	a.window.SetContent(container.NewBorder(nil, controls, nil, nil, container.NewPadded(a.sink.CanvasObject())))
}

// Init starts the display pump and the acquisition loop. A source that fails
// to open is reported in the window and can be retried with the button.
func (a *Application) Init() {
	a.mu.Lock()
	if a.ctx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.ctx = ctx
		a.cancelPump = cancel
		go a.bridge.Run(ctx, a.sink, a.logger)
	}
	ctx := a.ctx
	a.mu.Unlock()

	a.logger.WithField("source", a.source).Info("GUI: Starting acquisition")
	a.updateStatus(a.acquisition.Start(ctx))
}

// StopAcquisition stops the capture loop and the display pump. Safe to call more than once.
func (a *Application) StopAcquisition() {
	a.stopOnce.Do(func() {
		a.logger.Info("GUI: Stopping acquisition")
		a.acquisition.Stop()

		a.mu.Lock()
		if a.cancelPump != nil {
			a.cancelPump()
		}
		a.mu.Unlock()
	})
}

func (a *Application) onToggle() {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	// Toggle can block while a stream or file opens
	a.toggle.Disable()
	go func() {
		a.updateStatus(a.acquisition.Toggle(ctx))
	}()
}

func (a *Application) updateStatus(err error) {
	running := a.acquisition.State() == capture.Running

	var message string
	switch {
	case errors.Is(err, capture.ErrShutdownPending):
		message = "Previous capture still shutting down, try again"
	case err != nil:
		message = fmt.Sprintf("Camera unavailable: %v", err)
	case running:
		message = "Running: " + a.source
	default:
		message = "Stopped"
	}

	label := startLabel
	if running {
		label = stopLabel
	}

	fyne.Do(func() {
		a.status.SetText(message)
		a.toggle.SetText(label)
		a.toggle.Enable()
	})
}

func (a *Application) ShowAndRun() {
	a.logger.Info("GUI: Showing main window")

	a.window.SetCloseIntercept(func() {
		a.StopAcquisition()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}
