// Face and Mood Detector
// Live face detection with smile-based mood labelling

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"face-mood-detector/internal/capture"
	"face-mood-detector/internal/config"
	"face-mood-detector/internal/core"
	"face-mood-detector/internal/detect"
	"face-mood-detector/internal/display"
	"face-mood-detector/internal/gui"
	"face-mood-detector/internal/io"
)

const (
	AppName    = "Face and Mood Detector"
	AppID      = "com.facemood.detector"
	AppVersion = "1.0.0"
)

type closingDetector interface {
	core.Detector
	Close() error
}

func main() {
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	device := flag.String("device", "", "Camera index, stream URL or video file (overrides config)")
	stillImage := flag.String("image", "", "Serve a still image instead of a camera (overrides config)")
	fps := flag.Int("fps", 0, "Frames per second (overrides config)")
	flag.Parse()

	logger := initLogger(*debugMode)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
	}).Info("Starting " + AppName)

	cfg, err := loadConfig(*configPath, *device, *stillImage, *fps)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	detectors, err := loadDetectors(cfg)
	if err != nil {
		var modelErr *detect.ModelLoadError
		if errors.As(err, &modelErr) {
			logger.WithFields(logrus.Fields{
				"classifier": modelErr.Name,
				"path":       modelErr.Path,
			}).WithError(modelErr.Err).Fatal("Failed to load classifier model")
		}
		logger.WithError(err).Fatal("Failed to create detectors")
	}
	defer closeDetectors(detectors, logger)

	pipeline := core.New(detectors[0], detectors[1], detectors[2], logger)
	source := newSource(cfg, logger)
	bridge := display.NewBridge()
	defer bridge.Close()

	scheduler := capture.NewScheduler(source, pipeline, bridge, capture.Options{
		FPS:    cfg.FPS,
		Logger: logger,
	})

	if interval := cfg.ReportInterval(); interval > 0 {
		reporter, err := capture.NewReporter(scheduler.Stats(), interval, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create stats reporter")
		}
		reporter.Start()
		defer func() {
			if err := reporter.Shutdown(); err != nil {
				logger.WithError(err).Warn("Stats reporter did not shut down cleanly")
			}
		}()
	}

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.MediaVideoIcon())
	myApp.Settings().SetTheme(theme.DefaultTheme())

	mainApp := gui.NewApplication(myApp, scheduler, bridge, source.String(), cfg.Window, logger)
	mainApp.Init()
	mainApp.ShowAndRun()
	mainApp.StopAcquisition()

	// detectors and the bridge are released by the deferred calls; the worker must be gone first
	select {
	case <-scheduler.Done():
	default:
		logger.Info("Waiting for the last frame to finish processing")
		<-scheduler.Done()
	}

	logger.Info("Application shutting down gracefully")
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

// loadConfig reads the optional config file and applies command line overrides on top
func loadConfig(path, device, stillImage string, fps int) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if device != "" {
		cfg.Source.Device = device
		cfg.Source.StillImage = ""
	}
	if stillImage != "" {
		cfg.Source.StillImage = stillImage
	}
	if fps != 0 {
		cfg.FPS = fps
	}

	return cfg, cfg.Validate()
}

// loadDetectors returns the face, eyes and smile detectors in that order
func loadDetectors(cfg config.Config) ([]closingDetector, error) {
	var detectors []closingDetector
	fail := func(err error) ([]closingDetector, error) {
		for _, d := range detectors {
			d.Close()
		}
		return nil, err
	}

	faceParams, err := cfg.Face.Params()
	if err != nil {
		return fail(fmt.Errorf("face: %w", err))
	}

	var face closingDetector
	switch cfg.Cascades.FaceBackend {
	case config.BackendPigo:
		face, err = detect.NewPigo(cfg.Cascades.PigoCascade, faceParams, cfg.PigoOptions())
	default:
		face, err = detect.NewCascade(cfg.Cascades.Dir, cfg.Face.Classifier, faceParams)
	}
	if err != nil {
		return fail(err)
	}
	detectors = append(detectors, face)

	for _, section := range []config.DetectorConfig{cfg.Eyes, cfg.Smile} {
		params, err := section.Params()
		if err != nil {
			return fail(fmt.Errorf("%s: %w", section.Classifier, err))
		}
		cascade, err := detect.NewCascade(cfg.Cascades.Dir, section.Classifier, params)
		if err != nil {
			return fail(err)
		}
		detectors = append(detectors, cascade)
	}

	return detectors, nil
}

func closeDetectors(detectors []closingDetector, logger logrus.FieldLogger) {
	for _, d := range detectors {
		if err := d.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release detector")
		}
	}
}

func newSource(cfg config.Config, logger logrus.FieldLogger) capture.FrameSource {
	if cfg.Source.StillImage != "" {
		return capture.NewStillImage(cfg.Source.StillImage, io.NewImageLoader(logger))
	}
	return capture.NewDevice(cfg.Source.Device)
}
