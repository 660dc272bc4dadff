// Application configuration: defaults, TOML file overrides and validation
package config

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/BurntSushi/toml"

	"face-mood-detector/internal/detect"
)

const (
	DefaultFPS             = 16
	DefaultCascadeDir      = "/usr/share/opencv4/haarcascades"
	DefaultReportInterval  = 10
	DefaultWindowWidth     = 850
	DefaultWindowHeight    = 620
	DefaultWindowTitle     = "Face and Mood Detector"
	DefaultDevice          = "0"
	BackendHaar            = "haar"
	BackendPigo            = "pigo"
	maxFPS                 = 120
	defaultPigoCascadePath = "cascades/facefinder"
)

// Config is the full application configuration
type Config struct {
	FPS      int            `toml:"fps"`
	Source   SourceConfig   `toml:"source"`
	Cascades CascadeConfig  `toml:"cascades"`
	Face     DetectorConfig `toml:"face"`
	Eyes     DetectorConfig `toml:"eyes"`
	Smile    DetectorConfig `toml:"smile"`
	Report   ReportConfig   `toml:"report"`
	Window   WindowConfig   `toml:"window"`
}

// SourceConfig selects where frames come from. StillImage wins over Device when set.
type SourceConfig struct {
	// Device is a camera index ("0"), a stream URL or a video file path.
	Device     string `toml:"device"`
	StillImage string `toml:"still_image"`
}

type CascadeConfig struct {
	Dir         string  `toml:"dir"`
	FaceBackend string  `toml:"face_backend"`
	// PigoCascade is resolved against the working directory. The stock
	// facefinder cascade ships under cascades/ at the repository root.
	PigoCascade string  `toml:"pigo_cascade"`
	PigoQuality float32 `toml:"pigo_min_quality"`
}

// DetectorConfig names one classifier and its scan parameters. Sizes are [width, height].
type DetectorConfig struct {
	Classifier   string  `toml:"classifier"`
	ScaleFactor  float64 `toml:"scale_factor"`
	MinNeighbors int     `toml:"min_neighbors"`
	MinSize      []int   `toml:"min_size"`
	MaxSize      []int   `toml:"max_size"`
}

type ReportConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Default returns the tuning the detector ships with.
func Default() Config {
	return Config{
		FPS: DefaultFPS,
		Source: SourceConfig{
			Device: DefaultDevice,
		},
		Cascades: CascadeConfig{
			Dir:         DefaultCascadeDir,
			FaceBackend: BackendHaar,
			PigoCascade: defaultPigoCascadePath,
			PigoQuality: detect.DefaultPigoOptions().MinQuality,
		},
		Face: DetectorConfig{
			Classifier:   "frontalface_alt",
			ScaleFactor:  1.05,
			MinNeighbors: 6,
			// faces are searched from the largest eye/smile size upward
			MinSize:      []int{detect.DefaultMaxSize.X, detect.DefaultMaxSize.Y},
			MaxSize:      []int{0, 0},
		},
		Eyes: DetectorConfig{
			Classifier:   "eye_tree_eyeglasses",
			ScaleFactor:  1.1,
			MinNeighbors: 16,
			MinSize:      []int{detect.DefaultMinSize.X, detect.DefaultMinSize.Y},
			MaxSize:      []int{detect.DefaultMaxSize.X, detect.DefaultMaxSize.Y},
		},
		Smile: DetectorConfig{
			Classifier:   "smile",
			ScaleFactor:  1.4,
			MinNeighbors: 32,
			MinSize:      []int{detect.DefaultMinSize.X, detect.DefaultMinSize.Y},
			MaxSize:      []int{detect.DefaultMaxSize.X, detect.DefaultMaxSize.Y},
		},
		Report: ReportConfig{
			IntervalSeconds: DefaultReportInterval,
		},
		Window: WindowConfig{
			Title:  DefaultWindowTitle,
			Width:  DefaultWindowWidth,
			Height: DefaultWindowHeight,
		},
	}
}

// Load decodes the TOML file at path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	var errs []error

	if c.FPS <= 0 || c.FPS > maxFPS {
		errs = append(errs, fmt.Errorf("fps must be between 1 and %d, got %d", maxFPS, c.FPS))
	}
	if c.Source.Device == "" && c.Source.StillImage == "" {
		errs = append(errs, errors.New("source: either device or still_image is required"))
	}

	switch c.Cascades.FaceBackend {
	case BackendHaar:
	case BackendPigo:
		if c.Cascades.PigoCascade == "" {
			errs = append(errs, errors.New("cascades: pigo_cascade is required for the pigo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cascades: unknown face backend %q", c.Cascades.FaceBackend))
	}

	sections := []struct {
		name string
		d    DetectorConfig
	}{
		{"face", c.Face},
		{"eyes", c.Eyes},
		{"smile", c.Smile},
	}
	for _, section := range sections {
		name, d := section.name, section.d
		if d.Classifier == "" {
			errs = append(errs, fmt.Errorf("%s: classifier is required", name))
		}
		if _, err := d.Params(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Report.IntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("report: interval_seconds must not be negative, got %d", c.Report.IntervalSeconds))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height))
	}

	return errors.Join(errs...)
}

// Params converts the section into detector parameters
func (d DetectorConfig) Params() (detect.Params, error) {
	minSize, err := toPoint(d.MinSize)
	if err != nil {
		return detect.Params{}, fmt.Errorf("min_size: %w", err)
	}
	maxSize, err := toPoint(d.MaxSize)
	if err != nil {
		return detect.Params{}, fmt.Errorf("max_size: %w", err)
	}

	p := detect.Params{
		ScaleFactor:  d.ScaleFactor,
		MinNeighbors: d.MinNeighbors,
		MinSize:      minSize,
		MaxSize:      maxSize,
	}
	return p, p.Validate()
}

// Interval is the time between capture ticks
func (c Config) Interval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

// ReportInterval is zero when periodic reporting is disabled
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.Report.IntervalSeconds) * time.Second
}

// PigoOptions returns the pigo knobs with the configured quality threshold
func (c Config) PigoOptions() detect.PigoOptions {
	opts := detect.DefaultPigoOptions()
	opts.MinQuality = c.Cascades.PigoQuality
	return opts
}

func toPoint(size []int) (image.Point, error) {
	switch len(size) {
	case 0:
		return image.Point{}, nil
	case 2:
		return image.Pt(size[0], size[1]), nil
	default:
		return image.Point{}, fmt.Errorf("expected [width, height], got %v", size)
	}
}
