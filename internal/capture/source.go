// Frame sources: capture devices and still images
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"face-mood-detector/internal/io"
)

// FrameSource yields raw frames. Read fills dst and reports false when no
// frame is available this time; that is not an error.
type FrameSource interface {
	Open() error
	IsOpen() bool
	Read(dst *gocv.Mat) bool
	Close() error
	String() string
}

// Device reads from an OpenCV video capture: a camera index, a stream URL or a video file.
type Device struct {
	mu      sync.Mutex
	target  string
	capture *gocv.VideoCapture
}

func NewDevice(target string) *Device {
	return &Device{target: target}
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}

	// Numeric targets are camera indexes, everything else is handed to OpenCV as a path or URL.
	var device interface{} = d.target
	if id, err := strconv.Atoi(d.target); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return err
	}
	if !capture.IsOpened() {
		capture.Close()
		return errors.New("device did not open")
	}

	d.capture = capture
	return nil
}

func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil && d.capture.IsOpened()
}

func (d *Device) Read(dst *gocv.Mat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return false
	}
	return d.capture.Read(dst)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	return err
}

func (d *Device) String() string {
	return "device " + d.target
}

// StillImage serves the same image file on every read. Useful without a camera.
type StillImage struct {
	mu     sync.Mutex
	path   string
	loader *io.ImageLoader
	frame  gocv.Mat
	open   bool
}

func NewStillImage(path string, loader *io.ImageLoader) *StillImage {
	return &StillImage{
		path:   path,
		loader: loader,
		frame:  gocv.NewMat(),
	}
}

func (s *StillImage) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	frame, err := s.loader.LoadImage(s.path)
	if err != nil {
		frame.Close()
		return fmt.Errorf("still image: %w", err)
	}

	s.frame.Close()
	s.frame = frame
	s.open = true
	return nil
}

func (s *StillImage) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *StillImage) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return false
	}
	s.frame.CopyTo(dst)
	return true
}

func (s *StillImage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	err := s.frame.Close()
	s.frame = gocv.NewMat()
	return err
}

func (s *StillImage) String() string {
	return "image " + s.path
}
