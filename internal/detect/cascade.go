// OpenCV Haar cascade backend
package detect

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

const (
	cascadeFilePrefix    = "haarcascade_"
	cascadeFileExtension = ".xml"

	// OpenCV CASCADE_SCALE_IMAGE | CASCADE_FIND_BIGGEST_OBJECT
	cascadeScaleImage        = 2
	cascadeFindBiggestObject = 4
	multiScaleFlags          = cascadeScaleImage | cascadeFindBiggestObject
)

// Cascade wraps one trained OpenCV cascade classifier with fixed tuning.
type Cascade struct {
	name       string
	params     Params
	classifier gocv.CascadeClassifier
}

// CascadePath resolves a classifier name such as "frontalface_alt" inside dir.
func CascadePath(dir, name string) string {
	return filepath.Join(dir, cascadeFilePrefix+name+cascadeFileExtension)
}

// NewCascade loads the named classifier from dir. A missing or unreadable model
// yields a *ModelLoadError.
func NewCascade(dir, name string, params Params) (*Cascade, error) {
	path := CascadePath(dir, name)

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("classifier %q: %w", name, err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &ModelLoadError{Name: name, Path: path, Err: err}
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, &ModelLoadError{Name: name, Path: path, Err: errors.New("opencv rejected the model file")}
	}

	return &Cascade{
		name:       name,
		params:     params,
		classifier: classifier,
	}, nil
}

// Name returns the classifier identifier
func (c *Cascade) Name() string {
	return c.name
}

// Detect scans img, restricted to area when area is not empty. Returned
// rectangles are relative to area.Min, not to the full image.
func (c *Cascade) Detect(img gocv.Mat, area image.Rectangle) []image.Rectangle {
	if img.Empty() {
		return nil
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	area = searchArea(bounds, area)
	if area.Empty() {
		return nil
	}

	frame := img
	if area != bounds {
		frame = img.Region(area)
		defer frame.Close()
	}

	return c.classifier.DetectMultiScaleWithParams(
		frame,
		c.params.ScaleFactor,
		c.params.MinNeighbors,
		multiScaleFlags,
		c.params.MinSize,
		c.params.MaxSize,
	)
}

// Close releases the native classifier
func (c *Cascade) Close() error {
	return c.classifier.Close()
}
