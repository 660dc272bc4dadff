// Pure-Go pixel intensity comparison (pigo) face backend
package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// PigoOptions holds the pigo-specific knobs that have no OpenCV equivalent.
type PigoOptions struct {
	ShiftFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultPigoOptions mirrors the values used with the stock facefinder cascade.
func DefaultPigoOptions() PigoOptions {
	return PigoOptions{
		ShiftFactor:  0.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// Pigo detects faces with a pigo cascade. MinNeighbors is not used; weak
// detections are filtered by MinQuality after IoU clustering instead.
type Pigo struct {
	path       string
	params     Params
	opts       PigoOptions
	classifier *pigo.Pigo
}

// NewPigo unpacks the binary cascade at path. A missing or corrupt file
// yields a *ModelLoadError.
func NewPigo(path string, params Params, opts PigoOptions) (*Pigo, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("pigo cascade: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Name: "pigo", Path: path, Err: err}
	}

	classifier, err := unpack(data)
	if err != nil {
		return nil, &ModelLoadError{Name: "pigo", Path: path, Err: err}
	}

	return &Pigo{
		path:       path,
		params:     params,
		opts:       opts,
		classifier: classifier,
	}, nil
}

// unpack guards against truncated files; pigo indexes the buffer without bounds checks.
func unpack(data []byte) (classifier *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			classifier, err = nil, fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(data)
}

// Detect follows the same coordinate contract as Cascade.Detect.
func (p *Pigo) Detect(img gocv.Mat, area image.Rectangle) []image.Rectangle {
	if img.Empty() {
		return nil
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	area = searchArea(bounds, area)
	if area.Empty() {
		return nil
	}

	// Region views are not continuous; pigo needs a packed single channel buffer.
	region := img.Region(area)
	gray := region.Clone()
	region.Close()
	defer gray.Close()

	if gray.Channels() == 3 {
		gocv.CvtColor(gray, &gray, gocv.ColorBGRToGray)
	}

	rows, cols := gray.Rows(), gray.Cols()
	maxSize := p.params.MaxSize.X
	if maxSize == 0 {
		maxSize = max(rows, cols)
	}

	dets := p.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     p.params.MinSize.X,
		MaxSize:     maxSize,
		ShiftFactor: p.opts.ShiftFactor,
		ScaleFactor: p.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.opts.IoUThreshold)

	local := image.Rect(0, 0, cols, rows)
	rects := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < p.opts.MinQuality {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half).Intersect(local)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

// Close is a no-op; pigo holds no native resources.
func (p *Pigo) Close() error {
	return nil
}
