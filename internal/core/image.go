// Frame validation and detection-input normalization
package core

import (
	"fmt"

	"gocv.io/x/gocv"
)

// maxDimension guards against absurd frames from misbehaving capture drivers.
const maxDimension = 16384

// ValidateImage checks a frame is usable by the pipeline: non-empty, sane
// dimensions, greyscale or 3-channel color.
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels != 1 && channels != 3 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	return nil
}

// ToGrayscale returns a new histogram-equalized greyscale copy of frame.
// The caller owns the result. frame is never modified.
func ToGrayscale(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()

	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	gocv.EqualizeHist(gray, &gray)

	return gray
}
