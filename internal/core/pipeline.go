// internal/core/pipeline.go
// Frame pipeline: face detection, eye and smile detection on face halves, mood annotation
package core

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Detector finds candidate rectangles in img. An empty area searches the whole
// image; otherwise only area is scanned and results are relative to area.Min.
type Detector interface {
	Detect(img gocv.Mat, area image.Rectangle) []image.Rectangle
}

// Face is one face candidate of a single frame. All rectangles are in
// full-frame coordinates.
type Face struct {
	Rect   image.Rectangle
	Eyes   []image.Rectangle
	Smiles []image.Rectangle
	Mood   Mood
}

// Result describes what Process found and drew on a frame.
type Result struct {
	Faces []Face
}

// Smiling counts the faces classified as smiling
func (r Result) Smiling() int {
	n := 0
	for _, f := range r.Faces {
		if f.Mood == Smiling {
			n++
		}
	}
	return n
}

// Pipeline runs the face, eyes and smile detectors over one frame at a time.
// It keeps no state between frames.
type Pipeline struct {
	face   Detector
	eyes   Detector
	smile  Detector
	logger logrus.FieldLogger
}

func New(face, eyes, smile Detector, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		face:   face,
		eyes:   eyes,
		smile:  smile,
		logger: logger,
	}
}

// Process detects faces in frame and annotates frame in place. Detection runs
// on an equalized greyscale copy; frame keeps its original color layout. A
// frame without faces is left untouched.
func (p *Pipeline) Process(frame gocv.Mat) (Result, error) {
	if err := ValidateImage(frame); err != nil {
		return Result{}, fmt.Errorf("invalid frame: %w", err)
	}

	gray := ToGrayscale(frame)
	defer gray.Close()

	faces := p.face.Detect(gray, image.Rectangle{})
	result := Result{Faces: make([]Face, 0, len(faces))}

	for _, rect := range faces {
		result.Faces = append(result.Faces, p.processFace(&frame, gray, rect))
	}

	if len(faces) > 0 {
		p.logger.WithFields(logrus.Fields{
			"faces":   len(faces),
			"smiling": result.Smiling(),
		}).Debug("PIPELINE: Frame annotated")
	}

	return result, nil
}

func (p *Pipeline) processFace(frame *gocv.Mat, gray gocv.Mat, rect image.Rectangle) Face {
	top := TopHalf(rect)
	bottom := BottomHalf(rect)

	// An empty area would widen the search to the whole frame.
	var eyes, smiles []image.Rectangle
	if !top.Empty() {
		eyes = p.eyes.Detect(gray, top)

		// Eye rectangles are local to the top half; draw them on the matching view.
		topView := frame.Region(top)
		drawRects(&topView, eyes, EyeColor, featureThickness)
		topView.Close()
	}
	if !bottom.Empty() {
		smiles = p.smile.Detect(gray, bottom)
	}

	face := Face{
		Rect:   rect,
		Eyes:   toFrame(eyes, top),
		Smiles: toFrame(smiles, bottom),
		Mood:   moodFromSmiles(len(smiles)),
	}

	c := moodColor(face.Mood)
	drawRects(frame, []image.Rectangle{rect}, c, faceThickness)
	drawLabel(frame, face.Mood.String(), rect, c)

	return face
}
