package core

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Colors are given as RGBA; gocv writes them to BGR frames in the right order.
var (
	FaceColor  = color.RGBA{R: 255, A: 255}
	SmileColor = color.RGBA{G: 255, A: 255}
	EyeColor   = color.RGBA{G: 255, B: 255, A: 255}
)

const (
	featureThickness = 2
	faceThickness    = 3

	labelFont      = gocv.FontHersheyDuplex
	labelScale     = 1.2
	labelMargin    = 16
	labelThickness = 2
)

func moodColor(m Mood) color.RGBA {
	if m == Smiling {
		return SmileColor
	}
	return FaceColor
}

func drawRects(img *gocv.Mat, rects []image.Rectangle, c color.RGBA, thickness int) {
	for _, r := range rects {
		gocv.Rectangle(img, r, c, thickness)
	}
}

// drawLabel writes text inside the bottom-left corner of r, clear of its border.
func drawLabel(img *gocv.Mat, text string, r image.Rectangle, c color.RGBA) {
	pos := image.Pt(r.Min.X+labelMargin, r.Max.Y-labelMargin)
	gocv.PutText(img, text, pos, labelFont, labelScale, c, labelThickness)
}
