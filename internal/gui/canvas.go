// internal/gui/canvas.go
// Live view: receives annotated frames from the display bridge
package gui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// CanvasSink shows frames on a fyne canvas image. Show may be called from any
// goroutine; the swap itself happens on the fyne thread.
type CanvasSink struct {
	view *canvas.Image
}

func NewCanvasSink(minSize fyne.Size) *CanvasSink {
	placeholder := image.NewRGBA(image.Rect(0, 0, 1, 1))
	placeholder.Set(0, 0, color.Black)

	view := canvas.NewImageFromImage(placeholder)
	view.FillMode = canvas.ImageFillContain
	view.ScaleMode = canvas.ImageScaleFastest
	view.SetMinSize(minSize)

	return &CanvasSink{view: view}
}

func (s *CanvasSink) Show(img image.Image) {
	fyne.Do(func() {
		s.view.Image = img
		s.view.Refresh()
	})
}

// Image returns the image currently on screen. Call from the fyne thread.
func (s *CanvasSink) Image() image.Image {
	return s.view.Image
}

func (s *CanvasSink) CanvasObject() fyne.CanvasObject {
	return s.view
}
