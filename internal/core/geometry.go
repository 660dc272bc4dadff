package core

import "image"

// TopHalf covers the full width of r and floor(height/2) rows from its top.
func TopHalf(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+r.Dy()/2)
}

// BottomHalf covers the rows of r not in TopHalf, so an odd row goes here.
func BottomHalf(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X, r.Min.Y+r.Dy()/2, r.Max.X, r.Max.Y)
}

// toFrame translates rectangles found inside a sub-region back to full-frame coordinates.
func toFrame(rects []image.Rectangle, region image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, len(rects))
	for i, r := range rects {
		out[i] = r.Add(region.Min)
	}
	return out
}
