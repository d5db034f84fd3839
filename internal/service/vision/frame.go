// Package vision holds the gocv primitives shared by the lane follower, the
// route manager and the road segmentation worker.
package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// White is the foreground value for single-channel masks. gocv maps the
// color's B component onto channel 0.
var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Absent reports whether a frame is missing for this tick.
func Absent(frame *gocv.Mat) bool {
	return frame == nil || frame.Empty()
}

// CheckColorFrame verifies that a frame is a 3-channel raster.
func CheckColorFrame(frame *gocv.Mat) error {
	if Absent(frame) {
		return fmt.Errorf("frame is empty")
	}
	if frame.Channels() != 3 {
		return fmt.Errorf("expected 3-channel frame, got %d channels", frame.Channels())
	}
	return nil
}

// RowBand clamps the half-open row interval [top, bottom) to the frame
// height and returns the full-width rectangle covering it.
func RowBand(frame *gocv.Mat, top, bottom int) (image.Rectangle, error) {
	rows := frame.Rows()
	if top < 0 {
		top = 0
	}
	if bottom > rows {
		bottom = rows
	}
	if top >= bottom {
		return image.Rectangle{}, fmt.Errorf("row band [%d,%d) outside frame height %d", top, bottom, rows)
	}
	return image.Rect(0, top, frame.Cols(), bottom), nil
}

// NewKernel returns a square rectangular structuring element.
func NewKernel(size int) gocv.Mat {
	return gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
}

// ErodeDilate erodes the mask in place `erode` times and then dilates it
// `dilate` times.
func ErodeDilate(mask *gocv.Mat, kernel gocv.Mat, erode, dilate int) {
	for i := 0; i < erode; i++ {
		gocv.Erode(*mask, mask, kernel)
	}
	for i := 0; i < dilate; i++ {
		gocv.Dilate(*mask, mask, kernel)
	}
}

// LargestContour finds the external contour with the biggest area. index is
// -1 when the mask has no contour. The caller closes the returned vector.
func LargestContour(mask gocv.Mat) (contours gocv.PointsVector, index int, area float64) {
	contours = gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	index = -1
	for i := 0; i < contours.Size(); i++ {
		a := gocv.ContourArea(contours.At(i))
		if index == -1 || a > area {
			index = i
			area = a
		}
	}
	return contours, index, area
}

// Guard runs a landmark detector and converts a panic inside it into an
// error so one bad frame cannot take down the drive loop.
func Guard(name string, detect func() (bool, error)) (detected bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			detected = false
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return detect()
}
