package route

import (
	"fmt"

	"lanepilot/internal/service/vision"

	"gocv.io/x/gocv"
)

// colorRange is an inclusive HSV interval.
type colorRange struct {
	low, high gocv.Scalar
}

func newColorRange(low, high [3]float64) colorRange {
	return colorRange{
		low:  gocv.NewScalar(low[0], low[1], low[2], 0),
		high: gocv.NewScalar(high[0], high[1], high[2], 0),
	}
}

// detectIntersection counts dark pixels inside the intersection band.
func (m *Manager) detectIntersection(frame *gocv.Mat) (bool, error) {
	if err := vision.CheckColorFrame(frame); err != nil {
		return false, err
	}
	band, err := vision.RowBand(frame, m.roiTop, m.roiBottom)
	if err != nil {
		return false, err
	}

	roi := frame.Region(band)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray); err != nil {
		return false, fmt.Errorf("failed to convert intersection band: %w", err)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, m.darkThreshold, 255, gocv.ThresholdBinaryInv)

	return gocv.CountNonZero(mask) > m.pixelTrigger, nil
}

// detectColorLandmark reports whether the union of the given HSV ranges
// contains a blob larger than minArea.
func detectColorLandmark(frame *gocv.Mat, minArea float64, ranges ...colorRange) (bool, error) {
	if err := vision.CheckColorFrame(frame); err != nil {
		return false, err
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV); err != nil {
		return false, fmt.Errorf("failed to convert frame to HSV: %w", err)
	}

	mask := gocv.NewMatWithSize(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))

	part := gocv.NewMat()
	defer part.Close()
	for _, r := range ranges {
		gocv.InRangeWithScalar(hsv, r.low, r.high, &part)
		gocv.BitwiseOr(mask, part, &mask)
	}

	contours, index, area := vision.LargestContour(mask)
	defer contours.Close()

	return index >= 0 && area > minArea, nil
}

func (m *Manager) detectStop(frame *gocv.Mat) (bool, error) {
	return detectColorLandmark(frame, m.stopMinArea, m.stopRanges...)
}

func (m *Manager) detectRightTurnSignal(frame *gocv.Mat) (bool, error) {
	return detectColorLandmark(frame, m.rightMinArea, m.rightRange)
}
