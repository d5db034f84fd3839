package vision

import (
	"fmt"
	"image"

	"lanepilot/internal/config"

	"gocv.io/x/gocv"
)

// Observation is the left/right lane-edge reading of one scan strip.
type Observation struct {
	CenterX    int
	LeftFound  bool
	RightFound bool
	LeftX      int
	RightX     int
	LeftConf   int
	RightConf  int
}

// ScanlineExtractor turns a horizontal strip of a frame into an Observation.
type ScanlineExtractor struct {
	scanHeight    int
	maskLeft      int
	maskRight     int
	threshold     float32
	confidence    int
	defaultCenter int
	kernel        gocv.Mat
}

// NewScanlineExtractor creates an extractor from the scan settings in cfg.
func NewScanlineExtractor(cfg *config.Config) *ScanlineExtractor {
	return &ScanlineExtractor{
		scanHeight:    cfg.ScanHeight,
		maskLeft:      cfg.ROIMaskLeft,
		maskRight:     cfg.ROIMaskRight,
		threshold:     float32(cfg.GrayscaleThreshold),
		confidence:    cfg.ConfidenceThreshold,
		defaultCenter: cfg.CarCenterPixel,
		kernel:        NewKernel(3),
	}
}

// Close releases the morphology kernel.
func (e *ScanlineExtractor) Close() {
	e.kernel.Close()
}

// Extract analyses the strip starting at row y. laneWidth is the current
// lane width estimate used when only one edge is visible. The returned mask
// is owned by the caller.
func (e *ScanlineExtractor) Extract(frame *gocv.Mat, y int, laneWidth int) (Observation, gocv.Mat, error) {
	if err := CheckColorFrame(frame); err != nil {
		return Observation{}, gocv.NewMat(), err
	}

	band, err := RowBand(frame, y, y+e.scanHeight)
	if err != nil {
		return Observation{}, gocv.NewMat(), err
	}

	roi := frame.Region(band)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray); err != nil {
		return Observation{}, gocv.NewMat(), fmt.Errorf("failed to convert strip to grayscale: %w", err)
	}
	e.applyWallMask(&gray)

	mask := gocv.NewMat()
	gocv.Threshold(gray, &mask, e.threshold, 255, gocv.ThresholdBinaryInv)
	ErodeDilate(&mask, e.kernel, 1, 2)

	hist := columnHistogram(mask)
	mid := len(hist) / 2

	leftX, leftConf := argMax(hist[:mid])
	rightX, rightConf := argMax(hist[mid:])
	rightX += mid

	obs := Observation{
		LeftX:      leftX,
		RightX:     rightX,
		LeftConf:   leftConf,
		RightConf:  rightConf,
		LeftFound:  leftConf > e.confidence,
		RightFound: rightConf > e.confidence,
	}
	obs.CenterX = e.resolveCenter(obs, laneWidth)

	return obs, mask, nil
}

// resolveCenter applies the both / left-only / right-only / default policy.
func (e *ScanlineExtractor) resolveCenter(obs Observation, laneWidth int) int {
	switch {
	case obs.LeftFound && obs.RightFound:
		return (obs.LeftX + obs.RightX) / 2
	case obs.LeftFound:
		return obs.LeftX + laneWidth/2
	case obs.RightFound:
		return obs.RightX - laneWidth/2
	default:
		return e.defaultCenter
	}
}

// applyWallMask forces the configured side margins to white so they never
// register as dark markings.
func (e *ScanlineExtractor) applyWallMask(gray *gocv.Mat) {
	w := gray.Cols()
	left := clampInt(e.maskLeft, 0, w)
	right := clampInt(e.maskRight, 0, w)

	if left > 0 {
		fillColumns(gray, 0, left)
	}
	if right > 0 {
		fillColumns(gray, w-right, w)
	}
}

func fillColumns(gray *gocv.Mat, from, to int) {
	region := gray.Region(image.Rect(from, 0, to, gray.Rows()))
	defer region.Close()
	region.SetTo(gocv.NewScalar(255, 0, 0, 0))
}

// columnHistogram sums mask values per column. Continuous masks are read
// through their backing slice; others fall back to per-pixel access.
func columnHistogram(mask gocv.Mat) []int {
	rows, cols := mask.Rows(), mask.Cols()
	hist := make([]int, cols)

	data, err := mask.DataPtrUint8()
	if err != nil || len(data) < rows*cols {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				hist[x] += int(mask.GetUCharAt(y, x))
			}
		}
		return hist
	}

	for y := 0; y < rows; y++ {
		for x, v := range data[y*cols : (y+1)*cols] {
			hist[x] += int(v)
		}
	}
	return hist
}

// argMax returns the first index holding the maximum value.
func argMax(values []int) (int, int) {
	best, bestVal := 0, 0
	for i, v := range values {
		if i == 0 || v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
