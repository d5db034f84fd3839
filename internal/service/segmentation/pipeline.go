// Package segmentation estimates the drivable road area in the background,
// decoupled from the drive loop.
package segmentation

import (
	"fmt"
	"image"

	"lanepilot/internal/config"
	"lanepilot/internal/service/vision"

	"gocv.io/x/gocv"
)

// roiFraction is the share of bottom rows kept for segmentation.
const roiFraction = 0.8

// Segmenter runs one road segmentation cycle. It is not safe for concurrent use.
type Segmenter struct {
	width       int
	height      int
	sensitivity float32
	minArea     float64
	debug       bool

	kernel     gocv.Mat
	kernelCut  gocv.Mat
	blurKernel image.Point
}

func NewSegmenter(cfg *config.Config) *Segmenter {
	return &Segmenter{
		width:       cfg.SegmentationWidth,
		height:      cfg.SegmentationHeight,
		sensitivity: float32(cfg.SegmentationSensitivity),
		minArea:     cfg.SegmentationMinArea,
		debug:       cfg.SegmentationDebug,
		kernel:      vision.NewKernel(3),
		kernelCut:   vision.NewKernel(9),
		blurKernel:  image.Pt(5, 5),
	}
}

func (s *Segmenter) Close() {
	s.kernel.Close()
	s.kernelCut.Close()
}

// Segment returns the area of the largest road region and, in debug mode, a
// full-height mask with that region filled. The mask is nil otherwise.
func (s *Segmenter) Segment(frame *gocv.Mat) (float64, *gocv.Mat, error) {
	if err := vision.CheckColorFrame(frame); err != nil {
		return 0, nil, err
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(*frame, &resized, image.Pt(s.width, s.height), 0, 0, gocv.InterpolationLinear)

	roiHeight := int(float64(s.height) * roiFraction)
	top := s.height - roiHeight
	roi := resized.Region(image.Rect(0, top, s.width, s.height))
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray); err != nil {
		return 0, nil, fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}
	gocv.GaussianBlur(gray, &gray, s.blurKernel, 0, 0, gocv.BorderDefault)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.Threshold(gray, &lines, s.sensitivity, 255, gocv.ThresholdBinaryInv)
	vision.ErodeDilate(&lines, s.kernel, 1, 2)

	// Seal the top edge so the fill cannot leak out of the ROI.
	gocv.Line(&lines, image.Pt(0, 0), image.Pt(s.width, 0), vision.White, 2)

	filled := lines.Clone()
	defer filled.Close()
	seed := image.Pt(filled.Cols()/2, filled.Rows()-1)
	if filled.GetUCharAt(seed.Y, seed.X) == 0 {
		if err := floodFill(&filled, seed, 255); err != nil {
			return 0, nil, err
		}
	}

	road := gocv.NewMat()
	defer road.Close()
	gocv.BitwiseXor(filled, lines, &road)
	vision.ErodeDilate(&road, s.kernelCut, 2, 0)

	contours, index, area := vision.LargestContour(road)
	defer contours.Close()

	if index < 0 || area <= s.minArea {
		area = 0
	}
	if !s.debug {
		return area, nil, nil
	}

	mask := gocv.NewMatWithSize(s.height, s.width, gocv.MatTypeCV8U)
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	if area > 0 {
		part := mask.Region(image.Rect(0, top, s.width, s.height))
		gocv.DrawContours(&part, contours, index, vision.White, -1)
		part.Close()
	}
	return area, &mask, nil
}

// floodFill sets the 4-connected region of pixels equal to the seed value to
// value. mask must be a continuous single-channel 8-bit Mat.
func floodFill(mask *gocv.Mat, seed image.Point, value uint8) error {
	rows, cols := mask.Rows(), mask.Cols()
	data, err := mask.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("failed to access fill mask: %w", err)
	}
	if len(data) < rows*cols {
		return fmt.Errorf("fill mask has %d bytes, expected %d", len(data), rows*cols)
	}

	start := seed.Y*cols + seed.X
	target := data[start]
	if target == value {
		return nil
	}

	dx := [4]int{1, -1, 0, 0}
	dy := [4]int{0, 0, 1, -1}

	queue := []image.Point{seed}
	data[start] = value
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for d := 0; d < 4; d++ {
			nx, ny := p.X+dx[d], p.Y+dy[d]
			if nx < 0 || nx >= cols || ny < 0 || ny >= rows {
				continue
			}
			i := ny*cols + nx
			if data[i] != target {
				continue
			}
			data[i] = value
			queue = append(queue, image.Pt(nx, ny))
		}
	}
	return nil
}
