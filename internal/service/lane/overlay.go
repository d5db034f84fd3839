package lane

import (
	"fmt"
	"image"
	"image/color"

	"lanepilot/internal/service/vision"

	"gocv.io/x/gocv"
)

var (
	colorGreen  = color.RGBA{G: 255, A: 255}
	colorRed    = color.RGBA{R: 255, A: 255}
	colorBlue   = color.RGBA{B: 255, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, A: 255}
	colorCyan   = color.RGBA{G: 255, B: 255, A: 255}
	colorOrange = color.RGBA{R: 255, G: 200, A: 255}
	colorGray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBlack  = color.RGBA{A: 255}
)

// renderOverlay draws the scan bands, the detected edges, the predicted
// direction and a text HUD on a copy of frame. The caller owns the returned Mat.
func (f *Follower) renderOverlay(frame *gocv.Mat, res Result, near, far vision.Observation) gocv.Mat {
	out := frame.Clone()
	w := out.Cols()

	// Masked margins are drawn at half brightness.
	if f.maskLeft > 0 {
		dimColumns(&out, 0, f.maskLeft)
	}
	if f.maskRight > 0 {
		dimColumns(&out, w-f.maskRight, w)
	}

	yNear := f.scanYNear + f.scanHeight/2
	yFar := f.scanYFar + f.scanHeight/2

	f.drawBand(&out, f.scanYNear, colorGreen)
	f.drawBand(&out, f.scanYFar, colorCyan)
	if near.LeftFound {
		gocv.Line(&out, image.Pt(near.LeftX, yNear-5), image.Pt(near.LeftX, yNear+5), colorBlue, 2)
	}
	if near.RightFound {
		gocv.Line(&out, image.Pt(near.RightX, yNear-5), image.Pt(near.RightX, yNear+5), colorRed, 2)
	}
	gocv.Circle(&out, image.Pt(res.Center, yNear), 3, colorYellow, -1)

	label, labelColor := f.prediction(res.Mode)
	target := far.CenterX
	if f.turns.ForceStraight {
		target = res.Center
	}
	gocv.ArrowedLine(&out, image.Pt(res.Center, yNear), image.Pt(target, yFar), labelColor, 2)

	f.drawHUD(&out, res, label)

	gocv.Line(&out, image.Pt(f.carCenter, yNear-5), image.Pt(f.carCenter, yNear+5), colorGray, 1)
	return out
}

func dimColumns(out *gocv.Mat, from, to int) {
	from = clamp(from, 0, out.Cols())
	to = clamp(to, 0, out.Cols())
	if to <= from {
		return
	}
	region := out.Region(image.Rect(from, 0, to, out.Rows()))
	region.MultiplyFloat(0.5)
	region.Close()
}

func (f *Follower) drawBand(out *gocv.Mat, y int, bandColor color.RGBA) {
	gocv.Rectangle(out, image.Rect(0, y, out.Cols(), y+f.scanHeight), bandColor, 1)
}

// prediction labels the current controller mode for the HUD and arrow.
func (f *Follower) prediction(m Mode) (string, color.RGBA) {
	switch {
	case m == ModeSkip:
		return "^ SKIP", colorRed
	case m == ModeCommit:
		return "< TURN", colorOrange
	case f.turns.InTurn:
		return "Curve...", colorYellow
	default:
		return "^ STR", colorGreen
	}
}

// drawHUD blends a light panel into the top of the frame and prints the tick
// summary on it.
func (f *Follower) drawHUD(out *gocv.Mat, res Result, label string) {
	w := out.Cols()
	const panelHeight = 35

	panel := out.Clone()
	defer panel.Close()
	gocv.Rectangle(&panel, image.Rect(0, 0, w, panelHeight), colorWhite, -1)
	gocv.AddWeighted(panel, 0.7, *out, 0.3, 0, out)

	header := fmt.Sprintf("%s | Cnt:%d", label, f.turns.LeftTurnCounter)
	gocv.PutText(out, header, image.Pt(5, 12), gocv.FontHersheySimplex, 0.35, colorBlack, 1)
	gocv.PutText(out, fmt.Sprintf("St:%.2f Th:%.2f", res.Steering, res.Throttle), image.Pt(5, 28), gocv.FontHersheySimplex, 0.35, colorBlack, 1)

	status := res.Status.String()
	size := gocv.GetTextSize(status, gocv.FontHersheySimplex, 0.35, 1)
	gocv.PutText(out, status, image.Pt(w-size.X-5, 12), gocv.FontHersheySimplex, 0.35, colorBlack, 1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
