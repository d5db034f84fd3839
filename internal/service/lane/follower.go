// Package lane implements the dual-scanline lane follower: edge detection at
// a near and a far row, debounced left-turn counting, PID steering and a
// ramped throttle.
package lane

import (
	"fmt"
	"math"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/control"
	"lanepilot/internal/logger"
	"lanepilot/internal/service/vision"

	"gocv.io/x/gocv"
)

// Status describes which lane edges backed this tick's error.
type Status int

const (
	StatusOK Status = iota
	StatusNoRight
	StatusNoLeft
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoRight:
		return "NO R"
	case StatusNoLeft:
		return "NO L"
	default:
		return "LOST"
	}
}

// Result is the output of one follower tick.
type Result struct {
	Steering float64
	Throttle float64
	Error    float64
	Center   int
	Shift    int
	Curve    Curve
	Status   Status
	Mode     Mode
	Lost     bool
	Event    TurnEvent

	// Display is nil when the frame was absent, the input frame when overlay
	// rendering is off, and a freshly rendered copy otherwise.
	Display *gocv.Mat
	owned   bool
}

// Close releases the rendered overlay, if any.
func (r *Result) Close() {
	if r.owned && r.Display != nil {
		r.Display.Close()
		r.Display = nil
		r.owned = false
	}
}

// State is a snapshot of the follower's turn tracking.
type State struct {
	InTurn          bool
	LeftTurnCounter int
	ForceStraight   bool
	CurveFrames     int
	StraightFrames  int
	LaneWidth       float64
	LastError       float64
	LastSteering    float64
}

type Follower struct {
	extractor *vision.ScanlineExtractor
	turns     *TurnTracker
	pid       *control.PID
	throttle  *control.ThrottleRamp
	logger    *logger.Logger

	scanYNear      int
	scanYFar       int
	scanHeight     int
	carCenter      int
	curveThreshold int
	commitLeftGap  int
	laneWidthMin   float64
	laneWidthMax   float64
	brakeThreshold float64
	maskLeft       int
	maskRight      int
	smooth         float64
	dt             float64
	overlay        bool

	laneWidth    float64
	lastError    float64
	lastSteering float64
}

// NewFollower builds a follower from cfg.
func NewFollower(cfg *config.Config, logger *logger.Logger) *Follower {
	scanYFar := cfg.ScanY - cfg.ScanFarOffset
	if scanYFar < 0 {
		scanYFar = 0
	}

	f := &Follower{
		extractor: vision.NewScanlineExtractor(cfg),
		turns: &TurnTracker{
			curveThreshold:    cfg.CurveThreshold,
			enterFrames:       cfg.TurnEnterFrames,
			exitFrames:        cfg.TurnExitFrames,
			skipForceStraight: cfg.SkipForceStraight,
		},
		pid:      control.NewPID(cfg.PIDKp, cfg.PIDKi, cfg.PIDKd, cfg.PIDOutputLimit),
		throttle: control.NewThrottleRamp(cfg.ThrottleMin, cfg.ThrottleMax, cfg.ThrottleStep, cfg.ThrottleInitial),
		logger:   logger,

		scanYNear:      cfg.ScanY,
		scanYFar:       scanYFar,
		scanHeight:     cfg.ScanHeight,
		carCenter:      cfg.CarCenterPixel,
		curveThreshold: cfg.CurveThreshold,
		commitLeftGap:  cfg.CommitLeftGap,
		laneWidthMin:   float64(cfg.LaneWidthMin),
		laneWidthMax:   float64(cfg.LaneWidthMax),
		brakeThreshold: cfg.ThrottleBrakeThreshold,
		maskLeft:       cfg.ROIMaskLeft,
		maskRight:      cfg.ROIMaskRight,
		smooth:         cfg.SteeringSmoothFactor,
		dt:             cfg.TickPeriod().Seconds(),
		overlay:        cfg.OverlayImage,

		laneWidth: float64(cfg.LaneWidthPixels),
	}

	logger.Info("Lane follower initialized: near row %d, far row %d, lane width %d px", f.scanYNear, f.scanYFar, cfg.LaneWidthPixels)
	return f
}

// Close releases gocv resources.
func (f *Follower) Close() {
	f.extractor.Close()
}

// State returns a snapshot of the turn tracking and steering memory.
func (f *Follower) State() State {
	return State{
		InTurn:          f.turns.InTurn,
		LeftTurnCounter: f.turns.LeftTurnCounter,
		ForceStraight:   f.turns.ForceStraight,
		CurveFrames:     f.turns.CurveFrames,
		StraightFrames:  f.turns.StraightFrames,
		LaneWidth:       f.laneWidth,
		LastError:       f.lastError,
		LastSteering:    f.lastSteering,
	}
}

// Step runs one control tick. An absent frame yields zero steering and
// throttle without touching any state.
func (f *Follower) Step(frame *gocv.Mat) (Result, error) {
	if vision.Absent(frame) {
		f.logger.EveryWarning("lane-no-frame", time.Second, "Lane follower: no frame this tick")
		return Result{}, nil
	}

	near, nearMask, err := f.extractor.Extract(frame, f.scanYNear, f.halfWidth()*2)
	if err != nil {
		return Result{}, fmt.Errorf("failed to scan near row: %w", err)
	}
	nearMask.Close()

	far, farMask, err := f.extractor.Extract(frame, f.scanYFar, f.halfWidth()*2)
	if err != nil {
		return Result{}, fmt.Errorf("failed to scan far row: %w", err)
	}
	farMask.Close()

	res := Result{Shift: far.CenterX - near.CenterX}

	res.Curve, res.Event = f.turns.Observe(res.Shift)
	switch res.Event {
	case TurnEntered:
		f.logger.Info(">>> DETECTED LEFT TURN #%d", f.turns.LeftTurnCounter)
	case TurnExited:
		f.logger.Info(">>> EXITED TURN")
	}
	res.Mode = f.turns.Mode()

	res.Center, res.Error, res.Status, res.Lost = f.computeError(res.Mode, near)
	f.lastError = res.Error

	raw := f.pid.Update(res.Error, f.dt)
	res.Steering = f.smooth*raw + (1.0-f.smooth)*f.lastSteering
	f.lastSteering = res.Steering

	sharp := (absInt(res.Shift) > f.curveThreshold || res.Lost) && !f.turns.ForceStraight
	braking := sharp || math.Abs(res.Error) > f.brakeThreshold
	res.Throttle = f.throttle.Update(braking)

	if f.overlay {
		display := f.renderOverlay(frame, res, near, far)
		res.Display = &display
		res.owned = true
	} else {
		res.Display = frame
	}

	return res, nil
}

// computeError returns the lane center, the signed pixel error, the status
// code and whether the lane counts as lost this tick.
func (f *Follower) computeError(mode Mode, obs vision.Observation) (int, float64, Status, bool) {
	if f.turns.ForceStraight {
		return f.carCenter, 0, StatusOK, false
	}

	half := f.halfWidth()
	errorAt := func(center int) float64 { return float64(center - f.carCenter) }

	if obs.LeftFound && obs.RightFound {
		center := (obs.LeftX + obs.RightX) / 2
		f.calibrateWidth(obs.RightX - obs.LeftX)
		return center, errorAt(center), StatusOK, false
	}

	if mode == ModeCommit {
		switch {
		case obs.LeftFound:
			center := 0
			if f.carCenter-obs.LeftX > f.commitLeftGap {
				center = obs.LeftX + half
			}
			return center, errorAt(center), StatusNoRight, true
		case obs.RightFound:
			return 0, errorAt(0), StatusNoLeft, true
		default:
			return 0, errorAt(0), StatusLost, true
		}
	}

	switch {
	case obs.LeftFound:
		center := obs.LeftX + half
		return center, errorAt(center), StatusNoRight, false
	case obs.RightFound:
		center := obs.RightX - half
		return center, errorAt(center), StatusNoLeft, false
	default:
		return obs.CenterX, f.lastError, StatusLost, true
	}
}

// calibrateWidth nudges the lane width estimate toward a plausible
// measurement.
func (f *Follower) calibrateWidth(measured int) {
	w := float64(measured)
	if w > f.laneWidthMin && w < f.laneWidthMax {
		f.laneWidth = 0.95*f.laneWidth + 0.05*w
	}
}

func (f *Follower) halfWidth() int {
	return int(f.laneWidth) / 2
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
