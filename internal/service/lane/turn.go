package lane

// Mode selects the error computation used by the follower.
type Mode int

const (
	// ModeStraight is the standard lane-centering logic.
	ModeStraight Mode = iota
	// ModeSkip is active during the first confirmed left turn, a partial
	// branch on the reference track that the car drives past.
	ModeSkip
	// ModeCommit is active during the second confirmed left turn and biases
	// steering hard toward the missing edge.
	ModeCommit
)

func (m Mode) String() string {
	switch m {
	case ModeStraight:
		return "STRAIGHT"
	case ModeSkip:
		return "SKIP LEFT #1"
	case ModeCommit:
		return "TAKE LEFT #2"
	default:
		return "UNKNOWN"
	}
}

// Curve is the instantaneous curvature class of one tick.
type Curve int

const (
	CurveStraight Curve = iota
	CurveLeft
	CurveRight
)

func (c Curve) String() string {
	switch c {
	case CurveLeft:
		return "LEFT"
	case CurveRight:
		return "RIGHT"
	default:
		return "STRAIGHT"
	}
}

// TurnEvent reports a debounced turn transition.
type TurnEvent int

const (
	TurnNone TurnEvent = iota
	TurnEntered
	TurnExited
)

// TurnTracker debounces the lane shift into confirmed left turns. Only left
// curves are counted; a right curve just resets the curve run.
type TurnTracker struct {
	curveThreshold    int
	enterFrames       int
	exitFrames        int
	skipForceStraight bool

	CurveFrames     int
	StraightFrames  int
	InTurn          bool
	LeftTurnCounter int
	ForceStraight   bool
}

// Classify maps a lane shift onto a curve class.
func (t *TurnTracker) Classify(shift int) Curve {
	switch {
	case shift < -t.curveThreshold:
		return CurveLeft
	case shift > t.curveThreshold:
		return CurveRight
	default:
		return CurveStraight
	}
}

// Observe updates the counters with one tick's lane shift.
func (t *TurnTracker) Observe(shift int) (Curve, TurnEvent) {
	curve := t.Classify(shift)

	switch curve {
	case CurveLeft:
		t.CurveFrames++
		t.StraightFrames = 0
	case CurveStraight:
		t.StraightFrames++
		t.CurveFrames = 0
	case CurveRight:
		t.CurveFrames = 0
	}

	if !t.InTurn && t.CurveFrames > t.enterFrames {
		t.LeftTurnCounter++
		t.InTurn = true
		if t.skipForceStraight && t.Mode() == ModeSkip {
			t.ForceStraight = true
		}
		return curve, TurnEntered
	}

	if t.InTurn && t.StraightFrames > t.exitFrames {
		t.InTurn = false
		t.ForceStraight = false
		return curve, TurnExited
	}

	return curve, TurnNone
}

// Mode derives the controller mode from the turn state.
func (t *TurnTracker) Mode() Mode {
	if !t.InTurn {
		return ModeStraight
	}
	switch t.LeftTurnCounter {
	case 1:
		return ModeSkip
	case 2:
		return ModeCommit
	default:
		return ModeStraight
	}
}
