package lane

import "testing"

func newTracker(skipForceStraight bool) *TurnTracker {
	return &TurnTracker{
		curveThreshold:    25,
		enterFrames:       3,
		exitFrames:        10,
		skipForceStraight: skipForceStraight,
	}
}

func TestClassify(t *testing.T) {
	tr := newTracker(false)

	tests := []struct {
		shift int
		curve Curve
	}{
		{0, CurveStraight},
		{-25, CurveStraight},
		{25, CurveStraight},
		{-26, CurveLeft},
		{26, CurveRight},
	}

	for _, tt := range tests {
		if got := tr.Classify(tt.shift); got != tt.curve {
			t.Errorf("Classify(%d) = %v, expected %v", tt.shift, got, tt.curve)
		}
	}
}

func TestObserve_AlternatingNeverEnters(t *testing.T) {
	tr := newTracker(false)

	for i := 0; i < 100; i++ {
		shift := 0
		if i%2 == 0 {
			shift = -40
		}
		if _, ev := tr.Observe(shift); ev != TurnNone {
			t.Fatalf("tick %d: unexpected event %v", i, ev)
		}
	}
	if tr.LeftTurnCounter != 0 || tr.InTurn {
		t.Errorf("Expected no turn, got counter %d inTurn %v", tr.LeftTurnCounter, tr.InTurn)
	}
}

func TestObserve_RightCurvesNeverCount(t *testing.T) {
	tr := newTracker(false)

	for i := 0; i < 4; i++ {
		tr.Observe(40)
	}
	if tr.InTurn || tr.LeftTurnCounter != 0 {
		t.Errorf("Right curves must not enter a turn")
	}

	// A right tick also breaks a left run.
	tr.Observe(-40)
	tr.Observe(-40)
	tr.Observe(-40)
	tr.Observe(40)
	if _, ev := tr.Observe(-40); ev != TurnNone {
		t.Errorf("Expected left run reset by right curve")
	}
}

func TestObserve_EnterAndExit(t *testing.T) {
	tr := newTracker(false)

	for i := 0; i < 3; i++ {
		if _, ev := tr.Observe(-40); ev != TurnNone {
			t.Fatalf("tick %d: entered too early", i)
		}
	}
	if _, ev := tr.Observe(-40); ev != TurnEntered {
		t.Fatalf("Expected turn entered on 4th left tick")
	}
	if tr.Mode() != ModeSkip {
		t.Errorf("Expected skip mode, got %v", tr.Mode())
	}
	if tr.ForceStraight {
		t.Errorf("Force straight must stay off unless configured")
	}

	// Still left: no second count while in the turn.
	for i := 0; i < 10; i++ {
		tr.Observe(-40)
	}
	if tr.LeftTurnCounter != 1 {
		t.Errorf("Expected one turn counted, got %d", tr.LeftTurnCounter)
	}

	for i := 0; i < 10; i++ {
		if _, ev := tr.Observe(0); ev != TurnNone {
			t.Fatalf("straight tick %d: exited too early", i)
		}
	}
	if _, ev := tr.Observe(0); ev != TurnExited {
		t.Fatalf("Expected exit on 11th straight tick")
	}
	if tr.Mode() != ModeStraight {
		t.Errorf("Expected straight mode after exit, got %v", tr.Mode())
	}

	for i := 0; i < 4; i++ {
		tr.Observe(-40)
	}
	if tr.LeftTurnCounter != 2 || tr.Mode() != ModeCommit {
		t.Errorf("Expected second turn in commit mode, got %d %v", tr.LeftTurnCounter, tr.Mode())
	}
}

func TestObserve_ThirdTurnIsStraight(t *testing.T) {
	tr := newTracker(false)
	tr.LeftTurnCounter = 2

	for i := 0; i < 4; i++ {
		tr.Observe(-40)
	}
	if tr.LeftTurnCounter != 3 || tr.Mode() != ModeStraight {
		t.Errorf("Expected standard logic on third turn, got %d %v", tr.LeftTurnCounter, tr.Mode())
	}
}

func TestObserve_SkipForceStraight(t *testing.T) {
	tr := newTracker(true)

	for i := 0; i < 4; i++ {
		tr.Observe(-40)
	}
	if !tr.ForceStraight {
		t.Fatalf("Expected force straight during skip turn")
	}

	for i := 0; i < 11; i++ {
		tr.Observe(0)
	}
	if tr.ForceStraight {
		t.Errorf("Expected force straight cleared on exit")
	}

	for i := 0; i < 4; i++ {
		tr.Observe(-40)
	}
	if tr.ForceStraight {
		t.Errorf("Force straight applies to the skip turn only")
	}
}
