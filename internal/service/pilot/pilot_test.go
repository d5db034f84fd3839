package pilot

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/model"
	"lanepilot/internal/service/lane"
	"lanepilot/internal/service/route"
	"lanepilot/internal/service/segmentation"
	"lanepilot/internal/testutil"
	"lanepilot/internal/timeutil"

	"gocv.io/x/gocv"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Record(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind model.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type broadcaster struct {
	messages [][]byte
}

func (b *broadcaster) Broadcast(message []byte) bool {
	b.messages = append(b.messages, message)
	return true
}

type actuator struct {
	commands []Command
}

func (a *actuator) Apply(cmd Command) error {
	a.commands = append(a.commands, cmd)
	return nil
}

type nilSource struct{}

func (nilSource) Read() *gocv.Mat { return nil }
func (nilSource) Close() error    { return nil }

type fixture struct {
	cfg      *config.Config
	pilot    *Pilot
	journal  *recorder
	viewers  *broadcaster
	actuator *actuator
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	cfg := testutil.Config(t)
	cfg.ViewerFrameInterval = 2
	if mutate != nil {
		mutate(cfg)
	}
	log := testutil.Logger(t, cfg)

	follower := lane.NewFollower(cfg, log)
	t.Cleanup(follower.Close)

	router, err := route.NewManager(cfg, log, timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Failed to create route manager: %v", err)
	}

	road := segmentation.NewWorker(cfg, log)
	t.Cleanup(road.Stop)

	f := &fixture{cfg: cfg, journal: &recorder{}, viewers: &broadcaster{}, actuator: &actuator{}}
	f.pilot = New(cfg, log, follower, router, road, f.journal, f.viewers, f.actuator)
	return f
}

func laneFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := testutil.BrightFrame(160, 120)
	testutil.VerticalLine(t, &frame, 21, 26)
	testutil.VerticalLine(t, &frame, 141, 146)
	return frame
}

func TestTick_AbsentFrame(t *testing.T) {
	f := newFixture(t, nil)

	cmd := f.pilot.Tick(nil, route.ModeAutonomous)

	if cmd.Steering != 0 || cmd.Throttle != 0 || cmd.Stop {
		t.Errorf("Expected neutral command, got %+v", cmd)
	}
	if cmd.Status != "NO FRAME" {
		t.Errorf("Expected NO FRAME status, got %s", cmd.Status)
	}
	if len(f.actuator.commands) != 1 {
		t.Errorf("Expected actuator called once, got %d", len(f.actuator.commands))
	}
}

func TestTick_Centered(t *testing.T) {
	f := newFixture(t, nil)
	frame := laneFrame(t)
	defer frame.Close()

	cmd := f.pilot.Tick(&frame, route.ModeAutonomous)

	if cmd.Steering != 0 || cmd.Status != "OK" || cmd.Behavior != route.Normal {
		t.Errorf("Expected centered Normal command, got %+v", cmd)
	}
	if cmd.Throttle <= 0 {
		t.Errorf("Expected positive throttle, got %v", cmd.Throttle)
	}
	if got := f.pilot.LastCommand(); got.Tick != 1 {
		t.Errorf("Expected last command from tick 1, got %d", got.Tick)
	}
}

func TestTick_Overrides(t *testing.T) {
	f := newFixture(t, nil)
	frame := laneFrame(t)
	defer frame.Close()

	if err := f.pilot.RequestOverride(OverrideLeft); err != nil {
		t.Fatalf("RequestOverride failed: %v", err)
	}
	cmd := f.pilot.Tick(&frame, route.ModeManual)
	if cmd.Behavior != route.LeftTurn {
		t.Errorf("Expected Left_Turn after override, got %s", cmd.Behavior)
	}

	if err := f.pilot.RequestOverride(OverrideRight); err != nil {
		t.Fatalf("RequestOverride failed: %v", err)
	}
	cmd = f.pilot.Tick(&frame, route.ModeManual)
	if cmd.Behavior != route.RightTurn {
		t.Errorf("Expected Right_Turn after override, got %s", cmd.Behavior)
	}

	if n := f.journal.count(model.EventOverride); n != 2 {
		t.Errorf("Expected 2 override events, got %d", n)
	}
}

func TestRequestOverride_QueueFull(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < overrideQueueSize; i++ {
		if err := f.pilot.RequestOverride(OverrideLeft); err != nil {
			t.Fatalf("override %d rejected: %v", i, err)
		}
	}
	if err := f.pilot.RequestOverride(OverrideLeft); err != ErrOverrideQueueFull {
		t.Errorf("Expected ErrOverrideQueueFull, got %v", err)
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		in      string
		want    Override
		wantErr bool
	}{
		{"left", OverrideLeft, false},
		{"right", OverrideRight, false},
		{"LEFT", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseOverride(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOverride(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTick_IntersectionJournaled(t *testing.T) {
	f := newFixture(t, nil)
	frame := laneFrame(t)
	defer frame.Close()
	testutil.Fill(t, &frame, image.Rect(0, 95, 160, 120), testutil.Black)

	f.pilot.Tick(&frame, route.ModeAutonomous)
	f.pilot.Tick(&frame, route.ModeAutonomous)

	if n := f.journal.count(model.EventIntersection); n != 1 {
		t.Errorf("Expected one intersection event, got %d", n)
	}
	if n := f.journal.count(model.EventBehaviorChanged); n != 0 {
		t.Errorf("Expected no behavior change on the first intersection, got %d", n)
	}
}

func TestTick_StopZeroesThrottle(t *testing.T) {
	f := newFixture(t, nil)
	frame := laneFrame(t)
	defer frame.Close()
	testutil.Fill(t, &frame, image.Rect(50, 5, 110, 35), testutil.Red)

	for i := 0; i < 3; i++ {
		cmd := f.pilot.Tick(&frame, route.ModeAutonomous)
		if !cmd.Stop || cmd.Throttle != 0 {
			t.Fatalf("tick %d: expected stop with zero throttle, got %+v", i, cmd)
		}
	}
	if n := f.journal.count(model.EventStopLatched); n != 1 {
		t.Errorf("Expected stop latched once, got %d", n)
	}
}

func TestTick_ViewerCadence(t *testing.T) {
	f := newFixture(t, nil)
	frame := laneFrame(t)
	defer frame.Close()

	for i := 0; i < 5; i++ {
		f.pilot.Tick(&frame, route.ModeAutonomous)
	}

	if len(f.viewers.messages) != 2 {
		t.Fatalf("Expected 2 view messages over 5 ticks, got %d", len(f.viewers.messages))
	}

	var msg struct {
		Image    string  `json:"image"`
		Steering float64 `json:"steering"`
		Behavior string  `json:"behavior"`
		Tick     int64   `json:"tick"`
	}
	if err := json.Unmarshal(f.viewers.messages[0], &msg); err != nil {
		t.Fatalf("Invalid view message: %v", err)
	}
	if msg.Image == "" || msg.Behavior != "Normal" || msg.Tick != 2 {
		t.Errorf("Unexpected view message %+v", msg)
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.DriveLoopHz = 100
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.pilot.Run(ctx, nilSource{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancel")
	}
	if f.pilot.Ticks() == 0 {
		t.Errorf("Expected at least one tick")
	}
}

func TestTick_LaneErrorGoesToErrorLog(t *testing.T) {
	f := newFixture(t, nil)
	gray := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8U)
	defer gray.Close()

	cmd := f.pilot.Tick(&gray, route.ModeManual)
	if cmd.Steering != 0 || cmd.Throttle != 0 {
		t.Errorf("Expected neutral command on a malformed frame, got %+v", cmd)
	}

	data, err := os.ReadFile(filepath.Join(f.cfg.LogDirectory, "error.log"))
	if err != nil {
		t.Fatalf("Failed to read error.log: %v", err)
	}
	if !strings.Contains(string(data), "Lane follower error") {
		t.Errorf("Expected lane follower fault in error.log, got %q", data)
	}
}
