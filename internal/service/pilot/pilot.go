// Package pilot runs the drive loop: lane following, route decisions, road
// segmentation, journaling and the operator view, once per tick.
package pilot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"
	"lanepilot/internal/model"
	"lanepilot/internal/service/camera"
	"lanepilot/internal/service/lane"
	"lanepilot/internal/service/route"

	"gocv.io/x/gocv"
)

// Override is an operator request forcing a turn behavior.
type Override string

const (
	OverrideLeft  Override = "left"
	OverrideRight Override = "right"
)

// ErrOverrideQueueFull is returned when overrides arrive faster than ticks.
var ErrOverrideQueueFull = errors.New("override queue full")

const overrideQueueSize = 8

// ParseOverride accepts "left" or "right".
func ParseOverride(s string) (Override, error) {
	switch o := Override(s); o {
	case OverrideLeft, OverrideRight:
		return o, nil
	default:
		return "", fmt.Errorf("unknown override %q", s)
	}
}

// Command is the decision of one tick.
type Command struct {
	Tick     int64          `json:"tick"`
	Steering float64        `json:"steering"`
	Throttle float64        `json:"throttle"`
	Behavior route.Behavior `json:"behavior"`
	Vector   []float64      `json:"vector"`
	Stop     bool           `json:"stop"`
	RoadArea float64        `json:"road_area"`
	Status   string         `json:"status"`
	LaneMode string         `json:"lane_mode"`
}

// RoadEstimator is the background road-area estimator.
type RoadEstimator interface {
	Submit(frame *gocv.Mat)
	Poll() (float64, *gocv.Mat)
}

// Recorder receives journal events.
type Recorder interface {
	Record(ev model.Event)
}

// Broadcaster delivers view messages to operator consoles without blocking.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

type viewMessage struct {
	Image string `json:"image,omitempty"`
	Command
}

type Pilot struct {
	follower *lane.Follower
	router   *route.Manager
	road     RoadEstimator
	journal  Recorder
	viewers  Broadcaster
	actuator Actuator
	logger   *logger.Logger

	mode          route.DriveMode
	period        time.Duration
	viewEvery     int64
	overrides     chan Override
	lastCommandMu sync.RWMutex
	lastCommand   Command
	tick          int64
}

// New wires the drive loop. journal and viewers may be nil.
func New(cfg *config.Config, logger *logger.Logger, follower *lane.Follower, router *route.Manager, road RoadEstimator, journal Recorder, viewers Broadcaster, actuator Actuator) *Pilot {
	return &Pilot{
		follower:  follower,
		router:    router,
		road:      road,
		journal:   journal,
		viewers:   viewers,
		actuator:  actuator,
		logger:    logger,
		mode:      route.DriveMode(cfg.DriveMode),
		period:    cfg.TickPeriod(),
		viewEvery: int64(cfg.ViewerFrameInterval),
		overrides: make(chan Override, overrideQueueSize),
	}
}

// RequestOverride queues an operator override for the next tick.
func (p *Pilot) RequestOverride(o Override) error {
	select {
	case p.overrides <- o:
		return nil
	default:
		return ErrOverrideQueueFull
	}
}

// LastCommand returns the most recent tick's command.
func (p *Pilot) LastCommand() Command {
	p.lastCommandMu.RLock()
	defer p.lastCommandMu.RUnlock()
	return p.lastCommand
}

// Ticks returns the number of completed ticks. Only call it from the drive
// loop goroutine or after Run returns.
func (p *Pilot) Ticks() int64 {
	return p.tick
}

// Run ticks at the configured rate until ctx is done.
func (p *Pilot) Run(ctx context.Context, source camera.FrameSource) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	p.logger.Info("🏁 Drive loop started: %s mode, %s per tick", p.mode, p.period)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("🛑 Drive loop stopped after %d ticks", p.tick)
			return
		case <-ticker.C:
			p.Tick(source.Read(), p.mode)
		}
	}
}

// Tick runs one iteration of the drive loop on frame, which may be nil.
func (p *Pilot) Tick(frame *gocv.Mat, mode route.DriveMode) Command {
	p.tick++
	p.applyOverrides()

	laneBefore := p.follower.State()
	routeBefore := p.router.State()

	res, err := p.follower.Step(frame)
	if err != nil {
		p.logger.EveryError("pilot-lane", time.Second, "Lane follower error: %v", err)
	}
	defer res.Close()

	out := p.router.Run(frame, mode)

	var roadArea float64
	if p.road != nil {
		p.road.Submit(frame)
		area, mask := p.road.Poll()
		roadArea = area
		if mask != nil {
			mask.Close()
		}
	}

	cmd := Command{
		Tick:     p.tick,
		Steering: res.Steering,
		Throttle: res.Throttle,
		Behavior: out.Behavior,
		Vector:   out.Vector,
		Stop:     out.Stop,
		RoadArea: roadArea,
		Status:   res.Status.String(),
		LaneMode: res.Mode.String(),
	}
	if frame == nil || frame.Empty() {
		cmd.Status = "NO FRAME"
	}
	if cmd.Stop {
		cmd.Throttle = 0
	}

	p.recordTransitions(res, laneBefore, routeBefore)

	p.lastCommandMu.Lock()
	p.lastCommand = cmd
	p.lastCommandMu.Unlock()

	if p.viewers != nil && p.viewEvery > 0 && p.tick%p.viewEvery == 0 {
		p.publishView(cmd, res.Display)
	}

	if err := p.actuator.Apply(cmd); err != nil {
		p.logger.Error("Actuator error: %v", err)
	}
	return cmd
}

func (p *Pilot) applyOverrides() {
	for {
		select {
		case o := <-p.overrides:
			switch o {
			case OverrideLeft:
				p.router.SetManualLeft()
			case OverrideRight:
				p.router.SetManualRight()
			}
			p.record(model.EventOverride, string(o))
		default:
			return
		}
	}
}

// recordTransitions journals the state changes caused by this tick.
func (p *Pilot) recordTransitions(res lane.Result, laneBefore lane.State, routeBefore route.State) {
	if p.journal == nil {
		return
	}
	after := p.router.State()

	switch res.Event {
	case lane.TurnEntered:
		p.record(model.EventTurnEntered, fmt.Sprintf("left turn #%d, %s", p.follower.State().LeftTurnCounter, res.Mode))
	case lane.TurnExited:
		p.record(model.EventTurnExited, fmt.Sprintf("after left turn #%d", laneBefore.LeftTurnCounter))
	}
	if after.IntersectionCount != routeBefore.IntersectionCount {
		p.record(model.EventIntersection, fmt.Sprintf("intersection #%d", after.IntersectionCount))
	}
	if after.Behavior != routeBefore.Behavior {
		p.record(model.EventBehaviorChanged, fmt.Sprintf("%s -> %s", routeBefore.Behavior, after.Behavior))
	}
	if after.Stopped && !routeBefore.Stopped {
		p.record(model.EventStopLatched, "stop landmark")
	}
}

func (p *Pilot) record(kind model.EventKind, detail string) {
	if p.journal == nil {
		return
	}
	st := p.router.State()
	p.journal.Record(model.Event{
		Tick:              p.tick,
		Kind:              kind,
		Behavior:          string(st.Behavior),
		IntersectionCount: st.IntersectionCount,
		LeftTurnCount:     p.follower.State().LeftTurnCounter,
		Detail:            detail,
	})
}

// publishView encodes the display frame and hands it to the viewers. A
// full viewer queue drops the frame.
func (p *Pilot) publishView(cmd Command, display *gocv.Mat) {
	msg := viewMessage{Command: cmd}
	if display != nil && !display.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *display)
		if err != nil {
			p.logger.EveryError("pilot-encode", time.Second, "Failed to encode view frame: %v", err)
		} else {
			msg.Image = base64.StdEncoding.EncodeToString(buf.GetBytes())
			buf.Close()
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("Failed to marshal view message: %v", err)
		return
	}
	if !p.viewers.Broadcast(data) {
		p.logger.EveryWarning("pilot-view-drop", 5*time.Second, "Viewer queue full, dropping frame")
	}
}
