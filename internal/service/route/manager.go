package route

import (
	"fmt"
	"sync"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"
	"lanepilot/internal/service/vision"
	"lanepilot/internal/timeutil"

	"gocv.io/x/gocv"
)

type detector func(frame *gocv.Mat) (bool, error)

// State is a snapshot of the route state machine.
type State struct {
	Behavior          Behavior  `json:"behavior"`
	IntersectionCount int       `json:"intersection_count"`
	Cooldown          int       `json:"cooldown"`
	ActionActive      bool      `json:"action_active"`
	ActionDeadline    time.Time `json:"action_deadline"`
	Stopped           bool      `json:"stopped"`
}

// Manager is the route state machine. Run is meant to be called from a
// single drive loop; the manual overrides may be called from any goroutine.
type Manager struct {
	logger *logger.Logger
	clock  timeutil.Clock

	behaviors *behaviorSet
	plan      []Behavior

	roiTop         int
	roiBottom      int
	darkThreshold  float32
	pixelTrigger   int
	cooldownLimit  int
	actionDuration time.Duration

	stopRanges  []colorRange
	stopMinArea float64

	rightSignal   bool
	rightRange    colorRange
	rightMinArea  float64
	rightCooldown int

	detectStopFn         detector
	detectIntersectionFn detector
	detectRightTurnFn    detector

	mu                sync.Mutex
	behavior          Behavior
	intersectionCount int
	cooldown          int
	rightCounter      int
	actionActive      bool
	actionDeadline    time.Time
	stopped           bool
}

// NewManager creates a route manager from cfg. A nil clock uses wall time.
func NewManager(cfg *config.Config, logger *logger.Logger, clock timeutil.Clock) (*Manager, error) {
	behaviors, err := newBehaviorSet(cfg.BehaviorList)
	if err != nil {
		return nil, fmt.Errorf("failed to build behavior list: %w", err)
	}

	plan := make([]Behavior, 0, len(cfg.RoutePlan))
	for i, name := range cfg.RoutePlan {
		b := Behavior(name)
		if !behaviors.has(b) {
			return nil, fmt.Errorf("route plan entry %d (%q) is not a known behavior", i, name)
		}
		plan = append(plan, b)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("route plan is empty")
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}

	m := &Manager{
		logger:    logger,
		clock:     clock,
		behaviors: behaviors,
		plan:      plan,

		roiTop:         cfg.IntersectionROITop,
		roiBottom:      cfg.IntersectionROIBottom,
		darkThreshold:  float32(cfg.IntersectionThreshold),
		pixelTrigger:   cfg.IntersectionPixelTrigger,
		cooldownLimit:  cfg.IntersectionCooldown,
		actionDuration: cfg.ActionDuration,

		stopRanges: []colorRange{
			newColorRange(cfg.StopColorLow1, cfg.StopColorHigh1),
			newColorRange(cfg.StopColorLow2, cfg.StopColorHigh2),
		},
		stopMinArea: cfg.StopMinArea,

		rightSignal:   cfg.RightTurnSignalEnabled,
		rightRange:    newColorRange(cfg.RightTurnColorLow, cfg.RightTurnColorHigh),
		rightMinArea:  cfg.RightTurnMinArea,
		rightCooldown: cfg.RightTurnCooldown,

		behavior: plan[0],
	}
	m.detectStopFn = m.detectStop
	m.detectIntersectionFn = m.detectIntersection
	m.detectRightTurnFn = m.detectRightTurnSignal

	logger.Info("Route manager initialized: plan %v, action duration %s", cfg.RoutePlan, m.actionDuration)
	return m, nil
}

// State returns a snapshot of the state machine.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Behavior:          m.behavior,
		IntersectionCount: m.intersectionCount,
		Cooldown:          m.cooldown,
		ActionActive:      m.actionActive,
		ActionDeadline:    m.actionDeadline,
		Stopped:           m.stopped,
	}
}

// SetManualLeft forces Left_Turn immediately. Count and cooldown are left alone.
func (m *Manager) SetManualLeft() {
	m.setManual(LeftTurn)
}

// SetManualRight forces Right_Turn immediately. Count and cooldown are left alone.
func (m *Manager) SetManualRight() {
	m.setManual(RightTurn)
}

func (m *Manager) setManual(b Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = b
	m.logger.Info(">>> MANUAL OVERRIDE: %s", b)
}

// Run advances the state machine by one tick.
func (m *Manager) Run(frame *gocv.Mat, mode DriveMode) Output {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return m.output(true)
	}
	if mode == ModeAutonomous && m.detect("stop sign", m.detectStopFn, frame) {
		m.stopped = true
		m.logger.Warning("!!! STOP SIGN DETECTED - latching stop at intersection %d", m.intersectionCount)
		return m.output(true)
	}

	if m.actionActive {
		if m.clock.Now().Before(m.actionDeadline) {
			return m.output(false)
		}
		m.actionActive = false
		m.behavior = Normal
		m.cooldown = 0
		m.logger.Info("==> Action finished, back to %s", Normal)
	}

	if m.rightSignal {
		if m.rightCounter > 0 {
			m.rightCounter--
		} else if m.detect("right turn signal", m.detectRightTurnFn, frame) {
			m.armAction(RightTurn)
			m.rightCounter = m.rightCooldown
			return m.output(false)
		}
	}

	if m.cooldown > 0 {
		m.cooldown--
		return m.output(false)
	}

	if m.detect("intersection", m.detectIntersectionFn, frame) {
		m.intersectionCount++
		m.logger.Info("!!! INTERSECTION DETECTED !!! Count: %d", m.intersectionCount)

		if m.intersectionCount < len(m.plan) {
			next := m.plan[m.intersectionCount]
			if next != Normal {
				m.armAction(next)
			} else {
				m.behavior = next
				m.logger.Info("==> ROUTE STATE: %s", next)
			}
		}
		m.cooldown = m.cooldownLimit
	}

	return m.output(false)
}

func (m *Manager) armAction(b Behavior) {
	m.behavior = b
	m.actionActive = true
	m.actionDeadline = m.clock.Now().Add(m.actionDuration)
	m.logger.Info("==> ACTION TRIGGERED: %s for %s", b, m.actionDuration)
}

// detect runs a detector with panic recovery; faults count as not detected.
func (m *Manager) detect(name string, fn detector, frame *gocv.Mat) bool {
	if vision.Absent(frame) {
		return false
	}
	found, err := vision.Guard(name, func() (bool, error) { return fn(frame) })
	if err != nil {
		m.logger.Error("Error in %s detector: %v", name, err)
		return false
	}
	return found
}

func (m *Manager) output(stop bool) Output {
	return Output{
		Vector:   m.behaviors.vector(m.behavior),
		Behavior: m.behavior,
		Stop:     stop,
	}
}
