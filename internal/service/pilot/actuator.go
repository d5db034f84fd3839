package pilot

import (
	"time"

	"lanepilot/internal/logger"
)

// Actuator consumes the per-tick command.
type Actuator interface {
	Apply(cmd Command) error
}

// LogActuator stands in for motor and servo drivers by logging commands at
// a throttled rate.
type LogActuator struct {
	logger   *logger.Logger
	interval time.Duration
}

func NewLogActuator(logger *logger.Logger, interval time.Duration) *LogActuator {
	return &LogActuator{logger: logger, interval: interval}
}

func (a *LogActuator) Apply(cmd Command) error {
	a.logger.Every("actuator", a.interval, "🚗 tick %d: steering %+.3f throttle %.2f behavior %s stop %v lane %s/%s road %.0f",
		cmd.Tick, cmd.Steering, cmd.Throttle, cmd.Behavior, cmd.Stop, cmd.LaneMode, cmd.Status, cmd.RoadArea)
	return nil
}
