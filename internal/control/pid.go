// Package control holds the steering PID controller and the throttle ramp.
package control

// PID is a positional PID controller with derivative on measurement and an
// integral term clamped to the output limits.
type PID struct {
	Kp, Ki, Kd float64
	Setpoint   float64

	// Output limits
	Min, Max float64

	integral    float64
	lastInput   float64
	initialized bool
}

// NewPID creates a controller with a zero setpoint and symmetric output limits.
func NewPID(kp, ki, kd, limit float64) *PID {
	return &PID{
		Kp:  kp,
		Ki:  ki,
		Kd:  kd,
		Min: -limit,
		Max: limit,
	}
}

// Update feeds one measurement taken dt seconds after the previous one and
// returns the controller output.
func (p *PID) Update(input, dt float64) float64 {
	if dt <= 0 {
		dt = 1e-3
	}

	err := p.Setpoint - input
	dInput := 0.0
	if p.initialized {
		dInput = input - p.lastInput
	}

	proportional := p.Kp * err
	p.integral = clamp(p.integral+p.Ki*err*dt, p.Min, p.Max)
	derivative := -p.Kd * dInput / dt

	p.lastInput = input
	p.initialized = true

	return clamp(proportional+p.integral+derivative, p.Min, p.Max)
}

// Reset clears the integral and derivative memory.
func (p *PID) Reset() {
	p.integral = 0
	p.lastInput = 0
	p.initialized = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
