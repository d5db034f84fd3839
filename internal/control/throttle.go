package control

// ThrottleRamp moves throttle toward a per-tick target. Braking steps are
// twice as large as acceleration steps and the value is clamped every tick.
type ThrottleRamp struct {
	Min, Max float64
	Step     float64

	current float64
}

// NewThrottleRamp creates a ramp starting at initial, clamped into range.
func NewThrottleRamp(min, max, step, initial float64) *ThrottleRamp {
	return &ThrottleRamp{
		Min:     min,
		Max:     max,
		Step:    step,
		current: clamp(initial, min, max),
	}
}

// Current returns the last throttle value.
func (r *ThrottleRamp) Current() float64 {
	return r.current
}

// Update advances one tick. When braking is true the target is Min,
// otherwise Max.
func (r *ThrottleRamp) Update(braking bool) float64 {
	target := r.Max
	if braking {
		target = r.Min
	}

	if r.current < target {
		r.current += r.Step
	} else if r.current > target {
		r.current -= r.Step * 2
	}

	r.current = clamp(r.current, r.Min, r.Max)
	return r.current
}
