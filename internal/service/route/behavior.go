// Package route tracks progress along a fixed track: it counts intersections,
// holds turn behaviors for a timed window, latches on a stop landmark and
// accepts operator overrides.
package route

import "fmt"

// Behavior is a high-level driving behavior handed to the decision model.
type Behavior string

const (
	Normal    Behavior = "Normal"
	LeftTurn  Behavior = "Left_Turn"
	RightTurn Behavior = "Right_Turn"
)

// DriveMode is the externally supplied driving mode flag.
type DriveMode string

const (
	ModeManual     DriveMode = "user"
	ModeAutonomous DriveMode = "local"
)

// Output is the route decision for one tick.
type Output struct {
	Vector   []float64 `json:"vector"`
	Behavior Behavior  `json:"behavior"`
	Stop     bool      `json:"stop"`
}

// behaviorSet maps behavior names onto one-hot vectors in a fixed order.
type behaviorSet struct {
	names []Behavior
	index map[Behavior]int
}

func newBehaviorSet(names []string) (*behaviorSet, error) {
	set := &behaviorSet{index: make(map[Behavior]int, len(names))}
	for _, name := range names {
		b := Behavior(name)
		if _, dup := set.index[b]; dup {
			return nil, fmt.Errorf("duplicate behavior %q", name)
		}
		set.index[b] = len(set.names)
		set.names = append(set.names, b)
	}
	if _, ok := set.index[Normal]; !ok {
		return nil, fmt.Errorf("behavior list %v lacks %s", names, Normal)
	}
	return set, nil
}

func (s *behaviorSet) has(b Behavior) bool {
	_, ok := s.index[b]
	return ok
}

// vector returns a fresh one-hot encoding of b. Unknown behaviors encode as
// all zeros.
func (s *behaviorSet) vector(b Behavior) []float64 {
	v := make([]float64, len(s.names))
	if i, ok := s.index[b]; ok {
		v[i] = 1.0
	}
	return v
}
