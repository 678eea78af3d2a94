package board

import (
	"math"
	"sort"
	"time"
)

type Point struct {
	X, Y int
}

func (p Point) distance(q Point) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

// Rect is a screen-space rectangle; W and H are exclusive extents.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// distance from p to the closest point of r (0 when inside).
func (r Rect) distance(p Point) float64 {
	dx := 0
	switch {
	case p.X < r.X:
		dx = r.X - p.X
	case p.X >= r.X+r.W:
		dx = p.X - (r.X + r.W - 1)
	}
	dy := 0
	switch {
	case p.Y < r.Y:
		dy = r.Y - p.Y
	case p.Y >= r.Y+r.H:
		dy = p.Y - (r.Y + r.H - 1)
	}
	return math.Hypot(float64(dx), float64(dy))
}

// Sensor decides when a pressed pointer becomes a drag, as opposed to a tap or a scroll.
type Sensor interface {
	// Check is called on every move after a press. activate starts the drag; abort gives
	// up on the press (it was a scroll) until the next press.
	Check(start, cur Point, elapsed time.Duration) (activate, abort bool)
}

// PointerSensor activates once the pointer has travelled Distance.
type PointerSensor struct {
	Distance float64
}

func (s PointerSensor) Check(start, cur Point, _ time.Duration) (bool, bool) {
	return start.distance(cur) >= s.Distance, false
}

// TouchSensor activates after the finger has rested for Delay without straying more than
// Tolerance; moving further before that is treated as a scroll.
type TouchSensor struct {
	Delay     time.Duration
	Tolerance float64
}

func (s TouchSensor) Check(start, cur Point, elapsed time.Duration) (bool, bool) {
	if start.distance(cur) > s.Tolerance {
		return false, elapsed < s.Delay
	}
	return elapsed >= s.Delay, false
}

var (
	DefaultPointerSensor = PointerSensor{Distance: 3}
	DefaultTouchSensor   = TouchSensor{Delay: 250 * time.Millisecond, Tolerance: 5}
)

// Activation tracks one press until its sensor activates or aborts.
type Activation struct {
	sensor  Sensor
	taskID  string
	start   Point
	startAt time.Time
	active  bool
	pending bool
}

func NewActivation(sensor Sensor) *Activation {
	if sensor == nil {
		sensor = DefaultPointerSensor
	}
	return &Activation{sensor: sensor}
}

// Press arms the activation for a drag on taskID.
func (a *Activation) Press(taskID string, p Point, at time.Time) {
	a.taskID = taskID
	a.start = p
	a.startAt = at
	a.active = false
	a.pending = taskID != ""
}

// Move returns true exactly once: on the move that crosses the activation threshold.
func (a *Activation) Move(p Point, at time.Time) bool {
	if !a.pending || a.active {
		return false
	}
	activate, abort := a.sensor.Check(a.start, p, at.Sub(a.startAt))
	if abort {
		a.pending = false
		return false
	}
	if activate {
		a.active = true
		return true
	}
	return false
}

// Release disarms and reports whether the press had become a drag.
func (a *Activation) Release() (wasDrag bool) {
	wasDrag = a.active
	a.active = false
	a.pending = false
	return wasDrag
}

func (a *Activation) TaskID() string { return a.taskID }

func (a *Activation) Active() bool { return a.active }

// Surface is a drop surface laid out on screen.
type Surface struct {
	Target DropTarget
	Rect   Rect
}

// NearestSurface picks the drop target closest to p, ignoring surfaces farther than maxDist.
// Ties go to the smaller surface (a card inside a column beats the column), then to
// stage/task id, so the result doesn't depend on the order of surfaces.
func NearestSurface(p Point, surfaces []Surface, maxDist float64) (DropTarget, bool) {
	type cand struct {
		s    Surface
		dist float64
		area int
	}
	cands := make([]cand, 0, len(surfaces))
	for _, s := range surfaces {
		if s.Target.IsZero() || s.Rect.W <= 0 || s.Rect.H <= 0 {
			continue
		}
		d := s.Rect.distance(p)
		if d > maxDist {
			continue
		}
		cands = append(cands, cand{s: s, dist: d, area: s.Rect.W * s.Rect.H})
	}
	if len(cands) == 0 {
		return DropTarget{}, false
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.area != b.area {
			return a.area < b.area
		}
		if a.s.Target.Stage != b.s.Target.Stage {
			return a.s.Target.Stage < b.s.Target.Stage
		}
		return a.s.Target.TaskID < b.s.Target.TaskID
	})
	return cands[0].s.Target, true
}
