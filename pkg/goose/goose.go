// Package goose implements a single flocking agent.
//
// The steering rules follow Craig Reynolds' boids (separation, alignment,
// cohesion) as popularised by http://processingjs.org/learning/topic/flocking,
// plus a pull toward every attractor point shared by the whole flock.
package goose

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
)

// Goose is one member of the flock. It is a plain value: Update never
// mutates the receiver, it returns the goose as it is after the tick.
type Goose struct {
	Location geometry.Vector2D `json:"location"`
	Velocity geometry.Vector2D `json:"velocity"`
}

// Params controls the steering rules. Passing it into Update allows the
// rules to change between ticks.
type Params struct {
	MaxSpeed float64 `json:"maxSpeed"` // velocity clamp, world units per tick
	MaxForce float64 `json:"maxForce"` // steering clamp per tick

	SeparationRadius float64 `json:"separationRadius"` // personal space
	NeighborRadius   float64 `json:"neighborRadius"`   // range for alignment and cohesion

	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`
	AttractorWeight  float64 `json:"attractorWeight"`

	// AttractorFalloff is the distance under which an attractor pulls at
	// full strength. Farther away the pull decays as AttractorFalloff/distance.
	AttractorFalloff float64 `json:"attractorFalloff"`
}

// DefaultParams returns the tunables used by the original geese demo.
func DefaultParams() Params {
	return Params{
		MaxSpeed:         3.0,
		MaxForce:         0.05,
		SeparationRadius: 32.0,
		NeighborRadius:   64.0,
		SeparationWeight: 2.0,
		AlignmentWeight:  1.0,
		CohesionWeight:   1.0,
		AttractorWeight:  1.5,
		AttractorFalloff: 48.0,
	}
}

// New creates a goose at location moving with velocity.
func New(location, velocity geometry.Vector2D) Goose {
	return Goose{Location: location, Velocity: velocity}
}

// Update computes the next state of the goose at index self in flock.
// Every goose reads the same flock slice, so the order in which the
// flock is updated does not matter.
func (g Goose) Update(flock []Goose, self int, attractors []geometry.Vector2D, bounds geometry.Size, p Params) Goose {
	force := g.Steer(flock, self, attractors, p)

	velocity := g.Velocity.Add(force).Limit(p.MaxSpeed)
	location := g.Location.Add(velocity).Wrap(bounds)

	return Goose{Location: location, Velocity: velocity}
}

// Steer returns the net steering force acting on the goose, already
// clamped to p.MaxForce.
func (g Goose) Steer(flock []Goose, self int, attractors []geometry.Vector2D, p Params) geometry.Vector2D {
	// Initialize force accumulators
	var separation, velocitySum, locationSum geometry.Vector2D
	tooClose := 0
	neighbors := 0

	separationSq := p.SeparationRadius * p.SeparationRadius
	neighborSq := p.NeighborRadius * p.NeighborRadius

	for i, other := range flock {
		if i == self {
			continue
		}

		distSq := g.Location.DistanceSquaredTo(other.Location)
		if distSq == 0 {
			// stacked geese have no direction to push apart
			continue
		}

		// 1. Separation: away from the neighbour, stronger when closer
		if distSq < separationSq {
			dist := math.Sqrt(distSq)
			separation = separation.Add(g.Location.Sub(other.Location).Normalize().Div(dist))
			tooClose++
		}

		// 2. Alignment and cohesion share the wider neighbourhood
		if distSq < neighborSq {
			velocitySum = velocitySum.Add(other.Velocity)
			locationSum = locationSum.Add(other.Location)
			neighbors++
		}
	}

	var force geometry.Vector2D
	if tooClose > 0 {
		force = force.Add(g.steerToward(separation.Div(float64(tooClose)), p).Mul(p.SeparationWeight))
	}
	if neighbors > 0 {
		alignment := g.steerToward(velocitySum.Div(float64(neighbors)), p)
		cohesion := g.seek(locationSum.Div(float64(neighbors)), p)
		force = force.Add(alignment.Mul(p.AlignmentWeight)).Add(cohesion.Mul(p.CohesionWeight))
	}
	force = force.Add(g.attraction(attractors, p).Mul(p.AttractorWeight))

	return force.Limit(p.MaxForce)
}

// steerToward turns a desired heading into a bounded correction of the
// current velocity.
func (g Goose) steerToward(heading geometry.Vector2D, p Params) geometry.Vector2D {
	if heading.LenSqr() == 0 {
		return geometry.Vector2D{}
	}
	desired := heading.Normalize().Mul(p.MaxSpeed)
	return desired.Sub(g.Velocity).Limit(p.MaxForce)
}

// seek steers toward target.
func (g Goose) seek(target geometry.Vector2D, p Params) geometry.Vector2D {
	return g.steerToward(target.Sub(g.Location), p)
}

// attraction sums a pull toward every attractor. Each pull is at most
// p.MaxForce and decays with distance beyond p.AttractorFalloff.
// Attractors at a non-finite distance pull nothing.
func (g Goose) attraction(attractors []geometry.Vector2D, p Params) geometry.Vector2D {
	var pull geometry.Vector2D
	for _, a := range attractors {
		dist := g.Location.DistanceTo(a)
		if dist < geometry.Epsilon || math.IsNaN(dist) || math.IsInf(dist, 0) {
			continue
		}
		strength := 1.0
		if dist > p.AttractorFalloff {
			strength = p.AttractorFalloff / dist
		}
		pull = pull.Add(a.Sub(g.Location).Normalize().Mul(strength * p.MaxForce))
	}
	return pull
}
