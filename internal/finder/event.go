package finder

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
)

// EventState is the lifecycle stage of a tracked rupture.
type EventState string

const (
	// StateTriggered events have passed the trigger scan but have not yet
	// matched a template.
	StateTriggered EventState = "triggered"
	// StateGrowing events are actively extending along strike.
	StateGrowing EventState = "growing"
	// StateStable events have a settled geometry.
	StateStable EventState = "stable"
	// StateShrinking events have lost a significant fraction of their
	// peak length and will stop unless growth resumes.
	StateShrinking EventState = "shrinking"
	// StateHeld events have shrunk below the stop fraction of their peak
	// length and are waiting out the hold timer before release.
	StateHeld EventState = "held"
	// StateReleased events are finished and visible only for the
	// suppression window around their last solution.
	StateReleased EventState = "released"
)

// Solution is one published snapshot of an event's source parameters.
// Every field reflects the same timestep; a stale solution is carried
// whole, never field by field.
type Solution struct {
	EventID string
	Version int

	Timestamp  time.Time
	SetName    string
	Centroid   geo.Coord
	Epicenter  geo.Coord
	DepthKm    float64
	DepthUncer float64

	StrikeDeg    float64
	AzimuthUncer float64
	LengthKm     float64
	LengthUncer  float64
	LatUncer     float64
	LonUncer     float64

	Mag        float64
	MagUncer   float64
	MagFromReg bool

	OriginTime      time.Time
	OriginTimeUncer float64

	Misfit     float64
	Likelihood float64
	Rupture    []geo.Coord3D
}

// Event is one tracked rupture across timesteps. It owns the hysteresis
// state for every template set that has searched for it.
type Event struct {
	ID        string
	State     EventState
	CreatedAt time.Time
	UpdatedAt time.Time

	Solution Solution
	Estimate Estimate

	// FirstMatch reports whether any template set has ever matched.
	FirstMatch bool
	// Message is set when the current solution clears the publication
	// likelihood floor.
	Message bool
	// SplitEpicenter holds the candidate location for a follow-on event
	// when the origin back-projection has drifted off the fault trace.
	SplitEpicenter *geo.Coord

	MaxLengthKm float64
	// ShrinkStartLen is the length at which the shrinking state began.
	ShrinkStartLen float64

	MatchStates map[string]*MatchState
	// LastMatch is the winning match behind the current solution, kept for
	// diagnostics such as misfit-curve plots.
	LastMatch *Match

	missedSteps int
}

// NewEvent starts tracking a rupture from a trigger candidate.
func NewEvent(epicenter geo.Coord, depthKm float64, now time.Time) *Event {
	id := uuid.NewString()
	return &Event{
		ID:        id,
		State:     StateTriggered,
		CreatedAt: now,
		UpdatedAt: now,
		Solution: Solution{
			EventID:   id,
			Timestamp: now,
			Centroid:  epicenter,
			Epicenter: epicenter,
			DepthKm:   depthKm,
		},
		MatchStates: make(map[string]*MatchState),
	}
}

// Released reports whether the event has finished its lifecycle.
func (ev *Event) Released() bool { return ev.State == StateReleased }

// Active reports whether the event still participates in matching.
func (ev *Event) Active() bool {
	return ev.State != StateReleased
}

// ExclusionRadiusKm is the distance around the event centroid within which
// new trigger candidates are absorbed rather than spawned.
func (ev *Event) ExclusionRadiusKm(params config.Params) float64 {
	r := params.TriggerRadiusKm + ev.Solution.LengthKm/2
	if r < params.TriggerRadiusKm {
		r = params.TriggerRadiusKm
	}
	return r
}

// StateFor returns, creating if needed, the hysteresis state for one
// template set.
func (ev *Event) StateFor(set *TemplateSet, nThresholds int) *MatchState {
	ms, ok := ev.MatchStates[set.Name()]
	if !ok {
		ms = NewMatchState(nThresholds)
		ev.MatchStates[set.Name()] = ms
	}
	return ms
}

// Apply folds a winning match and its estimate into the event, advancing
// the lifecycle. It returns true when the solution changed.
func (ev *Event) Apply(params config.Params, match *Match, est Estimate, now time.Time) bool {
	ev.UpdatedAt = now
	ev.missedSteps = 0

	prevLen := ev.Solution.LengthKm
	sol := Solution{
		EventID:   ev.ID,
		Version:   ev.Solution.Version + 1,
		Timestamp: now,
		SetName:   match.Set.Name(),
		Centroid:  match.Centroid,
		Epicenter: ev.Solution.Epicenter,
		DepthKm:   ev.Solution.DepthKm,

		StrikeDeg:    match.StrikeDeg,
		AzimuthUncer: match.AzimuthUncer,
		LengthKm:     match.LengthKm,
		LengthUncer:  match.LengthUncer,
		LatUncer:     match.LatUncer,
		LonUncer:     match.LonUncer,

		Mag:        est.Mag,
		MagUncer:   est.MagUncer,
		MagFromReg: est.MagFromReg,

		OriginTime:      est.OriginTime,
		OriginTimeUncer: est.OriginTimeUncer,

		Misfit:     match.Misfit,
		Likelihood: match.Likelihood,
		Rupture:    match.Rupture,
	}
	if sol.DepthKm == 0 {
		sol.DepthKm = params.DefaultDepthKm
	}
	sol.DepthUncer = params.DefaultDepthUncerKm

	ev.Solution = sol
	ev.Estimate = est
	ev.LastMatch = match
	ev.Message = match.Likelihood >= params.MinLikelihoodForMsg

	if !ev.FirstMatch {
		ev.FirstMatch = true
		ev.State = StateGrowing
	}
	if match.LengthKm > ev.MaxLengthKm {
		ev.MaxLengthKm = match.LengthKm
	}

	switch ev.State {
	case StateGrowing:
		if match.LengthKm < prevLen {
			ev.State = StateStable
		}
	case StateStable:
		if match.LengthKm > prevLen {
			ev.State = StateGrowing
		}
	case StateShrinking:
		// Growth past the restart fraction of the shrink-start length
		// cancels the pending stop.
		if match.LengthKm > (1+params.RestartLengthPc)*ev.ShrinkStartLen {
			ev.State = StateGrowing
			ev.ShrinkStartLen = 0
		}
	case StateHeld:
		// Late data still updates a held event but cannot revive it.
	}

	if (ev.State == StateGrowing || ev.State == StateStable) && ev.MaxLengthKm > 0 &&
		match.LengthKm < (1-params.StopLengthPc)*ev.MaxLengthKm {
		ev.State = StateShrinking
		ev.ShrinkStartLen = match.LengthKm
	}

	ev.checkEpicenterConsistency(params)
	return true
}

// Miss records a timestep with no usable match. The last solution stays in
// place; repeated misses push the event into hold.
func (ev *Event) Miss(params config.Params, now time.Time) {
	ev.UpdatedAt = now
	ev.missedSteps++
	if ev.State == StateTriggered {
		// Never matched; a few empty scans retire the trigger quickly.
		if ev.missedSteps >= 3 {
			ev.State = StateReleased
		}
		return
	}
	if ev.State != StateHeld && ev.State != StateReleased && ev.missedSteps >= 5 {
		ev.State = StateHeld
	}
	if ev.State == StateShrinking && ev.ShrinkStartLen > 0 &&
		ev.Solution.LengthKm < (1-params.StopLengthPc)*ev.ShrinkStartLen {
		// Still shrinking with no fresh match; move to hold.
		ev.State = StateHeld
	}
}

// Tick advances time-driven transitions. A held event releases once the
// hold window expires without fresh data.
func (ev *Event) Tick(params config.Params, now time.Time) {
	if ev.State == StateHeld &&
		now.Sub(ev.Solution.Timestamp).Seconds() >= params.HoldTimeSec {
		ev.State = StateReleased
	}
}

// Stop releases the event immediately from any state.
func (ev *Event) Stop() { ev.State = StateReleased }

// checkEpicenterConsistency flags a follow-on event when the epicenter sits
// too far from the matched fault trace. The engine decides whether to
// spawn; the event only records the candidate location.
func (ev *Event) checkEpicenterConsistency(params config.Params) {
	if ev.Solution.LengthKm <= 0 {
		return
	}
	d := distanceToTrace(ev.Solution.Epicenter, ev.Solution.Centroid,
		ev.Solution.StrikeDeg, ev.Solution.LengthKm)
	if d > params.EpiFaultDistKm {
		c := ev.Solution.Epicenter
		ev.SplitEpicenter = &c
	} else {
		ev.SplitEpicenter = nil
	}
}

// distanceToTrace is the distance from a point to the finite fault trace
// segment defined by centroid, strike, and length.
func distanceToTrace(p, centroid geo.Coord, strikeDeg, lengthKm float64) float64 {
	end1, end2 := FaultEndpoints(centroid, strikeDeg, lengthKm)

	// Work in a local km frame anchored at end1.
	ax := geo.LonToKm(end2.Lon-end1.Lon, end1.Lat)
	ay := geo.LatToKm(end2.Lat - end1.Lat)
	px := geo.LonToKm(p.Lon-end1.Lon, end1.Lat)
	py := geo.LatToKm(p.Lat - end1.Lat)

	segLen2 := ax*ax + ay*ay
	if segLen2 == 0 {
		return math.Hypot(px, py)
	}
	t := (px*ax + py*ay) / segLen2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-t*ax, py-t*ay)
}
