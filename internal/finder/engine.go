package finder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/monitoring"
)

// EngineFactory builds a fresh raster engine for one matcher task. Engines
// are not shared between tasks, so the factory is called once per
// (event, template set) pair each timestep.
type EngineFactory func() RasterEngine

// Engine drives the full per-timestep pipeline: trigger scan, event image,
// parallel template matching, estimation, and lifecycle bookkeeping.
type Engine struct {
	params  config.Params
	sets    []*TemplateSet
	builder *ImageBuilder
	factory EngineFactory
	est     *Estimator

	events       []*Event
	lastRejected []Observation
}

// NewEngine wires the pipeline together. The template set list and the
// interpolator are fixed for the engine's lifetime.
func NewEngine(params config.Params, sets []*TemplateSet, interp GridInterpolator, factory EngineFactory) (*Engine, error) {
	if len(sets) == 0 {
		return nil, &config.ConfigError{Field: "template_sets", Msg: "at least one template set required"}
	}
	if factory == nil {
		return nil, &config.ConfigError{Field: "raster_engine", Msg: "engine factory required"}
	}
	res := sets[0].ResolutionKm()
	builder, err := NewImageBuilder(params, res, interp)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		sets:    sets,
		builder: builder,
		factory: factory,
		est:     NewEstimator(params),
	}, nil
}

// Events returns the currently tracked events, including held ones.
func (e *Engine) Events() []*Event { return e.events }

// RejectedStations returns the observations the last Step dropped as noisy
// or disconnected, so callers can persist them to a station mask.
func (e *Engine) RejectedStations() []Observation { return e.lastRejected }

// setOutcome is one template set's result for one event this timestep.
type setOutcome struct {
	setIdx int
	match  *Match
	skip   bool
}

// Step processes one timestep of observations. It returns the solutions
// that changed this step. Hard failures from a matcher task abort the
// whole step.
func (e *Engine) Step(ctx context.Context, obs []Observation, now time.Time) ([]Solution, error) {
	for _, ev := range e.events {
		ev.Tick(e.params, now)
	}

	scan := NewTriggerScan(e.params)
	result := scan.Scan(obs, e.events)
	e.lastRejected = result.Rejected
	for _, c := range result.Candidates {
		ev := NewEvent(c, e.params.DefaultDepthKm, now)
		e.events = append(e.events, ev)
		monitoring.Logf("finder: new event %s at (%.3f, %.3f) from %d stations",
			ev.ID, c.Lat, c.Lon, len(result.Included))
	}

	var changed []Solution
	for _, ev := range e.events {
		if !ev.Active() {
			continue
		}
		sol, err := e.stepEvent(ctx, ev, obs, now)
		if err != nil {
			return nil, err
		}
		if sol != nil {
			changed = append(changed, *sol)
		}
	}

	e.spawnSplits(now)
	e.pruneReleased(now)
	return changed, nil
}

// stepEvent runs image building, the matcher fan-out, and estimation for
// one event. A nil solution with nil error means the timestep was skipped.
func (e *Engine) stepEvent(ctx context.Context, ev *Event, obs []Observation, now time.Time) (*Solution, error) {
	originSec := 0.0
	if !ev.Estimate.OriginTime.IsZero() {
		originSec = float64(ev.Estimate.OriginTime.UnixNano()) / 1e9
	}
	img, err := e.builder.Build(obs, float64(now.UnixNano())/1e9, ev.Solution.Centroid, originSec)
	if err != nil {
		if err == ErrSkipTimestep {
			ev.Miss(e.params, now)
			return nil, nil
		}
		return nil, err
	}

	applicable := e.applicableSets(ev)
	if len(applicable) == 0 {
		ev.Miss(e.params, now)
		return nil, nil
	}

	// Match states live in a shared map on the event; resolve them all
	// before the fan-out so each goroutine touches only its own state.
	states := make([]*MatchState, len(applicable))
	for i, idx := range applicable {
		states[i] = ev.StateFor(e.sets[idx], img.Layers.Len())
	}

	outcomes := make([]setOutcome, len(applicable))
	g, ctx := errgroup.WithContext(ctx)
	for i, idx := range applicable {
		i, idx := i, idx
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set := e.sets[idx]
			state := states[i]
			matcher := NewMatcher(e.params, set, e.factory())
			full := !state.Ran || !state.Used
			m, err := matcher.Run(img, state, full)
			if err == ErrSkipTimestep {
				outcomes[i] = setOutcome{setIdx: idx, skip: true}
				return nil
			}
			if err != nil {
				return fmt.Errorf("matcher %s: %w", set.Name(), err)
			}
			outcomes[i] = setOutcome{setIdx: idx, match: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := e.selectAcrossSets(outcomes)
	if best == nil {
		ev.Miss(e.params, now)
		return nil, nil
	}
	for _, o := range outcomes {
		if o.match == nil {
			continue
		}
		ev.MatchStates[e.sets[o.setIdx].Name()].Used = o.match == best
	}

	est := e.est.Magnitude(best, obs, ev.Estimate.OriginTime, now)
	est = e.mergeOrigin(best, obs, ev.Estimate, est)
	ev.Apply(e.params, best, est, now)

	sol := ev.Solution
	return &sol, nil
}

// mergeOrigin runs the origin-time back-projection and folds it into the
// magnitude estimate for this step.
func (e *Engine) mergeOrigin(match *Match, obs []Observation, prev Estimate, est Estimate) Estimate {
	carry := prev
	carry.Mag = est.Mag
	carry.MagUncer = est.MagUncer
	carry.MagFromReg = est.MagFromReg
	return e.est.OriginTime(match, obs, carry)
}

// applicableSets filters template sets by the event's current magnitude
// and centroid. An event with no solution yet gets every set.
func (e *Engine) applicableSets(ev *Event) []int {
	var out []int
	for i, set := range e.sets {
		if !ev.FirstMatch || set.Applies(ev.Solution.Mag, ev.Solution.Centroid) {
			out = append(out, i)
		}
	}
	return out
}

// selectAcrossSets picks the cross-set winner by smallest misfit. Ties go
// to the later set in configuration order, matching the per-threshold
// selection rule so repeated runs stay deterministic.
func (e *Engine) selectAcrossSets(outcomes []setOutcome) *Match {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].setIdx < outcomes[j].setIdx })
	var best *Match
	for _, o := range outcomes {
		if o.match == nil {
			continue
		}
		if best == nil || o.match.Misfit <= best.Misfit {
			best = o.match
		}
	}
	return best
}

// spawnSplits creates follow-on events where an epicenter has drifted off
// its fault trace far enough to indicate a second source.
func (e *Engine) spawnSplits(now time.Time) {
	var spawned []*Event
	for _, ev := range e.events {
		if ev.SplitEpicenter == nil || !ev.Active() {
			continue
		}
		c := *ev.SplitEpicenter
		ev.SplitEpicenter = nil
		if e.nearExistingEvent(c) {
			continue
		}
		child := NewEvent(c, e.params.DefaultDepthKm, now)
		spawned = append(spawned, child)
		monitoring.Logf("finder: split event %s from %s at (%.3f, %.3f)",
			child.ID, ev.ID, c.Lat, c.Lon)
	}
	e.events = append(e.events, spawned...)
}

func (e *Engine) nearExistingEvent(c geo.Coord) bool {
	for _, ev := range e.events {
		if geo.DistanceKm(c, ev.Solution.Centroid) < ev.ExclusionRadiusKm(e.params) {
			return true
		}
	}
	return false
}

// pruneReleased forgets released events once they have aged past the hold
// window, so their suppression zone expires with them.
func (e *Engine) pruneReleased(now time.Time) {
	kept := e.events[:0]
	for _, ev := range e.events {
		if ev.Released() && now.Sub(ev.UpdatedAt).Seconds() > e.params.HoldTimeSec {
			continue
		}
		kept = append(kept, ev)
	}
	e.events = kept
}
