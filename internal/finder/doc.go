// Package finder implements the rupture detection and estimation engine:
// trigger evaluation, exceedance-image construction, template-matching grid
// search, magnitude/uncertainty estimation, and the per-event continuation
// state machine.
//
// Data flows strictly through the pipeline each timestep:
//
//	TriggerScan -> ImageBuilder -> Matcher (one per template set) ->
//	Estimator -> event lifecycle update
//
// with the lifecycle feeding hysteresis state back into the next timestep's
// matchers. The numerical primitives (scattered-data gridding, raster
// rotation and correlation) are consumed through the GridInterpolator and
// RasterEngine interfaces.
package finder
