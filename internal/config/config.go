// Package config loads and validates the rupture engine configuration.
//
// The on-disk schema is a flat JSON object with optional fields; anything
// omitted falls back to the documented default via the Get* accessors. Before
// processing starts the configuration is frozen into an immutable Params
// value that is shared read-only across all event-processing tasks.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Defaults used when the corresponding JSON field is absent. Velocities are
// km/s, distances km, amplitudes cm/s/s.
const (
	DefaultSWaveVelocity     = 3.55
	DefaultPWaveVelocity     = 6.10
	DefaultTriggerRadius     = 60.0
	DefaultMaxStationRadius  = 100.0
	DefaultMinTriggerStats   = 4
	DefaultBorderDegrees     = 0.5
	DefaultTension           = 0.6
	DefaultMinImagePixels    = 10
	DefaultMaxImagePixels    = 10000
	DefaultMinLog10PGA       = -4.0
	DefaultMaxMisfit         = 0.30
	DefaultSigmaLength       = 0.25
	DefaultSigmaAzimuth      = 30.0
	DefaultSigmaLatLon       = 0.25
	DefaultStopLengthPc      = 0.20
	DefaultRestartLengthPc   = 0.60
	DefaultEpiFaultDistKm    = 50.0
	DefaultMagRegressionMax  = 4.5
	DefaultHoldTimeSec       = 60
	DefaultMinPercent        = 50.0
	DefaultNumNeighbors      = 5
	DefaultMinRatio          = 2.0
	DefaultMinRatioA         = 25.0
	DefaultMinRatioDistKm    = 10.0
	DefaultMaskMaxAgeDays    = 7
	DefaultDepthKm           = 8.0
	DefaultDepthUncerKm      = 5.0
	DefaultOriginTimeMinDist = 50.0
	DefaultOriginTimeUncer   = 2.515
	DefaultMaxLenForOrigin   = 20.0
	DefaultPointSourceLen    = 5.0
	DefaultPhaseScaleP       = 1.0
	DefaultRegSWeight        = 2.0
	DefaultRegMinSSta        = 3
	DefaultRegSOnlyCount     = 10
	DefaultRegMinMag         = 2.0
	DefaultRegMaxMag         = 8.5
	DefaultRegMagStep        = 0.1
	DefaultMinLikelihood     = 0.0
	DefaultDLogLength        = 0.1
)

// Magnitude relation selector values for MagOption.
const (
	MagFromTemplate       = 0 // template-intrinsic magnitude
	MagWellsCoppersmith   = 1
	MagBlaser             = 2
)

// ConfigError reports malformed configuration data. It is fatal at startup.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Config is the mutable, JSON-backed form of the engine configuration.
// Fields are pointers so partial config files are safe; use the Get* methods
// or Freeze for resolved values.
type Config struct {
	// Triggering
	Thresholds         []float64 `json:"thresholds,omitempty"` // PGA levels, cm/s/s
	MinTriggerStations *int      `json:"min_trigger_stations,omitempty"`
	TriggerRadiusKm    *float64  `json:"trigger_radius_km,omitempty"`
	MaxStationRadiusKm *float64  `json:"max_station_trigger_radius_km,omitempty"`
	StationRadiiKm     map[string]float64 `json:"station_trigger_radii_km,omitempty"`
	SecondaryNetworks  []string  `json:"secondary_networks,omitempty"`

	// Noisy-station rejection
	MinPercent     *float64 `json:"min_percent,omitempty"`
	NumNeighbors   *int     `json:"num_neighbors,omitempty"`
	MinRatio       *float64 `json:"min_ratio,omitempty"`
	MinRatioA      *float64 `json:"min_ratio_a,omitempty"`
	MinRatioDistKm *float64 `json:"min_ratio_dist_km,omitempty"`

	// Wave propagation
	SWaveVelocity *float64 `json:"s_wave_velocity,omitempty"`
	PWaveVelocity *float64 `json:"p_wave_velocity,omitempty"`
	PhaseScaleP   *float64 `json:"phase_scale_p,omitempty"`

	// Image construction
	BorderDegrees  *float64 `json:"border_degrees,omitempty"`
	Tension        *float64 `json:"tension,omitempty"`
	MinImagePixels *int     `json:"image_pixels,omitempty"`
	MaxImagePixels *int     `json:"max_image_pixels,omitempty"`
	MinLog10PGA    *float64 `json:"min_log10_pga,omitempty"`

	// Template matching
	MaxMisfit     *float64 `json:"max_misfit,omitempty"`
	SigmaLength   *float64 `json:"sigma_length,omitempty"`
	SigmaAzimuth  *float64 `json:"sigma_azimuth,omitempty"`
	SigmaLatLon   *float64 `json:"sigma_latlon,omitempty"`
	RunSpeed      *string  `json:"run_speed,omitempty"` // "fast" or "complete"
	FastWindow    *int     `json:"fast_search_window,omitempty"`

	// Magnitude
	MagOption            *int     `json:"mag_option,omitempty"`
	MagRegressionThresh  *float64 `json:"mag_regression_thresh,omitempty"`
	DLogLength           *float64 `json:"dlog_length,omitempty"`
	RegressionSWeight    *float64 `json:"regression_s_weight,omitempty"`
	RegressionMinSSta    *int     `json:"regression_min_s_stations,omitempty"`
	RegressionSOnlyCount *int     `json:"regression_s_only_count,omitempty"`
	RegressionMinMag     *float64 `json:"regression_min_mag,omitempty"`
	RegressionMaxMag     *float64 `json:"regression_max_mag,omitempty"`
	RegressionMagStep    *float64 `json:"regression_mag_step,omitempty"`

	// Event lifecycle
	StopLengthPc        *float64 `json:"stop_len_pc,omitempty"`
	RestartLengthPc     *float64 `json:"restart_len_pc,omitempty"`
	EpiFaultDistKm      *float64 `json:"epi_fault_dist_thresh_km,omitempty"`
	HoldTimeSec         *float64 `json:"hold_time_sec,omitempty"`
	MinLikelihoodForMsg *float64 `json:"min_likelihood_for_message,omitempty"`

	// Event defaults
	DefaultDepthKm      *float64 `json:"default_depth_km,omitempty"`
	DefaultDepthUncerKm *float64 `json:"default_depth_uncer_km,omitempty"`

	// Origin time
	OriginTimeMinDistKm *float64 `json:"origin_time_min_dist_km,omitempty"`
	MaxLenForOriginKm   *float64 `json:"max_length_to_update_origin_km,omitempty"`
	PointSourceLenKm    *float64 `json:"point_source_length_km,omitempty"`

	// Mask store
	MaskMaxAgeDays *int `json:"mask_max_age_days,omitempty"`
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, &ConfigError{Field: "path", Msg: fmt.Sprintf("must have .json extension, got %q", ext)}
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values that have been set.
func (c *Config) Validate() error {
	if len(c.Thresholds) == 0 {
		return &ConfigError{Field: "thresholds", Msg: "at least one PGA threshold is required"}
	}
	if !sort.Float64sAreSorted(c.Thresholds) {
		return &ConfigError{Field: "thresholds", Msg: "must be in ascending order"}
	}
	for _, th := range c.Thresholds {
		if th <= 0 {
			return &ConfigError{Field: "thresholds", Msg: fmt.Sprintf("threshold %v is not positive", th)}
		}
	}
	if c.MinTriggerStations != nil && *c.MinTriggerStations < 1 {
		return &ConfigError{Field: "min_trigger_stations", Msg: "must be at least 1"}
	}
	if c.TriggerRadiusKm != nil && *c.TriggerRadiusKm <= 0 {
		return &ConfigError{Field: "trigger_radius_km", Msg: "must be positive"}
	}
	if c.MaxMisfit != nil && (*c.MaxMisfit <= 0 || *c.MaxMisfit > 1) {
		return &ConfigError{Field: "max_misfit", Msg: "must be in (0, 1]"}
	}
	if c.Tension != nil && (*c.Tension < 0 || *c.Tension > 1) {
		return &ConfigError{Field: "tension", Msg: "must be in [0, 1]"}
	}
	if c.StopLengthPc != nil && (*c.StopLengthPc < 0 || *c.StopLengthPc >= 1) {
		return &ConfigError{Field: "stop_len_pc", Msg: "must be in [0, 1)"}
	}
	if c.RestartLengthPc != nil && *c.RestartLengthPc < 0 {
		return &ConfigError{Field: "restart_len_pc", Msg: "must be non-negative"}
	}
	if c.RunSpeed != nil && *c.RunSpeed != "fast" && *c.RunSpeed != "complete" {
		return &ConfigError{Field: "run_speed", Msg: `must be "fast" or "complete"`}
	}
	if c.MagOption != nil {
		switch *c.MagOption {
		case MagFromTemplate, MagWellsCoppersmith, MagBlaser:
		default:
			return &ConfigError{Field: "mag_option", Msg: fmt.Sprintf("unknown relation %d", *c.MagOption)}
		}
	}
	if c.MinImagePixels != nil && *c.MinImagePixels < 1 {
		return &ConfigError{Field: "image_pixels", Msg: "must be at least 1"}
	}
	if c.MaxImagePixels != nil && c.MinImagePixels != nil && *c.MaxImagePixels < *c.MinImagePixels {
		return &ConfigError{Field: "max_image_pixels", Msg: "must be >= image_pixels"}
	}
	if c.RegressionMagStep != nil && *c.RegressionMagStep <= 0 {
		return &ConfigError{Field: "regression_mag_step", Msg: "must be positive"}
	}
	return nil
}

// Params is the frozen, immutable form of the configuration shared across
// all event-processing tasks. All fields are plain values.
type Params struct {
	Thresholds         []float64
	MinTriggerStations int
	TriggerRadiusKm    float64
	MaxStationRadiusKm float64
	StationRadiiKm     map[string]float64
	SecondaryNetworks  map[string]bool

	MinPercent     float64
	NumNeighbors   int
	MinRatio       float64
	MinRatioA      float64
	MinRatioDistKm float64

	SWaveVelocity float64
	PWaveVelocity float64
	PhaseScaleP   float64

	BorderDegrees  float64
	Tension        float64
	MinImagePixels int
	MaxImagePixels int
	MinLog10PGA    float64

	MaxMisfit    float64
	SigmaLength  float64
	SigmaAzimuth float64
	SigmaLatLon  float64
	RunSpeed     string
	FastWindow   int

	MagOption            int
	MagRegressionThresh  float64
	DLogLength           float64
	RegressionSWeight    float64
	RegressionMinSSta    int
	RegressionSOnlyCount int
	RegressionMinMag     float64
	RegressionMaxMag     float64
	RegressionMagStep    float64

	StopLengthPc        float64
	RestartLengthPc     float64
	EpiFaultDistKm      float64
	HoldTimeSec         float64
	MinLikelihoodForMsg float64

	DefaultDepthKm      float64
	DefaultDepthUncerKm float64

	OriginTimeMinDistKm float64
	MaxLenForOriginKm   float64
	PointSourceLenKm    float64

	MaskMaxAgeDays int
}

func f64(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func i(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Freeze resolves every field to its configured or default value. The
// returned Params is self-contained: slices and maps are copied.
func (c *Config) Freeze() Params {
	thresholds := make([]float64, len(c.Thresholds))
	copy(thresholds, c.Thresholds)

	radii := make(map[string]float64, len(c.StationRadiiKm))
	maxRadius := f64(c.MaxStationRadiusKm, DefaultMaxStationRadius)
	for sta, r := range c.StationRadiiKm {
		if r > maxRadius {
			r = maxRadius
		}
		radii[sta] = r
	}

	secondary := make(map[string]bool, len(c.SecondaryNetworks))
	for _, net := range c.SecondaryNetworks {
		secondary[net] = true
	}

	runSpeed := "fast"
	if c.RunSpeed != nil {
		runSpeed = *c.RunSpeed
	}

	return Params{
		Thresholds:         thresholds,
		MinTriggerStations: i(c.MinTriggerStations, DefaultMinTriggerStats),
		TriggerRadiusKm:    f64(c.TriggerRadiusKm, DefaultTriggerRadius),
		MaxStationRadiusKm: maxRadius,
		StationRadiiKm:     radii,
		SecondaryNetworks:  secondary,

		MinPercent:     f64(c.MinPercent, DefaultMinPercent),
		NumNeighbors:   i(c.NumNeighbors, DefaultNumNeighbors),
		MinRatio:       f64(c.MinRatio, DefaultMinRatio),
		MinRatioA:      f64(c.MinRatioA, DefaultMinRatioA),
		MinRatioDistKm: f64(c.MinRatioDistKm, DefaultMinRatioDistKm),

		SWaveVelocity: f64(c.SWaveVelocity, DefaultSWaveVelocity),
		PWaveVelocity: f64(c.PWaveVelocity, DefaultPWaveVelocity),
		PhaseScaleP:   f64(c.PhaseScaleP, DefaultPhaseScaleP),

		BorderDegrees:  f64(c.BorderDegrees, DefaultBorderDegrees),
		Tension:        f64(c.Tension, DefaultTension),
		MinImagePixels: i(c.MinImagePixels, DefaultMinImagePixels),
		MaxImagePixels: i(c.MaxImagePixels, DefaultMaxImagePixels),
		MinLog10PGA:    f64(c.MinLog10PGA, DefaultMinLog10PGA),

		MaxMisfit:    f64(c.MaxMisfit, DefaultMaxMisfit),
		SigmaLength:  f64(c.SigmaLength, DefaultSigmaLength),
		SigmaAzimuth: f64(c.SigmaAzimuth, DefaultSigmaAzimuth),
		SigmaLatLon:  f64(c.SigmaLatLon, DefaultSigmaLatLon),
		RunSpeed:     runSpeed,
		FastWindow:   i(c.FastWindow, 2),

		MagOption:            i(c.MagOption, MagWellsCoppersmith),
		MagRegressionThresh:  f64(c.MagRegressionThresh, DefaultMagRegressionMax),
		DLogLength:           f64(c.DLogLength, DefaultDLogLength),
		RegressionSWeight:    f64(c.RegressionSWeight, DefaultRegSWeight),
		RegressionMinSSta:    i(c.RegressionMinSSta, DefaultRegMinSSta),
		RegressionSOnlyCount: i(c.RegressionSOnlyCount, DefaultRegSOnlyCount),
		RegressionMinMag:     f64(c.RegressionMinMag, DefaultRegMinMag),
		RegressionMaxMag:     f64(c.RegressionMaxMag, DefaultRegMaxMag),
		RegressionMagStep:    f64(c.RegressionMagStep, DefaultRegMagStep),

		StopLengthPc:        f64(c.StopLengthPc, DefaultStopLengthPc),
		RestartLengthPc:     f64(c.RestartLengthPc, DefaultRestartLengthPc),
		EpiFaultDistKm:      f64(c.EpiFaultDistKm, DefaultEpiFaultDistKm),
		HoldTimeSec:         f64(c.HoldTimeSec, DefaultHoldTimeSec),
		MinLikelihoodForMsg: f64(c.MinLikelihoodForMsg, DefaultMinLikelihood),

		DefaultDepthKm:      f64(c.DefaultDepthKm, DefaultDepthKm),
		DefaultDepthUncerKm: f64(c.DefaultDepthUncerKm, DefaultDepthUncerKm),

		OriginTimeMinDistKm: f64(c.OriginTimeMinDistKm, DefaultOriginTimeMinDist),
		MaxLenForOriginKm:   f64(c.MaxLenForOriginKm, DefaultMaxLenForOrigin),
		PointSourceLenKm:    f64(c.PointSourceLenKm, DefaultPointSourceLen),

		MaskMaxAgeDays: i(c.MaskMaxAgeDays, DefaultMaskMaxAgeDays),
	}
}

// StationRadius returns the trigger radius for a station, falling back to
// the global radius when no station-specific value is configured.
func (p Params) StationRadius(station string) float64 {
	if r, ok := p.StationRadiiKm[station]; ok {
		return r
	}
	return p.TriggerRadiusKm
}
