package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// TemplateTuning describes one template set to generate at startup.
// All fields are optional pointers so a partial JSON entry falls back to
// the generic-set defaults; the Get* methods apply those defaults.
type TemplateTuning struct {
	Name          *string  `json:"name,omitempty"`
	ResolutionKm  *float64 `json:"resolution_km,omitempty"`
	DipDeg        *float64 `json:"dip_deg,omitempty"`
	StrikeStepDeg *float64 `json:"strike_step_deg,omitempty"`
	// LengthsKm is the ascending rupture length grid. A nil slice takes
	// the default grid; an explicit empty slice is invalid.
	LengthsKm   []float64 `json:"lengths_km,omitempty"`
	AspectRatio *float64  `json:"aspect_ratio,omitempty"`
	DepthTopKm  *float64  `json:"depth_top_km,omitempty"`
	DepthMaxKm  *float64  `json:"depth_max_km,omitempty"`
	MinMag      *float64  `json:"min_mag,omitempty"`
	MaxMag      *float64  `json:"max_mag,omitempty"`
	// Region is an optional lat/lon polygon restricting where the set
	// applies. Empty means everywhere.
	Region [][2]float64 `json:"region,omitempty"`
}

// TemplateTuningFile is the root of a template tuning JSON file: one entry
// per template set to generate.
type TemplateTuningFile struct {
	Sets []TemplateTuning `json:"template_sets"`
}

// LoadTemplateTuning loads and validates a template tuning file. Fields
// omitted from an entry keep their defaults, so partial entries are safe.
func LoadTemplateTuning(path string) (*TemplateTuningFile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("template tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat template tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("template tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template tuning file: %w", err)
	}

	var file TemplateTuningFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template tuning JSON: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template tuning: %w", err)
	}
	return &file, nil
}

// Validate checks every entry and that set names do not collide.
func (f *TemplateTuningFile) Validate() error {
	if len(f.Sets) == 0 {
		return fmt.Errorf("template_sets must contain at least one entry")
	}
	seen := make(map[string]bool, len(f.Sets))
	for i := range f.Sets {
		t := &f.Sets[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template_sets[%d]: %w", i, err)
		}
		name := t.GetName()
		if seen[name] {
			return fmt.Errorf("template_sets[%d]: duplicate set name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

// Validate checks the values of a single entry.
func (t *TemplateTuning) Validate() error {
	if t.ResolutionKm != nil && *t.ResolutionKm <= 0 {
		return fmt.Errorf("resolution_km must be positive, got %f", *t.ResolutionKm)
	}
	if t.DipDeg != nil && (*t.DipDeg <= 0 || *t.DipDeg > 90) {
		return fmt.Errorf("dip_deg must be in (0, 90], got %f", *t.DipDeg)
	}
	if t.StrikeStepDeg != nil && (*t.StrikeStepDeg <= 0 || *t.StrikeStepDeg > 90) {
		return fmt.Errorf("strike_step_deg must be in (0, 90], got %f", *t.StrikeStepDeg)
	}
	if t.LengthsKm != nil {
		if len(t.LengthsKm) == 0 {
			return fmt.Errorf("lengths_km must not be empty")
		}
		if t.LengthsKm[0] <= 0 {
			return fmt.Errorf("lengths_km must be positive, got %f", t.LengthsKm[0])
		}
		if !sort.Float64sAreSorted(t.LengthsKm) {
			return fmt.Errorf("lengths_km must be ascending")
		}
	}
	if t.AspectRatio != nil && *t.AspectRatio < 1 {
		return fmt.Errorf("aspect_ratio must be at least 1, got %f", *t.AspectRatio)
	}
	if t.DepthTopKm != nil && *t.DepthTopKm < 0 {
		return fmt.Errorf("depth_top_km must be non-negative, got %f", *t.DepthTopKm)
	}
	if t.DepthMaxKm != nil && *t.DepthMaxKm <= t.GetDepthTopKm() {
		return fmt.Errorf("depth_max_km must exceed depth_top_km, got %f", *t.DepthMaxKm)
	}
	if t.MinMag != nil && t.MaxMag != nil && *t.MinMag > *t.MaxMag {
		return fmt.Errorf("min_mag %f exceeds max_mag %f", *t.MinMag, *t.MaxMag)
	}
	for i, p := range t.Region {
		if p[0] < -90 || p[0] > 90 || p[1] < -180 || p[1] > 180 {
			return fmt.Errorf("region[%d]: bad coordinate (%f, %f)", i, p[0], p[1])
		}
	}
	return nil
}

// GetName returns the set name or the default.
func (t *TemplateTuning) GetName() string {
	if t.Name == nil || *t.Name == "" {
		return "generic"
	}
	return *t.Name
}

// GetResolutionKm returns the raster cell size or the default.
func (t *TemplateTuning) GetResolutionKm() float64 {
	if t.ResolutionKm == nil {
		return 5.0
	}
	return *t.ResolutionKm
}

// GetDipDeg returns the fault dip or the default vertical fault.
func (t *TemplateTuning) GetDipDeg() float64 {
	if t.DipDeg == nil {
		return 90.0
	}
	return *t.DipDeg
}

// GetStrikeStepDeg returns the strike grid step or the default.
func (t *TemplateTuning) GetStrikeStepDeg() float64 {
	if t.StrikeStepDeg == nil {
		return 10.0
	}
	return *t.StrikeStepDeg
}

// GetLengthsKm returns the length grid or the default doubling grid.
func (t *TemplateTuning) GetLengthsKm() []float64 {
	if t.LengthsKm == nil {
		return []float64{5, 10, 20, 40, 80, 160, 320}
	}
	return t.LengthsKm
}

// GetAspectRatio returns the length/width ratio or the default.
func (t *TemplateTuning) GetAspectRatio() float64 {
	if t.AspectRatio == nil {
		return 3.5
	}
	return *t.AspectRatio
}

// GetDepthTopKm returns the top of the seismogenic zone or the default.
func (t *TemplateTuning) GetDepthTopKm() float64 {
	if t.DepthTopKm == nil {
		return 0.0
	}
	return *t.DepthTopKm
}

// GetDepthMaxKm returns the bottom of the seismogenic zone or the default.
func (t *TemplateTuning) GetDepthMaxKm() float64 {
	if t.DepthMaxKm == nil {
		return 20.0
	}
	return *t.DepthMaxKm
}

// GetMinMag returns the lower magnitude bound or the default open bound.
func (t *TemplateTuning) GetMinMag() float64 {
	if t.MinMag == nil {
		return 0.0
	}
	return *t.MinMag
}

// GetMaxMag returns the upper magnitude bound or the default.
func (t *TemplateTuning) GetMaxMag() float64 {
	if t.MaxMag == nil {
		return 10.0
	}
	return *t.MaxMag
}
