package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func validConfig() *Config {
	return &Config{Thresholds: []float64{2, 10, 50}}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "finder.json")
	content := `{
		"thresholds": [2.0, 10.0, 50.0],
		"min_trigger_stations": 5,
		"trigger_radius_km": 30,
		"secondary_networks": ["ZZ"],
		"run_speed": "complete"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	p := cfg.Freeze()
	assert.Equal(t, []float64{2, 10, 50}, p.Thresholds)
	assert.Equal(t, 5, p.MinTriggerStations)
	assert.Equal(t, 30.0, p.TriggerRadiusKm)
	assert.True(t, p.SecondaryNetworks["ZZ"])
	assert.Equal(t, "complete", p.RunSpeed)

	// Unset fields resolve to defaults.
	assert.Equal(t, DefaultSWaveVelocity, p.SWaveVelocity)
	assert.Equal(t, DefaultMaxMisfit, p.MaxMisfit)
	assert.Equal(t, DefaultMaskMaxAgeDays, p.MaskMaxAgeDays)
}

func TestLoadRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := Load("finder.yaml")
	require.Error(t, err)
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no thresholds", func(c *Config) { c.Thresholds = nil }, "thresholds"},
		{"unsorted thresholds", func(c *Config) { c.Thresholds = []float64{10, 2} }, "thresholds"},
		{"non-positive threshold", func(c *Config) { c.Thresholds = []float64{0, 10} }, "thresholds"},
		{"bad min stations", func(c *Config) { c.MinTriggerStations = ptrInt(0) }, "min_trigger_stations"},
		{"bad misfit", func(c *Config) { c.MaxMisfit = ptrFloat64(1.5) }, "max_misfit"},
		{"bad tension", func(c *Config) { c.Tension = ptrFloat64(-0.1) }, "tension"},
		{"bad stop pc", func(c *Config) { c.StopLengthPc = ptrFloat64(1.0) }, "stop_len_pc"},
		{"bad run speed", func(c *Config) { c.RunSpeed = ptrString("turbo") }, "run_speed"},
		{"bad mag option", func(c *Config) { c.MagOption = ptrInt(7) }, "mag_option"},
		{"bad pixel bounds", func(c *Config) {
			c.MinImagePixels = ptrInt(100)
			c.MaxImagePixels = ptrInt(50)
		}, "max_image_pixels"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFreezeStationRadii(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxStationRadiusKm = ptrFloat64(40)
	cfg.StationRadiiKm = map[string]float64{
		"PAS": 25,
		"MHC": 90, // capped to the max
	}
	p := cfg.Freeze()

	assert.Equal(t, 25.0, p.StationRadius("PAS"))
	assert.Equal(t, 40.0, p.StationRadius("MHC"))
	// Unknown stations fall back to the global radius.
	assert.Equal(t, p.TriggerRadiusKm, p.StationRadius("XYZ"))
}

func TestFreezeIsSelfContained(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	p := cfg.Freeze()
	cfg.Thresholds[0] = 999

	assert.Equal(t, 2.0, p.Thresholds[0])
}
