package claim

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var embeddedTuning []byte

// Tuning holds the plausibility ceilings. Values are fixed for the
// process lifetime; deployments override the embedded defaults with a
// file when their world scale differs.
type Tuning struct {
	// MaxSpeed is the movement ceiling in meters per second.
	MaxSpeed float64 `yaml:"max_speed_mps"`
	// MaxMiningRate and MaxBuildingRate cap blocks per second.
	MaxMiningRate   float64 `yaml:"max_mining_blocks_per_second"`
	MaxBuildingRate float64 `yaml:"max_building_blocks_per_second"`
	// WearPerBlock with WearTolerance defines the accepted tool-wear
	// band per block worked.
	WearPerBlock  float64 `yaml:"wear_per_block"`
	WearTolerance float64 `yaml:"wear_tolerance"`
	// RareYieldCeiling multiplies the feature's expected rare rate into
	// a statistical ceiling; claims under RareYieldMinBlocks blocks are
	// too small a sample for it.
	RareYieldCeiling   float64 `yaml:"rare_yield_ceiling"`
	RareYieldMinBlocks int     `yaml:"rare_yield_min_blocks"`
	// MaxReach bounds how far from the anchor position a claim may act.
	MaxReach float64 `yaml:"max_reach_m"`
	// WarnFraction of a ceiling marks the borderline band that is
	// accepted but reported back with a warning.
	WarnFraction float64 `yaml:"warn_fraction"`
}

// Validate rejects tunings whose ceilings cannot gate anything.
func (t Tuning) Validate() error {
	if t.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed_mps must be positive, got %v", t.MaxSpeed)
	}
	if t.MaxMiningRate <= 0 {
		return fmt.Errorf("max_mining_blocks_per_second must be positive, got %v", t.MaxMiningRate)
	}
	if t.MaxBuildingRate <= 0 {
		return fmt.Errorf("max_building_blocks_per_second must be positive, got %v", t.MaxBuildingRate)
	}
	if t.WearPerBlock <= 0 {
		return fmt.Errorf("wear_per_block must be positive, got %v", t.WearPerBlock)
	}
	if t.WearTolerance <= 0 || t.WearTolerance >= 1 {
		return fmt.Errorf("wear_tolerance must be within (0, 1), got %v", t.WearTolerance)
	}
	if t.RareYieldCeiling < 1 {
		return fmt.Errorf("rare_yield_ceiling must be at least 1, got %v", t.RareYieldCeiling)
	}
	if t.RareYieldMinBlocks <= 0 {
		return fmt.Errorf("rare_yield_min_blocks must be positive, got %d", t.RareYieldMinBlocks)
	}
	if t.MaxReach <= 0 {
		return fmt.Errorf("max_reach_m must be positive, got %v", t.MaxReach)
	}
	if t.WarnFraction <= 0 || t.WarnFraction >= 1 {
		return fmt.Errorf("warn_fraction must be within (0, 1), got %v", t.WarnFraction)
	}
	return nil
}

var defaultTuning = mustParseTuning(embeddedTuning)

// DefaultTuning returns the embedded ceilings.
func DefaultTuning() Tuning {
	return defaultTuning
}

// LoadTuning reads a tuning override file.
func LoadTuning(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

func mustParseTuning(raw []byte) Tuning {
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		panic(fmt.Sprintf("embedded tuning: %v", err))
	}
	if err := t.Validate(); err != nil {
		panic(fmt.Sprintf("embedded tuning: %v", err))
	}
	return t
}
