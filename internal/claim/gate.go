// Package claim gates physical-world claims before anything reaches the
// journal.
//
// The gate is synchronous and pure: it compares a claim's implied
// physical rates against fixed ceilings and either rejects the whole
// command or accepts it, possibly with non-fatal warnings for
// borderline values. Nothing here appends transactions; callers append
// only after the gate passes.
package claim

import (
	"fmt"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// Warning flags a borderline-but-accepted claim value.
type Warning struct {
	Check  string
	Detail string
}

// Gate validates claims against one tuning. Construct with NewGate.
type Gate struct {
	Tuning Tuning
}

// NewGate returns a gate over the given ceilings.
func NewGate(t Tuning) *Gate {
	return &Gate{Tuning: t}
}

// Movement validates a movement claim. The anchor is the hero's last
// known position, usually the end of the previous movement claim; nil
// skips the continuity check.
func (g *Gate) Movement(claim transaction.ClaimMovement, anchor *template.Position) ([]Warning, error) {
	seconds, err := interval(claim.StartedAt, claim.EndedAt)
	if err != nil {
		return nil, err
	}

	from := template.Position{X: claim.FromX, Y: claim.FromY}
	to := template.Position{X: claim.ToX, Y: claim.ToY}
	speed := from.DistanceTo(to) / seconds
	if speed > g.Tuning.MaxSpeed {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimSpeedExceeded,
			"claimed movement is faster than any hero travels",
			map[string]string{
				"speed_mps":   fmt.Sprintf("%.2f", speed),
				"ceiling_mps": fmt.Sprintf("%.2f", g.Tuning.MaxSpeed),
			})
	}

	if anchor != nil && from.DistanceTo(*anchor) > g.Tuning.MaxReach {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimOutOfReach,
			"movement starts away from the hero's last known position",
			map[string]string{
				"gap_m":   fmt.Sprintf("%.2f", from.DistanceTo(*anchor)),
				"reach_m": fmt.Sprintf("%.2f", g.Tuning.MaxReach),
			})
	}

	var warnings []Warning
	if speed > g.Tuning.WarnFraction*g.Tuning.MaxSpeed {
		warnings = append(warnings, Warning{
			Check:  "movement_speed",
			Detail: fmt.Sprintf("%.2f m/s approaches the %.2f m/s ceiling", speed, g.Tuning.MaxSpeed),
		})
	}
	return warnings, nil
}

// Mining validates a mining claim against the feature being worked.
func (g *Gate) Mining(claim transaction.ClaimMining, feature template.Feature) ([]Warning, error) {
	if claim.Blocks <= 0 {
		return nil, apperrors.New(apperrors.CodeClaimInvalid, "a mining claim needs at least one block")
	}
	if claim.RareYield < 0 {
		return nil, apperrors.New(apperrors.CodeClaimInvalid, "rare yield cannot be negative")
	}
	seconds, err := interval(claim.StartedAt, claim.EndedAt)
	if err != nil {
		return nil, err
	}
	if err := g.withinReach(template.Position{X: claim.X, Y: claim.Y}, feature); err != nil {
		return nil, err
	}

	rate := float64(claim.Blocks) / seconds
	if rate > g.Tuning.MaxMiningRate {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimRateExceeded,
			"claimed mining rate is implausible",
			map[string]string{
				"blocks_per_second": fmt.Sprintf("%.2f", rate),
				"ceiling":           fmt.Sprintf("%.2f", g.Tuning.MaxMiningRate),
			})
	}

	var warnings []Warning
	if rate > g.Tuning.WarnFraction*g.Tuning.MaxMiningRate {
		warnings = append(warnings, Warning{
			Check:  "mining_rate",
			Detail: fmt.Sprintf("%.2f blocks/s approaches the %.2f ceiling", rate, g.Tuning.MaxMiningRate),
		})
	}

	yieldWarnings, err := g.checkRareYield(claim, feature)
	if err != nil {
		return nil, err
	}
	return append(warnings, yieldWarnings...), nil
}

// checkRareYield applies the statistical ceiling on rare resource yield.
// Claims below the minimum block count are too small a sample to judge,
// but a yield above the blocks mined is impossible at any size.
func (g *Gate) checkRareYield(claim transaction.ClaimMining, feature template.Feature) ([]Warning, error) {
	if claim.RareYield == 0 {
		return nil, nil
	}
	if claim.RareYield > claim.Blocks {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimYieldImplausible,
			"rare yield exceeds the blocks mined",
			map[string]string{
				"yield":  fmt.Sprint(claim.RareYield),
				"blocks": fmt.Sprint(claim.Blocks),
			})
	}
	if feature.ExpectedRareRate <= 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimYieldImplausible,
			"feature yields no rare resource",
			map[string]string{"feature": feature.Ref, "yield": fmt.Sprint(claim.RareYield)})
	}

	expected := feature.ExpectedRareRate * float64(claim.Blocks)
	if claim.Blocks >= g.Tuning.RareYieldMinBlocks && float64(claim.RareYield) > g.Tuning.RareYieldCeiling*expected {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimYieldImplausible,
			"rare yield exceeds the statistical ceiling",
			map[string]string{
				"yield":    fmt.Sprint(claim.RareYield),
				"expected": fmt.Sprintf("%.2f", expected),
				"ceiling":  fmt.Sprintf("%.2f", g.Tuning.RareYieldCeiling*expected),
			})
	}
	if float64(claim.RareYield) > expected {
		return []Warning{{
			Check:  "rare_yield",
			Detail: fmt.Sprintf("yield %d runs ahead of the expected %.2f", claim.RareYield, expected),
		}}, nil
	}
	return nil, nil
}

// Building validates a building claim against the feature being built.
func (g *Gate) Building(claim transaction.ClaimBuilding, feature template.Feature) ([]Warning, error) {
	if claim.Blocks <= 0 {
		return nil, apperrors.New(apperrors.CodeClaimInvalid, "a building claim needs at least one block")
	}
	seconds, err := interval(claim.StartedAt, claim.EndedAt)
	if err != nil {
		return nil, err
	}
	if err := g.withinReach(template.Position{X: claim.X, Y: claim.Y}, feature); err != nil {
		return nil, err
	}

	rate := float64(claim.Blocks) / seconds
	if rate > g.Tuning.MaxBuildingRate {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimRateExceeded,
			"claimed building rate is implausible",
			map[string]string{
				"blocks_per_second": fmt.Sprintf("%.2f", rate),
				"ceiling":           fmt.Sprintf("%.2f", g.Tuning.MaxBuildingRate),
			})
	}

	var warnings []Warning
	if rate > g.Tuning.WarnFraction*g.Tuning.MaxBuildingRate {
		warnings = append(warnings, Warning{
			Check:  "building_rate",
			Detail: fmt.Sprintf("%.2f blocks/s approaches the %.2f ceiling", rate, g.Tuning.MaxBuildingRate),
		})
	}
	return warnings, nil
}

// ToolWear validates that reported tool wear sits inside the tolerance
// band around the expected wear for the blocks worked. Too little wear
// is as implausible as too much.
func (g *Gate) ToolWear(claim transaction.ClaimToolWear) ([]Warning, error) {
	if claim.Blocks <= 0 {
		return nil, apperrors.New(apperrors.CodeClaimInvalid, "a tool-wear claim needs at least one block")
	}
	if claim.Wear < 0 {
		return nil, apperrors.New(apperrors.CodeClaimInvalid, "tool wear cannot be negative")
	}

	expected := g.Tuning.WearPerBlock * float64(claim.Blocks)
	low := expected * (1 - g.Tuning.WearTolerance)
	high := expected * (1 + g.Tuning.WearTolerance)
	if claim.Wear < low || claim.Wear > high {
		return nil, apperrors.WithMetadata(apperrors.CodeClaimWearImplausible,
			"tool wear falls outside the plausible band",
			map[string]string{
				"wear":     fmt.Sprintf("%.2f", claim.Wear),
				"expected": fmt.Sprintf("%.2f", expected),
				"band":     fmt.Sprintf("%.2f..%.2f", low, high),
			})
	}
	return nil, nil
}

func (g *Gate) withinReach(pos template.Position, feature template.Feature) error {
	gap := pos.DistanceTo(feature.Position)
	if gap > g.Tuning.MaxReach {
		return apperrors.WithMetadata(apperrors.CodeClaimOutOfReach,
			"claim acts beyond reach of the feature",
			map[string]string{
				"feature": feature.Ref,
				"gap_m":   fmt.Sprintf("%.2f", gap),
				"reach_m": fmt.Sprintf("%.2f", g.Tuning.MaxReach),
			})
	}
	return nil
}

func interval(started, ended time.Time) (float64, error) {
	if started.IsZero() || ended.IsZero() || !ended.After(started) {
		return 0, apperrors.New(apperrors.CodeClaimInvalid, "claim interval must have a positive duration")
	}
	return ended.Sub(started).Seconds(), nil
}
