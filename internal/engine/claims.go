package engine

import (
	"context"
	"fmt"

	"github.com/waymark-rpg/waymark/internal/claim"
	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/telemetry"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// Claim is one asserted player activity. Exactly one payload must be
// set.
type Claim struct {
	Movement *transaction.ClaimMovement
	Mining   *transaction.ClaimMining
	Building *transaction.ClaimBuilding
	ToolWear *transaction.ClaimToolWear
}

// ClaimResult reports an accepted claim: the committed records, any
// borderline warnings the gate raised, and quests whose fail condition
// tripped at the claimed position.
type ClaimResult struct {
	Committed    []transaction.Transaction
	Warnings     []claim.Warning
	QuestsFailed []string
}

// SubmitClaim validates one claim against the plausibility gate and
// commits it. Rejections carry the gate's typed code and append
// nothing; accepted claims may carry warnings, which are emitted as
// telemetry. Positioned claims also evaluate quest fail conditions at
// the claimed position, committing any failures in the same batch.
func (h Handler) SubmitClaim(ctx context.Context, instanceID string, c Claim) (ClaimResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return ClaimResult{}, err
	}

	kind, attrs, warnings, position, err := h.checkClaim(sc, c)
	if err != nil {
		return ClaimResult{}, err
	}

	batch := []transaction.Transaction{h.newTx(sc.rec.HeroID, kind, attrs)}
	failTxs, failedRefs := h.questFailureTxs(sc, position)
	batch = append(batch, failTxs...)

	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return ClaimResult{}, err
	}
	for _, w := range warnings {
		h.emit(ctx, storage.TelemetryEvent{
			EventName:  "claim.warning",
			Severity:   string(telemetry.SeverityWarn),
			InstanceID: sc.rec.ID,
			HeroID:     sc.rec.HeroID,
			Attributes: map[string]any{
				"kind":   string(kind),
				"check":  w.Check,
				"detail": w.Detail,
			},
		})
	}
	return ClaimResult{Committed: committed, Warnings: warnings, QuestsFailed: failedRefs}, nil
}

// checkClaim dispatches one claim payload through the gate and returns
// the transaction form plus the position the claim asserts, when it
// asserts one.
func (h Handler) checkClaim(sc instanceScope, c Claim) (transaction.Kind, map[string]string, []claim.Warning, *template.Position, error) {
	set := 0
	for _, present := range []bool{c.Movement != nil, c.Mining != nil, c.Building != nil, c.ToolWear != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return "", nil, nil, nil, apperrors.New(apperrors.CodeClaimInvalid,
			"exactly one claim payload is required")
	}

	gate := h.gate()
	switch {
	case c.Movement != nil:
		warnings, err := gate.Movement(*c.Movement, sc.state.HeroPosition)
		if err != nil {
			return "", nil, nil, nil, err
		}
		pos := &template.Position{X: c.Movement.ToX, Y: c.Movement.ToY}
		return transaction.KindClaimMovement, c.Movement.Encode(), warnings, pos, nil

	case c.Mining != nil:
		feature, err := claimFeature(sc, c.Mining.FeatureRef)
		if err != nil {
			return "", nil, nil, nil, err
		}
		warnings, err := gate.Mining(*c.Mining, feature)
		if err != nil {
			return "", nil, nil, nil, err
		}
		pos := &template.Position{X: c.Mining.X, Y: c.Mining.Y}
		return transaction.KindClaimMining, c.Mining.Encode(), warnings, pos, nil

	case c.Building != nil:
		feature, err := claimFeature(sc, c.Building.FeatureRef)
		if err != nil {
			return "", nil, nil, nil, err
		}
		warnings, err := gate.Building(*c.Building, feature)
		if err != nil {
			return "", nil, nil, nil, err
		}
		pos := &template.Position{X: c.Building.X, Y: c.Building.Y}
		return transaction.KindClaimBuilding, c.Building.Encode(), warnings, pos, nil

	default:
		warnings, err := gate.ToolWear(*c.ToolWear)
		if err != nil {
			return "", nil, nil, nil, err
		}
		// Tool wear asserts no position; fail conditions fall back to
		// the last claimed one.
		return transaction.KindClaimToolWear, c.ToolWear.Encode(), warnings, sc.state.HeroPosition, nil
	}
}

func claimFeature(sc instanceScope, featureRef string) (template.Feature, error) {
	feature, ok := sc.tpl.Feature(featureRef)
	if !ok {
		return template.Feature{}, apperrors.WithMetadata(apperrors.CodeFeatureUnknown,
			fmt.Sprintf("feature %q is not part of this campaign", featureRef),
			map[string]string{"feature_ref": featureRef})
	}
	return feature, nil
}
