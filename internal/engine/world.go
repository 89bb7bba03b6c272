package engine

import (
	"context"
	"fmt"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
	"github.com/waymark-rpg/waymark/internal/trigger"
)

// SpawnCharacter places a template character into the world, at its
// template spawn point unless a position overrides it. Respawning a
// defeated character builds a fresh entry; a living one is rejected.
func (h Handler) SpawnCharacter(ctx context.Context, instanceID, characterRef string, at *template.Position) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	def, ok := sc.tpl.Character(characterRef)
	if !ok {
		return transaction.Transaction{}, characterUnknown(characterRef)
	}
	if cs := sc.state.Characters[characterRef]; cs.Spawned && cs.Alive {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeCharacterAlreadySpawned,
			fmt.Sprintf("character %q is already in the world", characterRef),
			map[string]string{"character_ref": characterRef})
	}
	pos := def.Spawn
	if at != nil {
		pos = *at
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindCharacterSpawned, transaction.CharacterSpawned{
			CharacterRef: characterRef,
			X:            pos.X,
			Y:            pos.Y,
		}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// VisitDialogue records one dialogue node being reached. The dialogue's
// speaking character must be standing in the world.
func (h Handler) VisitDialogue(ctx context.Context, instanceID, dialogueRef, nodeRef string) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	def, ok := sc.tpl.Dialogue(dialogueRef)
	if !ok {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeDialogueUnknown,
			fmt.Sprintf("dialogue %q is not part of this campaign", dialogueRef),
			map[string]string{"dialogue_ref": dialogueRef})
	}
	if _, ok := def.Nodes[nodeRef]; !ok {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeDialogueUnknown,
			fmt.Sprintf("dialogue %q has no node %q", dialogueRef, nodeRef),
			map[string]string{"dialogue_ref": dialogueRef, "node_ref": nodeRef})
	}
	if def.CharacterRef != "" {
		cs := sc.state.Characters[def.CharacterRef]
		if !cs.Spawned {
			return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeCharacterNotSpawned,
				fmt.Sprintf("character %q is not in the world", def.CharacterRef),
				map[string]string{"character_ref": def.CharacterRef, "dialogue_ref": dialogueRef})
		}
		if !cs.Alive {
			return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeCharacterAlreadyDown,
				fmt.Sprintf("character %q is down and cannot speak", def.CharacterRef),
				map[string]string{"character_ref": def.CharacterRef, "dialogue_ref": dialogueRef})
		}
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindDialogueVisited, transaction.DialogueVisited{
			DialogueRef:  dialogueRef,
			NodeRef:      nodeRef,
			CharacterRef: def.CharacterRef,
		}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// InteractFeature records one interaction with a world feature.
func (h Handler) InteractFeature(ctx context.Context, instanceID, featureRef string) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if _, ok := sc.tpl.Feature(featureRef); !ok {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeFeatureUnknown,
			fmt.Sprintf("feature %q is not part of this campaign", featureRef),
			map[string]string{"feature_ref": featureRef})
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: featureRef}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// ActivateTrigger fires an expanded trigger. Gated triggers need their
// required token granted first; a position, when supplied, must fall
// within the trigger's radius. Completed triggers never fire twice.
func (h Handler) ActivateTrigger(ctx context.Context, instanceID, triggerRef string, position *template.Position) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	set, err := trigger.ExpandAll(sc.tpl, sc.rec.ID)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("expand triggers: %w", err)
	}
	trg, ok := set.Trigger(triggerRef)
	if !ok {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeTriggerUnknown,
			fmt.Sprintf("trigger %q is not part of this campaign", triggerRef),
			map[string]string{"trigger_ref": triggerRef})
	}
	switch sc.state.TriggerStatusOf(triggerRef) {
	case replay.TriggerCompleted:
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeTriggerAlreadyCompleted,
			fmt.Sprintf("trigger %q already fired", triggerRef),
			map[string]string{"trigger_ref": triggerRef})
	case replay.TriggerInactive:
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeTriggerTokenMissing,
			fmt.Sprintf("trigger %q needs token %q", triggerRef, trg.RequiresToken),
			map[string]string{"trigger_ref": triggerRef, "required_token": trg.RequiresToken})
	case replay.TriggerUndiscovered:
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeTriggerUnknown,
			fmt.Sprintf("trigger %q is outside the derived set", triggerRef),
			map[string]string{"trigger_ref": triggerRef})
	}
	if position != nil && trg.Radius > 0 {
		if dist := position.DistanceTo(trg.Position); dist > trg.Radius {
			return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeTriggerOutOfRange,
				fmt.Sprintf("position is %.1fm from trigger %q, radius %.1fm", dist, triggerRef, trg.Radius),
				map[string]string{
					"trigger_ref": triggerRef,
					"distance_m":  fmt.Sprintf("%.2f", dist),
					"radius_m":    fmt.Sprintf("%.2f", trg.Radius),
				})
		}
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindTriggerActivated, transaction.TriggerActivated{
			TriggerRef: triggerRef,
			Token:      trg.GrantsToken,
		}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// AdjustReputation accumulates a signed amount into a faction's running
// total. Amounts are decided upstream; the engine only checks the
// faction exists and records the change.
func (h Handler) AdjustReputation(ctx context.Context, instanceID, factionRef string, amount int64) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if _, ok := sc.tpl.Faction(factionRef); !ok {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeFactionUnknown,
			fmt.Sprintf("faction %q is not part of this campaign", factionRef),
			map[string]string{"faction_ref": factionRef})
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindReputationChanged, transaction.ReputationChanged{
			FactionRef: factionRef,
			Amount:     amount,
		}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

func characterUnknown(characterRef string) error {
	return apperrors.WithMetadata(apperrors.CodeCharacterUnknown,
		fmt.Sprintf("character %q is not part of this campaign", characterRef),
		map[string]string{"character_ref": characterRef})
}
