package transaction

// Kind names a transaction type in <domain>.<action> form.
type Kind string

const (
	KindCharacterSpawned  Kind = "character.spawned"
	KindCharacterDefeated Kind = "character.defeated"
	KindCharacterLooted   Kind = "character.looted"

	KindFeatureInteracted Kind = "feature.interacted"
	KindDialogueVisited   Kind = "dialogue.visited"

	KindQuestAccepted           Kind = "quest.accepted"
	KindQuestObjectiveCompleted Kind = "quest.objective_completed"
	KindQuestBranchChosen       Kind = "quest.branch_chosen"
	KindQuestCompleted          Kind = "quest.completed"
	KindQuestAbandoned          Kind = "quest.abandoned"
	KindQuestFailed             Kind = "quest.failed"

	KindReputationChanged Kind = "reputation.changed"
	KindTriggerActivated  Kind = "trigger.activated"

	KindBattleStarted Kind = "battle.started"
	KindBattleTurn    Kind = "battle.turn"
	KindBattleEnded   Kind = "battle.ended"

	KindClaimMovement Kind = "claim.movement"
	KindClaimMining   Kind = "claim.mining"
	KindClaimBuilding Kind = "claim.building"
	KindClaimToolWear Kind = "claim.tool_wear"

	KindHeroItemGranted Kind = "hero.item_granted"
	KindHeroStatChanged Kind = "hero.stat_changed"

	KindReversed Kind = "transaction.reversed"
)

// Kinds returns every built-in kind in stable declaration order.
func Kinds() []Kind {
	return []Kind{
		KindCharacterSpawned,
		KindCharacterDefeated,
		KindCharacterLooted,
		KindFeatureInteracted,
		KindDialogueVisited,
		KindQuestAccepted,
		KindQuestObjectiveCompleted,
		KindQuestBranchChosen,
		KindQuestCompleted,
		KindQuestAbandoned,
		KindQuestFailed,
		KindReputationChanged,
		KindTriggerActivated,
		KindBattleStarted,
		KindBattleTurn,
		KindBattleEnded,
		KindClaimMovement,
		KindClaimMining,
		KindClaimBuilding,
		KindClaimToolWear,
		KindHeroItemGranted,
		KindHeroStatChanged,
		KindReversed,
	}
}

// IsClaim reports whether the kind records a physical-action claim that
// must pass the plausibility gate before append.
func (k Kind) IsClaim() bool {
	switch k {
	case KindClaimMovement, KindClaimMining, KindClaimBuilding, KindClaimToolWear:
		return true
	}
	return false
}

// IsBattle reports whether the kind belongs to the combat sub-engine.
func (k Kind) IsBattle() bool {
	switch k {
	case KindBattleStarted, KindBattleTurn, KindBattleEnded:
		return true
	}
	return false
}
