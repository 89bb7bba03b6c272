package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown = "UNKNOWN"

	CodeInstanceHeroEmpty     = "INSTANCE_HERO_EMPTY"
	CodeInstanceCampaignEmpty = "INSTANCE_CAMPAIGN_EMPTY"
	CodeInstanceExists        = "INSTANCE_ALREADY_EXISTS"

	CodeTransactionKindUnknown    = "TRANSACTION_KIND_UNKNOWN"
	CodeTransactionHeroRequired   = "TRANSACTION_HERO_REQUIRED"
	CodeTransactionEntityRequired = "TRANSACTION_ENTITY_REQUIRED"
	CodeTransactionNotPending     = "TRANSACTION_NOT_PENDING"
	CodeTransactionNotCommitted   = "TRANSACTION_NOT_COMMITTED"
	CodeTransactionBatchEmpty     = "TRANSACTION_BATCH_EMPTY"
	CodeCommitConflict            = "COMMIT_CONFLICT"

	CodeCampaignUnknown    = "CAMPAIGN_UNKNOWN"
	CodeQuestUnknown       = "QUEST_UNKNOWN"
	CodeTriggerUnknown     = "TRIGGER_UNKNOWN"
	CodeCharacterUnknown   = "CHARACTER_UNKNOWN"
	CodeFeatureUnknown     = "FEATURE_UNKNOWN"
	CodeDialogueUnknown    = "DIALOGUE_UNKNOWN"
	CodeFactionUnknown     = "FACTION_UNKNOWN"
	CodePatternUnknown     = "PATTERN_UNKNOWN"
	CodeAchievementUnknown = "ACHIEVEMENT_UNKNOWN"

	CodeQuestAlreadyActive    = "QUEST_ALREADY_ACTIVE"
	CodeQuestAlreadyCompleted = "QUEST_ALREADY_COMPLETED"
	CodeQuestNotActive        = "QUEST_NOT_ACTIVE"
	CodeQuestStageMismatch    = "QUEST_STAGE_MISMATCH"
	CodeQuestObjectiveUnknown = "QUEST_OBJECTIVE_UNKNOWN"
	CodeQuestObjectiveDone    = "QUEST_OBJECTIVE_ALREADY_DONE"
	CodeQuestBranchUnknown    = "QUEST_BRANCH_UNKNOWN"
	CodeQuestBranchExclusive  = "QUEST_BRANCH_EXCLUSIVE"

	CodeTriggerTokenMissing     = "TRIGGER_TOKEN_MISSING"
	CodeTriggerAlreadyCompleted = "TRIGGER_ALREADY_COMPLETED"
	CodeTriggerOutOfRange       = "TRIGGER_OUT_OF_RANGE"

	CodeCharacterNotSpawned     = "CHARACTER_NOT_SPAWNED"
	CodeCharacterAlreadySpawned = "CHARACTER_ALREADY_SPAWNED"
	CodeCharacterAlreadyDown    = "CHARACTER_ALREADY_DOWN"
	CodeCharacterAlreadyLoot    = "CHARACTER_ALREADY_LOOTED"
	CodeCharacterStillStands    = "CHARACTER_STILL_STANDING"

	CodeClaimSpeedExceeded    = "CLAIM_SPEED_EXCEEDED"
	CodeClaimRateExceeded     = "CLAIM_RATE_EXCEEDED"
	CodeClaimWearImplausible  = "CLAIM_WEAR_IMPLAUSIBLE"
	CodeClaimYieldImplausible = "CLAIM_YIELD_IMPLAUSIBLE"
	CodeClaimOutOfReach       = "CLAIM_OUT_OF_REACH"
	CodeClaimInvalid          = "CLAIM_INVALID"

	CodeBattleAlreadyActive   = "BATTLE_ALREADY_ACTIVE"
	CodeBattleNotActive       = "BATTLE_NOT_ACTIVE"
	CodeBattleOver            = "BATTLE_OVER"
	CodeBattleWrongTurn       = "BATTLE_WRONG_TURN"
	CodeBattleDecisionInvalid = "BATTLE_DECISION_INVALID"
	CodeBattleProfileInvalid  = "BATTLE_PROFILE_INVALID"
	CodeBattleReplayCorrupted = "BATTLE_REPLAY_CORRUPTED"

	CodeNotFound     = "NOT_FOUND"
	CodeLogCorrupted = "LOG_CORRUPTED"

	CodeSeedOutOfRange = "SEED_OUT_OF_RANGE"

	CodeHeroPushFailed = "HERO_PUSH_FAILED"
)

// enUSCatalog is the compiled-in base catalog. It must stay in lockstep
// with locales/en-US/errors.yaml; a test enforces the pairing.
var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown: "An unexpected error occurred",

		// Instance lifecycle
		CodeInstanceHeroEmpty:     "A hero is required to start a campaign instance",
		CodeInstanceCampaignEmpty: "A campaign is required to start an instance",
		CodeInstanceExists:        "An instance already exists for this campaign and hero",

		// Transactions and commits
		CodeTransactionKindUnknown:    "Transaction kind {{.kind}} is not recognized",
		CodeTransactionHeroRequired:   "This transaction kind requires a hero",
		CodeTransactionEntityRequired: "This transaction kind requires a target entity",
		CodeTransactionNotPending:     "Transaction {{.transaction_id}} is {{.status}}, not pending",
		CodeTransactionNotCommitted:   "Transaction {{.transaction_id}} is {{.status}}, not committed",
		CodeTransactionBatchEmpty:     "A commit needs at least one transaction",
		CodeCommitConflict:            "Another device already committed newer progress",

		// Campaign template lookups
		CodeCampaignUnknown:    "Campaign {{.campaign_ref}} is not installed",
		CodeQuestUnknown:       "Quest {{.quest_ref}} is not part of this campaign",
		CodeTriggerUnknown:     "Trigger {{.trigger_ref}} is not part of this campaign",
		CodeCharacterUnknown:   "Character {{.character_ref}} is not part of this campaign",
		CodeFeatureUnknown:     "Feature {{.feature_ref}} is not part of this campaign",
		CodeDialogueUnknown:    "Dialogue {{.dialogue_ref}} is not part of this campaign",
		CodeFactionUnknown:     "Faction {{.faction_ref}} is not part of this campaign",
		CodePatternUnknown:     "Trigger pattern {{.pattern_ref}} is not defined",
		CodeAchievementUnknown: "That achievement is not part of this campaign",

		// Quest preconditions
		CodeQuestAlreadyActive:    "Quest {{.quest_ref}} is already active",
		CodeQuestAlreadyCompleted: "Quest {{.quest_ref}} is already completed",
		CodeQuestNotActive:        "Quest {{.quest_ref}} is not active",
		CodeQuestStageMismatch:    "Quest {{.quest_ref}} is not at the requested stage",
		CodeQuestObjectiveUnknown: "Stage {{.stage_ref}} has no objective {{.objective_ref}}",
		CodeQuestObjectiveDone:    "Objective {{.objective_ref}} is already complete",
		CodeQuestBranchUnknown:    "Stage {{.stage_ref}} has no branch {{.branch_ref}}",
		CodeQuestBranchExclusive:  "Stage {{.stage_ref}} is already committed to branch {{.chosen_branch}}",

		// Trigger preconditions
		CodeTriggerTokenMissing:     "Trigger {{.trigger_ref}} requires the {{.required_token}} token",
		CodeTriggerAlreadyCompleted: "Trigger {{.trigger_ref}} has already fired",
		CodeTriggerOutOfRange:       "You are {{.distance_m}}m from this trigger, within {{.radius_m}}m is required",

		// Character world state
		CodeCharacterNotSpawned:     "Character {{.character_ref}} is not in the world",
		CodeCharacterAlreadySpawned: "Character {{.character_ref}} is already in the world",
		CodeCharacterAlreadyDown:    "Character {{.character_ref}} is already down",
		CodeCharacterAlreadyLoot:    "Character {{.character_ref}} has already been looted",
		CodeCharacterStillStands:    "Character {{.character_ref}} still stands",

		// Plausibility gate
		CodeClaimSpeedExceeded:    "Reported speed {{.speed_mps}} m/s exceeds the {{.ceiling_mps}} m/s ceiling",
		CodeClaimRateExceeded:     "Reported rate of {{.blocks_per_second}} blocks per second is implausible",
		CodeClaimWearImplausible:  "Reported tool wear {{.wear}} does not match the expected {{.expected}}",
		CodeClaimYieldImplausible: "Reported rare yield {{.yield}} is implausible for this feature",
		CodeClaimOutOfReach:       "Reported position is {{.gap_m}}m beyond the {{.reach_m}}m reach limit",
		CodeClaimInvalid:          "The claim payload is malformed",

		// Battles
		CodeBattleAlreadyActive:   "Battle {{.battle_id}} is already underway",
		CodeBattleNotActive:       "No battle is underway",
		CodeBattleOver:            "This battle is already over",
		CodeBattleWrongTurn:       "It is the {{.expected}} side's turn to act",
		CodeBattleDecisionInvalid: "That decision is not available right now",
		CodeBattleProfileInvalid:  "The battle profile is invalid",
		CodeBattleReplayCorrupted: "The battle record is corrupted and cannot be replayed",

		// Storage
		CodeNotFound:     "The requested resource was not found",
		CodeLogCorrupted: "The journal failed integrity verification at transaction {{.transaction_id}}",

		// Randomness
		CodeSeedOutOfRange: "Random seed is out of valid range",

		// External side effects
		CodeHeroPushFailed: "Hero progress could not be delivered",
	},
}

func init() {
	RegisterCatalog(enUSCatalog.locale, enUSCatalog)
}
