// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Instance errors
	CodeInstanceHeroEmpty     Code = "INSTANCE_HERO_EMPTY"
	CodeInstanceCampaignEmpty Code = "INSTANCE_CAMPAIGN_EMPTY"
	CodeInstanceExists        Code = "INSTANCE_ALREADY_EXISTS"

	// Transaction errors
	CodeTransactionKindUnknown    Code = "TRANSACTION_KIND_UNKNOWN"
	CodeTransactionHeroRequired   Code = "TRANSACTION_HERO_REQUIRED"
	CodeTransactionEntityRequired Code = "TRANSACTION_ENTITY_REQUIRED"
	CodeTransactionNotPending     Code = "TRANSACTION_NOT_PENDING"
	CodeTransactionNotCommitted   Code = "TRANSACTION_NOT_COMMITTED"
	CodeTransactionBatchEmpty     Code = "TRANSACTION_BATCH_EMPTY"

	// Commit errors
	CodeCommitConflict Code = "COMMIT_CONFLICT"

	// Template errors
	CodeCampaignUnknown    Code = "CAMPAIGN_UNKNOWN"
	CodeQuestUnknown       Code = "QUEST_UNKNOWN"
	CodeTriggerUnknown     Code = "TRIGGER_UNKNOWN"
	CodeCharacterUnknown   Code = "CHARACTER_UNKNOWN"
	CodeFeatureUnknown     Code = "FEATURE_UNKNOWN"
	CodeDialogueUnknown    Code = "DIALOGUE_UNKNOWN"
	CodeFactionUnknown     Code = "FACTION_UNKNOWN"
	CodePatternUnknown     Code = "PATTERN_UNKNOWN"
	CodeAchievementUnknown Code = "ACHIEVEMENT_UNKNOWN"

	// Quest precondition errors
	CodeQuestAlreadyActive    Code = "QUEST_ALREADY_ACTIVE"
	CodeQuestAlreadyCompleted Code = "QUEST_ALREADY_COMPLETED"
	CodeQuestNotActive        Code = "QUEST_NOT_ACTIVE"
	CodeQuestStageMismatch    Code = "QUEST_STAGE_MISMATCH"
	CodeQuestObjectiveUnknown Code = "QUEST_OBJECTIVE_UNKNOWN"
	CodeQuestObjectiveDone    Code = "QUEST_OBJECTIVE_ALREADY_DONE"
	CodeQuestBranchUnknown    Code = "QUEST_BRANCH_UNKNOWN"
	CodeQuestBranchExclusive  Code = "QUEST_BRANCH_EXCLUSIVE"

	// Trigger precondition errors
	CodeTriggerTokenMissing     Code = "TRIGGER_TOKEN_MISSING"
	CodeTriggerAlreadyCompleted Code = "TRIGGER_ALREADY_COMPLETED"
	CodeTriggerOutOfRange       Code = "TRIGGER_OUT_OF_RANGE"

	// Character precondition errors
	CodeCharacterNotSpawned     Code = "CHARACTER_NOT_SPAWNED"
	CodeCharacterAlreadySpawned Code = "CHARACTER_ALREADY_SPAWNED"
	CodeCharacterAlreadyDown    Code = "CHARACTER_ALREADY_DOWN"
	CodeCharacterAlreadyLoot    Code = "CHARACTER_ALREADY_LOOTED"
	CodeCharacterStillStands    Code = "CHARACTER_STILL_STANDING"

	// Claim errors
	CodeClaimSpeedExceeded    Code = "CLAIM_SPEED_EXCEEDED"
	CodeClaimRateExceeded     Code = "CLAIM_RATE_EXCEEDED"
	CodeClaimWearImplausible  Code = "CLAIM_WEAR_IMPLAUSIBLE"
	CodeClaimYieldImplausible Code = "CLAIM_YIELD_IMPLAUSIBLE"
	CodeClaimOutOfReach       Code = "CLAIM_OUT_OF_REACH"
	CodeClaimInvalid          Code = "CLAIM_INVALID"

	// Battle errors
	CodeBattleAlreadyActive   Code = "BATTLE_ALREADY_ACTIVE"
	CodeBattleNotActive       Code = "BATTLE_NOT_ACTIVE"
	CodeBattleOver            Code = "BATTLE_OVER"
	CodeBattleWrongTurn       Code = "BATTLE_WRONG_TURN"
	CodeBattleDecisionInvalid Code = "BATTLE_DECISION_INVALID"
	CodeBattleProfileInvalid  Code = "BATTLE_PROFILE_INVALID"
	CodeBattleReplayCorrupted Code = "BATTLE_REPLAY_CORRUPTED"

	// Storage errors
	CodeNotFound     Code = "NOT_FOUND"
	CodeLogCorrupted Code = "LOG_CORRUPTED"

	// Random/seed errors
	CodeSeedOutOfRange Code = "SEED_OUT_OF_RANGE"

	// External side-effect errors
	CodeHeroPushFailed Code = "HERO_PUSH_FAILED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInstanceHeroEmpty,
		CodeInstanceCampaignEmpty,
		CodeTransactionKindUnknown,
		CodeTransactionHeroRequired,
		CodeTransactionEntityRequired,
		CodeTransactionBatchEmpty,
		CodeBattleDecisionInvalid,
		CodeBattleProfileInvalid,
		CodeClaimInvalid,
		CodeSeedOutOfRange:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTransactionNotPending,
		CodeTransactionNotCommitted,
		CodeQuestAlreadyActive,
		CodeQuestAlreadyCompleted,
		CodeQuestNotActive,
		CodeQuestStageMismatch,
		CodeQuestObjectiveDone,
		CodeQuestBranchExclusive,
		CodeTriggerTokenMissing,
		CodeTriggerAlreadyCompleted,
		CodeTriggerOutOfRange,
		CodeCharacterNotSpawned,
		CodeCharacterAlreadySpawned,
		CodeCharacterAlreadyDown,
		CodeCharacterAlreadyLoot,
		CodeCharacterStillStands,
		CodeClaimSpeedExceeded,
		CodeClaimRateExceeded,
		CodeClaimWearImplausible,
		CodeClaimYieldImplausible,
		CodeClaimOutOfReach,
		CodeBattleAlreadyActive,
		CodeBattleNotActive,
		CodeBattleOver,
		CodeBattleWrongTurn:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeCampaignUnknown,
		CodeQuestUnknown,
		CodeTriggerUnknown,
		CodeCharacterUnknown,
		CodeFeatureUnknown,
		CodeDialogueUnknown,
		CodeFactionUnknown,
		CodePatternUnknown,
		CodeAchievementUnknown,
		CodeQuestObjectiveUnknown,
		CodeQuestBranchUnknown:
		return codes.NotFound

	// AlreadyExists - uniqueness constraint hit on create
	case CodeInstanceExists:
		return codes.AlreadyExists

	// Aborted - optimistic concurrency lost the race
	case CodeCommitConflict:
		return codes.Aborted

	// DataLoss - log or replay corruption
	case CodeLogCorrupted,
		CodeBattleReplayCorrupted:
		return codes.DataLoss

	// Unavailable - external collaborator failed
	case CodeHeroPushFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
