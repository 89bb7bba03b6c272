package engine

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/progress"
	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// AcceptQuest moves a known quest into the active set at its first
// stage. Quests already active or already completed are rejected.
func (h Handler) AcceptQuest(ctx context.Context, instanceID, questRef string) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if _, ok := sc.tpl.Quest(questRef); !ok {
		return transaction.Transaction{}, questUnknown(questRef)
	}
	if _, active := sc.state.ActiveQuests[questRef]; active {
		return transaction.Transaction{}, apperrors.WithMetadata(apperrors.CodeQuestAlreadyActive,
			fmt.Sprintf("quest %q is already active", questRef),
			map[string]string{"quest_ref": questRef})
	}
	if sc.state.CompletedQuests[questRef] {
		return transaction.Transaction{}, questAlreadyCompleted(questRef)
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: questRef}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// ObjectiveResult reports an objective completion and whether it closed
// out the whole quest in the same batch.
type ObjectiveResult struct {
	Committed      []transaction.Transaction
	QuestCompleted bool
}

// CompleteObjective records one objective done within the quest's
// current stage. When the objective satisfies the final stage, the quest
// completion commits in the same batch.
func (h Handler) CompleteObjective(ctx context.Context, instanceID, questRef, stageRef, objectiveRef string) (ObjectiveResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return ObjectiveResult{}, err
	}
	def, entry, err := activeQuest(sc, questRef)
	if err != nil {
		return ObjectiveResult{}, err
	}
	if entry.StageRef != stageRef {
		return ObjectiveResult{}, apperrors.WithMetadata(apperrors.CodeQuestStageMismatch,
			fmt.Sprintf("quest %q is at stage %q, not %q", questRef, entry.StageRef, stageRef),
			map[string]string{"quest_ref": questRef, "current_stage": entry.StageRef, "requested_stage": stageRef})
	}
	stage, ok := def.Stage(stageRef)
	if !ok || !stage.HasObjective(objectiveRef) {
		return ObjectiveResult{}, apperrors.WithMetadata(apperrors.CodeQuestObjectiveUnknown,
			fmt.Sprintf("stage %q has no objective %q", stageRef, objectiveRef),
			map[string]string{"quest_ref": questRef, "stage_ref": stageRef, "objective_ref": objectiveRef})
	}
	if entry.ObjectiveDone(stageRef, objectiveRef) {
		return ObjectiveResult{}, apperrors.WithMetadata(apperrors.CodeQuestObjectiveDone,
			fmt.Sprintf("objective %q is already done", objectiveRef),
			map[string]string{"quest_ref": questRef, "stage_ref": stageRef, "objective_ref": objectiveRef})
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{
			QuestRef:     questRef,
			StageRef:     stageRef,
			ObjectiveRef: objectiveRef,
		}.Encode()),
	}
	completed := completesQuest(entry, stage, stageRef, objectiveRef)
	if completed {
		batch = append(batch,
			h.newTx(sc.rec.HeroID, transaction.KindQuestCompleted, transaction.QuestCompleted{QuestRef: questRef}.Encode()))
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return ObjectiveResult{}, err
	}
	return ObjectiveResult{Committed: committed, QuestCompleted: completed}, nil
}

// BranchResult reports a branch choice and whether it ended the quest.
type BranchResult struct {
	Committed      []transaction.Transaction
	QuestCompleted bool
}

// ChooseBranch records a branch choice on the quest's current stage. A
// second choice on an exclusive stage is rejected before any transaction
// is created. A branch with no next stage completes the quest in the
// same batch.
func (h Handler) ChooseBranch(ctx context.Context, instanceID, questRef, stageRef, branchRef string) (BranchResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return BranchResult{}, err
	}
	def, entry, err := activeQuest(sc, questRef)
	if err != nil {
		return BranchResult{}, err
	}
	if entry.StageRef != stageRef {
		return BranchResult{}, apperrors.WithMetadata(apperrors.CodeQuestStageMismatch,
			fmt.Sprintf("quest %q is at stage %q, not %q", questRef, entry.StageRef, stageRef),
			map[string]string{"quest_ref": questRef, "current_stage": entry.StageRef, "requested_stage": stageRef})
	}
	stage, ok := def.Stage(stageRef)
	if !ok {
		return BranchResult{}, apperrors.WithMetadata(apperrors.CodeQuestStageMismatch,
			fmt.Sprintf("quest %q has no stage %q", questRef, stageRef),
			map[string]string{"quest_ref": questRef, "stage_ref": stageRef})
	}
	branch, ok := stage.Branch(branchRef)
	if !ok {
		return BranchResult{}, apperrors.WithMetadata(apperrors.CodeQuestBranchUnknown,
			fmt.Sprintf("stage %q has no branch %q", stageRef, branchRef),
			map[string]string{"quest_ref": questRef, "stage_ref": stageRef, "branch_ref": branchRef})
	}
	if prior, chosen := entry.ChosenBranches[stageRef]; chosen && stage.Exclusive {
		return BranchResult{}, apperrors.WithMetadata(apperrors.CodeQuestBranchExclusive,
			fmt.Sprintf("stage %q already committed to branch %q", stageRef, prior),
			map[string]string{"quest_ref": questRef, "stage_ref": stageRef, "chosen_branch": prior})
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindQuestBranchChosen, transaction.QuestBranchChosen{
			QuestRef:  questRef,
			StageRef:  stageRef,
			BranchRef: branchRef,
		}.Encode()),
	}
	completed := branch.Next == ""
	if completed {
		batch = append(batch,
			h.newTx(sc.rec.HeroID, transaction.KindQuestCompleted, transaction.QuestCompleted{QuestRef: questRef}.Encode()))
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return BranchResult{}, err
	}
	return BranchResult{Committed: committed, QuestCompleted: completed}, nil
}

// AbandonQuest drops an active quest without completing it. Failed
// quests leave the active set this way too.
func (h Handler) AbandonQuest(ctx context.Context, instanceID, questRef string) (transaction.Transaction, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if _, ok := sc.tpl.Quest(questRef); !ok {
		return transaction.Transaction{}, questUnknown(questRef)
	}
	if sc.state.CompletedQuests[questRef] {
		return transaction.Transaction{}, questAlreadyCompleted(questRef)
	}
	if _, active := sc.state.ActiveQuests[questRef]; !active {
		return transaction.Transaction{}, questNotActive(questRef, "quest is not active")
	}

	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindQuestAbandoned, transaction.QuestAbandoned{QuestRef: questRef}.Encode()),
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return committed[0], nil
}

// QuestFailures reports quests whose fail condition tripped.
type QuestFailures struct {
	Committed    []transaction.Transaction
	QuestsFailed []string
}

// CheckQuestFailures evaluates every active quest's fail condition at
// the current time and position, committing a failure record for each
// quest that tripped. A nil position falls back to the hero's last
// claimed position; region conditions stay unevaluated without one.
// Quests already failed are not re-flagged.
func (h Handler) CheckQuestFailures(ctx context.Context, instanceID string, position *template.Position) (QuestFailures, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return QuestFailures{}, err
	}
	if position == nil {
		position = sc.state.HeroPosition
	}
	batch, refs := h.questFailureTxs(sc, position)
	if len(batch) == 0 {
		return QuestFailures{}, nil
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return QuestFailures{}, err
	}
	return QuestFailures{Committed: committed, QuestsFailed: refs}, nil
}

// questFailureTxs builds failure records for newly tripped fail
// conditions, in sorted quest order so batches replay identically.
func (h Handler) questFailureTxs(sc instanceScope, position *template.Position) ([]transaction.Transaction, []string) {
	now := h.now()
	var refs []string
	for ref, entry := range sc.state.ActiveQuests {
		if entry.Failed {
			continue
		}
		def, ok := sc.tpl.Quest(ref)
		if !ok {
			continue
		}
		if _, failed := progress.EvaluateFailure(def.Fail, entry.AcceptedAt, now, position); failed {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)

	txs := make([]transaction.Transaction, 0, len(refs))
	for _, ref := range refs {
		def, _ := sc.tpl.Quest(ref)
		entry := sc.state.ActiveQuests[ref]
		reason, _ := progress.EvaluateFailure(def.Fail, entry.AcceptedAt, now, position)
		txs = append(txs, h.newTx(sc.rec.HeroID, transaction.KindQuestFailed, transaction.QuestFailed{
			QuestRef: ref,
			Reason:   string(reason),
		}.Encode()))
	}
	return txs, refs
}

// completesQuest reports whether finishing the named objective satisfies
// the quest's final stage. Stages with branches never complete a quest
// through objectives; the branch choice advances them.
func completesQuest(entry replay.ActiveQuest, stage template.Stage, stageRef, objectiveRef string) bool {
	if len(stage.Branches) > 0 || stage.Next != "" {
		return false
	}
	return entry.WithObjective(stageRef, objectiveRef).StageSatisfied(stage)
}

// activeQuest resolves a quest definition and its active entry,
// rejecting quests that are unknown, completed, inactive, or failed.
func activeQuest(sc instanceScope, questRef string) (template.Quest, replay.ActiveQuest, error) {
	def, ok := sc.tpl.Quest(questRef)
	if !ok {
		return template.Quest{}, replay.ActiveQuest{}, questUnknown(questRef)
	}
	if sc.state.CompletedQuests[questRef] {
		return template.Quest{}, replay.ActiveQuest{}, questAlreadyCompleted(questRef)
	}
	entry, active := sc.state.ActiveQuests[questRef]
	if !active {
		return template.Quest{}, replay.ActiveQuest{}, questNotActive(questRef, "quest is not active")
	}
	if entry.Failed {
		return template.Quest{}, replay.ActiveQuest{}, questNotActive(questRef,
			fmt.Sprintf("quest failed: %s", entry.FailReason))
	}
	return def, entry, nil
}

func questUnknown(questRef string) error {
	return apperrors.WithMetadata(apperrors.CodeQuestUnknown,
		fmt.Sprintf("quest %q is not part of this campaign", questRef),
		map[string]string{"quest_ref": questRef})
}

func questAlreadyCompleted(questRef string) error {
	return apperrors.WithMetadata(apperrors.CodeQuestAlreadyCompleted,
		fmt.Sprintf("quest %q is already completed", questRef),
		map[string]string{"quest_ref": questRef})
}

func questNotActive(questRef, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeQuestNotActive, msg,
		map[string]string{"quest_ref": questRef})
}
