package replay

import (
	"fmt"
	"sync"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
	"github.com/waymark-rpg/waymark/internal/trigger"
)

// foldContext carries the immutable campaign inputs every fold arm may
// consult. The fold never mutates either.
type foldContext struct {
	tpl      *template.Template
	triggers trigger.Set
}

type foldFunc func(fc foldContext, state *DerivedState, tx transaction.Transaction) error

// foldEntry pairs a group of transaction kinds with the function that
// folds them. Declarative so new kinds slot into exactly one arm and the
// exhaustiveness test can diff the table against the kind registry.
type foldEntry struct {
	kinds func() []transaction.Kind
	fold  foldFunc
}

func coreFoldEntries() []foldEntry {
	return []foldEntry{
		{kinds: characterKinds, fold: foldCharacter},
		{kinds: featureKinds, fold: foldFeature},
		{kinds: dialogueKinds, fold: foldDialogue},
		{kinds: questKinds, fold: foldQuest},
		{kinds: reputationKinds, fold: foldReputation},
		{kinds: triggerKinds, fold: foldTrigger},
		{kinds: battleKinds, fold: foldBattle},
		{kinds: claimKinds, fold: foldClaim},
		{kinds: heroKinds, fold: foldHero},
		{kinds: reversalKinds, fold: foldReversal},
	}
}

// Engine folds committed transactions into derived state. The zero value
// is ready to use; the dispatch index is built once on first fold.
type Engine struct {
	foldOnce  sync.Once
	foldIndex map[transaction.Kind]foldFunc
}

// NewEngine returns a fold engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) initFoldIndex() {
	e.foldIndex = make(map[transaction.Kind]foldFunc)
	for _, entry := range coreFoldEntries() {
		for _, kind := range entry.kinds() {
			e.foldIndex[kind] = entry.fold
		}
	}
}

// DispatchedKinds returns every transaction kind the fold handles.
func (e *Engine) DispatchedKinds() []transaction.Kind {
	e.foldOnce.Do(e.initFoldIndex)
	kinds := make([]transaction.Kind, 0, len(e.foldIndex))
	for kind := range e.foldIndex {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Fold applies one committed transaction to state in place.
//
// The committed log is contiguous from 1, so any gap, repeat, or
// regression in sequence numbers means the journal lost or reordered
// data and the fold refuses to continue.
func (e *Engine) Fold(tpl *template.Template, triggers trigger.Set, state *DerivedState, tx transaction.Transaction) error {
	e.foldOnce.Do(e.initFoldIndex)
	if state == nil {
		return apperrors.New(apperrors.CodeUnknown, "fold requires state")
	}
	if tx.Status != transaction.StatusCommitted {
		return apperrors.WithMetadata(apperrors.CodeLogCorrupted,
			fmt.Sprintf("replay saw %s transaction %s", tx.Status, tx.ID),
			map[string]string{"transaction_id": tx.ID, "status": string(tx.Status)})
	}
	if want := state.LastSeq + 1; tx.Seq != want {
		return apperrors.WithMetadata(apperrors.CodeLogCorrupted,
			fmt.Sprintf("transaction sequence gap: expected %d got %d", want, tx.Seq),
			map[string]string{"expected": fmt.Sprintf("%d", want), "got": fmt.Sprintf("%d", tx.Seq)})
	}
	fold, ok := e.foldIndex[tx.Kind]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeLogCorrupted,
			fmt.Sprintf("no fold for transaction kind %q", tx.Kind),
			map[string]string{"kind": string(tx.Kind)})
	}
	fc := foldContext{tpl: tpl, triggers: triggers}
	if err := fold(fc, state, tx); err != nil {
		return apperrors.Wrap(apperrors.CodeLogCorrupted,
			fmt.Sprintf("fold %s transaction %s", tx.Kind, tx.ID), err)
	}
	state.LastSeq = tx.Seq
	return nil
}

// Replay folds a committed history into a fresh derived state. The input
// must be the full committed log of one instance in sequence order.
func (e *Engine) Replay(tpl *template.Template, triggers trigger.Set, txs []transaction.Transaction) (*DerivedState, error) {
	campaignRef := ""
	if tpl != nil {
		campaignRef = tpl.CampaignRef
	}
	state := NewState(campaignRef, triggers)
	for _, tx := range txs {
		if err := e.Fold(tpl, triggers, state, tx); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func characterKinds() []transaction.Kind {
	return []transaction.Kind{
		transaction.KindCharacterSpawned,
		transaction.KindCharacterDefeated,
		transaction.KindCharacterLooted,
	}
}

func foldCharacter(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.KindCharacterSpawned:
		payload, err := transaction.DecodeCharacterSpawned(tx.Attrs)
		if err != nil {
			return err
		}
		entry := CharacterState{
			Spawned:  true,
			Alive:    true,
			Position: template.Position{X: payload.X, Y: payload.Y},
		}
		if fc.tpl != nil {
			if def, ok := fc.tpl.Character(payload.CharacterRef); ok {
				entry.Inventory = append([]string(nil), def.Inventory...)
				entry.Traits = append([]string(nil), def.Traits...)
			}
		}
		state.Characters[payload.CharacterRef] = entry
	case transaction.KindCharacterDefeated:
		payload, err := transaction.DecodeCharacterDefeated(tx.Attrs)
		if err != nil {
			return err
		}
		entry := state.Characters[payload.CharacterRef]
		entry.Spawned = true
		entry.Alive = false
		state.Characters[payload.CharacterRef] = entry
	case transaction.KindCharacterLooted:
		payload, err := transaction.DecodeCharacterLooted(tx.Attrs)
		if err != nil {
			return err
		}
		entry := state.Characters[payload.CharacterRef]
		entry.Looted = true
		entry.Inventory = nil
		state.Characters[payload.CharacterRef] = entry
	}
	return nil
}

func featureKinds() []transaction.Kind {
	return []transaction.Kind{transaction.KindFeatureInteracted}
}

func foldFeature(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	payload, err := transaction.DecodeFeatureInteracted(tx.Attrs)
	if err != nil {
		return err
	}
	touchFeature(state, payload.FeatureRef, tx)
	return nil
}

func touchFeature(state *DerivedState, ref string, tx transaction.Transaction) {
	entry := state.Features[ref]
	entry.InteractionCount++
	entry.LastInteraction = tx.CanonicalTime()
	state.Features[ref] = entry
}

func dialogueKinds() []transaction.Kind {
	return []transaction.Kind{transaction.KindDialogueVisited}
}

func foldDialogue(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	payload, err := transaction.DecodeDialogueVisited(tx.Attrs)
	if err != nil {
		return err
	}
	entry := state.Dialogues[payload.DialogueRef]
	if entry.NodesVisited == nil {
		entry.NodesVisited = map[string]bool{}
	}
	entry.NodesVisited[payload.NodeRef] = true
	entry.LastNode = payload.NodeRef
	state.Dialogues[payload.DialogueRef] = entry
	return nil
}

func questKinds() []transaction.Kind {
	return []transaction.Kind{
		transaction.KindQuestAccepted,
		transaction.KindQuestObjectiveCompleted,
		transaction.KindQuestBranchChosen,
		transaction.KindQuestCompleted,
		transaction.KindQuestAbandoned,
		transaction.KindQuestFailed,
	}
}

func foldQuest(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.KindQuestAccepted:
		payload, err := transaction.DecodeQuestAccepted(tx.Attrs)
		if err != nil {
			return err
		}
		entry := ActiveQuest{
			ChosenBranches:      map[string]string{},
			CompletedObjectives: map[string]bool{},
			AcceptedAt:          tx.CanonicalTime(),
		}
		if fc.tpl != nil {
			if def, ok := fc.tpl.Quest(payload.QuestRef); ok {
				if first, ok := def.FirstStage(); ok {
					entry.StageRef = first.Ref
				}
			}
		}
		state.ActiveQuests[payload.QuestRef] = entry
	case transaction.KindQuestObjectiveCompleted:
		payload, err := transaction.DecodeQuestObjectiveCompleted(tx.Attrs)
		if err != nil {
			return err
		}
		entry, ok := state.ActiveQuests[payload.QuestRef]
		if !ok {
			return nil
		}
		entry.CompletedObjectives[objectiveKey(payload.StageRef, payload.ObjectiveRef)] = true
		advanceStage(fc, &entry, payload.QuestRef, payload.StageRef)
		state.ActiveQuests[payload.QuestRef] = entry
	case transaction.KindQuestBranchChosen:
		payload, err := transaction.DecodeQuestBranchChosen(tx.Attrs)
		if err != nil {
			return err
		}
		entry, ok := state.ActiveQuests[payload.QuestRef]
		if !ok {
			return nil
		}
		if prior, chosen := entry.ChosenBranches[payload.StageRef]; chosen && prior != payload.BranchRef {
			// Historical double choice on an exclusive stage survives in
			// the log; only the first choice shapes state.
			if exclusiveStage(fc, payload.QuestRef, payload.StageRef) {
				return nil
			}
		}
		entry.ChosenBranches[payload.StageRef] = payload.BranchRef
		if fc.tpl != nil {
			if def, ok := fc.tpl.Quest(payload.QuestRef); ok {
				if stage, ok := def.Stage(payload.StageRef); ok {
					if branch, ok := stage.Branch(payload.BranchRef); ok && branch.Next != "" {
						entry.StageRef = branch.Next
					}
				}
			}
		}
		state.ActiveQuests[payload.QuestRef] = entry
	case transaction.KindQuestCompleted:
		payload, err := transaction.DecodeQuestCompleted(tx.Attrs)
		if err != nil {
			return err
		}
		delete(state.ActiveQuests, payload.QuestRef)
		state.CompletedQuests[payload.QuestRef] = true
	case transaction.KindQuestAbandoned:
		payload, err := transaction.DecodeQuestAbandoned(tx.Attrs)
		if err != nil {
			return err
		}
		delete(state.ActiveQuests, payload.QuestRef)
	case transaction.KindQuestFailed:
		payload, err := transaction.DecodeQuestFailed(tx.Attrs)
		if err != nil {
			return err
		}
		entry, ok := state.ActiveQuests[payload.QuestRef]
		if !ok {
			return nil
		}
		entry.Failed = true
		entry.FailReason = payload.Reason
		state.ActiveQuests[payload.QuestRef] = entry
	}
	return nil
}

func objectiveKey(stageRef, objectiveRef string) string {
	return stageRef + "/" + objectiveRef
}

// advanceStage moves a quest forward when the named stage is complete and
// advances linearly. Branching stages wait for an explicit choice.
func advanceStage(fc foldContext, entry *ActiveQuest, questRef, stageRef string) {
	if fc.tpl == nil || entry.StageRef != stageRef {
		return
	}
	def, ok := fc.tpl.Quest(questRef)
	if !ok {
		return
	}
	stage, ok := def.Stage(stageRef)
	if !ok || len(stage.Branches) > 0 || stage.Next == "" {
		return
	}
	if !entry.StageSatisfied(stage) {
		return
	}
	entry.StageRef = stage.Next
}

func exclusiveStage(fc foldContext, questRef, stageRef string) bool {
	if fc.tpl == nil {
		return false
	}
	def, ok := fc.tpl.Quest(questRef)
	if !ok {
		return false
	}
	stage, ok := def.Stage(stageRef)
	return ok && stage.Exclusive
}

func reputationKinds() []transaction.Kind {
	return []transaction.Kind{transaction.KindReputationChanged}
}

func foldReputation(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	payload, err := transaction.DecodeReputationChanged(tx.Attrs)
	if err != nil {
		return err
	}
	state.Reputation[payload.FactionRef] += payload.Amount
	return nil
}

func triggerKinds() []transaction.Kind {
	return []transaction.Kind{transaction.KindTriggerActivated}
}

func foldTrigger(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	payload, err := transaction.DecodeTriggerActivated(tx.Attrs)
	if err != nil {
		return err
	}
	entry := state.Triggers[payload.TriggerRef]
	entry.Status = TriggerCompleted
	if payload.Token != "" {
		entry.Token = payload.Token
		state.Tokens[payload.Token] = true
		// A granted token unlocks every trigger gated on it.
		for ref, trg := range fc.triggers {
			if trg.RequiresToken != payload.Token {
				continue
			}
			gated := state.Triggers[ref]
			if gated.Status == TriggerInactive {
				gated.Status = TriggerActive
				state.Triggers[ref] = gated
			}
		}
	}
	state.Triggers[payload.TriggerRef] = entry
	return nil
}

func battleKinds() []transaction.Kind {
	return []transaction.Kind{
		transaction.KindBattleStarted,
		transaction.KindBattleTurn,
		transaction.KindBattleEnded,
	}
}

func foldBattle(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.KindBattleStarted:
		payload, err := transaction.DecodeBattleStarted(tx.Attrs)
		if err != nil {
			return err
		}
		state.ActiveBattleID = payload.BattleID
		state.Battles[payload.BattleID] = BattleSummary{}
	case transaction.KindBattleTurn:
		payload, err := transaction.DecodeBattleTurn(tx.Attrs)
		if err != nil {
			return err
		}
		entry := state.Battles[payload.BattleID]
		if want := entry.Turns + 1; payload.Turn != want {
			return fmt.Errorf("battle %s turn out of order: expected %d got %d", payload.BattleID, want, payload.Turn)
		}
		entry.Turns = payload.Turn
		state.Battles[payload.BattleID] = entry
	case transaction.KindBattleEnded:
		payload, err := transaction.DecodeBattleEnded(tx.Attrs)
		if err != nil {
			return err
		}
		entry := state.Battles[payload.BattleID]
		entry.Outcome = payload.Outcome
		state.Battles[payload.BattleID] = entry
		if state.ActiveBattleID == payload.BattleID {
			state.ActiveBattleID = ""
		}
	}
	return nil
}

func claimKinds() []transaction.Kind {
	return []transaction.Kind{
		transaction.KindClaimMovement,
		transaction.KindClaimMining,
		transaction.KindClaimBuilding,
		transaction.KindClaimToolWear,
	}
}

// foldClaim records world effects of accepted claims. Mining and building
// against a known feature count as interactions with it; every positioned
// claim advances the hero's last known position; tool wear is an audit
// record with no derived effect.
func foldClaim(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.KindClaimMining:
		payload, err := transaction.DecodeClaimMining(tx.Attrs)
		if err != nil {
			return err
		}
		if payload.FeatureRef != "" {
			touchFeature(state, payload.FeatureRef, tx)
		}
		state.HeroPosition = &template.Position{X: payload.X, Y: payload.Y}
	case transaction.KindClaimBuilding:
		payload, err := transaction.DecodeClaimBuilding(tx.Attrs)
		if err != nil {
			return err
		}
		if payload.FeatureRef != "" {
			touchFeature(state, payload.FeatureRef, tx)
		}
		state.HeroPosition = &template.Position{X: payload.X, Y: payload.Y}
	case transaction.KindClaimMovement:
		payload, err := transaction.DecodeClaimMovement(tx.Attrs)
		if err != nil {
			return err
		}
		state.HeroPosition = &template.Position{X: payload.ToX, Y: payload.ToY}
	case transaction.KindClaimToolWear:
		if _, err := transaction.DecodeClaimToolWear(tx.Attrs); err != nil {
			return err
		}
	}
	return nil
}

func heroKinds() []transaction.Kind {
	return []transaction.Kind{
		transaction.KindHeroItemGranted,
		transaction.KindHeroStatChanged,
	}
}

// foldHero validates hero reward records without deriving state from
// them. The hero record lives upstream; these transactions exist so the
// journal can prove what was pushed and reverse it.
func foldHero(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.KindHeroItemGranted:
		if _, err := transaction.DecodeHeroItemGranted(tx.Attrs); err != nil {
			return err
		}
	case transaction.KindHeroStatChanged:
		if _, err := transaction.DecodeHeroStatChanged(tx.Attrs); err != nil {
			return err
		}
	}
	return nil
}

func reversalKinds() []transaction.Kind {
	return []transaction.Kind{transaction.KindReversed}
}

func foldReversal(fc foldContext, state *DerivedState, tx transaction.Transaction) error {
	payload, err := transaction.DecodeReversed(tx.Attrs)
	if err != nil {
		return err
	}
	state.Reversals[payload.OriginalID] = payload.Reason
	return nil
}
