// Package replay derives current game state by folding committed
// transactions through a pure state machine.
//
// The fold is where the domain stays deterministic: each transaction kind
// updates exactly one state slice and replays identically whether during
// request execution or historical reconstruction. Two replays of the same
// committed prefix are field-for-field identical; caching by sequence
// number and battle reconstruction both rest on that guarantee.
package replay

import (
	"time"

	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/trigger"
)

// TriggerStatus is the lifecycle of an expanded trigger.
type TriggerStatus string

const (
	// TriggerUndiscovered is the zero status for refs outside the
	// expanded set.
	TriggerUndiscovered TriggerStatus = "undiscovered"
	// TriggerInactive marks a gated trigger whose required token has not
	// been granted yet.
	TriggerInactive TriggerStatus = "inactive"
	// TriggerActive marks a trigger eligible for activation.
	TriggerActive TriggerStatus = "active"
	// TriggerCompleted marks an activated trigger.
	TriggerCompleted TriggerStatus = "completed"
)

// CharacterState is the derived state of one world character.
type CharacterState struct {
	Spawned   bool
	Alive     bool
	Looted    bool
	Position  template.Position
	Inventory []string
	Traits    []string
}

// TriggerState is the derived state of one expanded trigger. Token holds
// the progression token granted on completion, when the trigger is gated.
type TriggerState struct {
	Status TriggerStatus
	Token  string
}

// ActiveQuest is the derived state of one quest in progress.
//
// CompletedObjectives is keyed "stageRef/objectiveRef". ChosenBranches
// maps stage refs to the branch chosen there. A failed quest stays in the
// active set with Failed flagged until completed or abandoned.
type ActiveQuest struct {
	StageRef            string
	ChosenBranches      map[string]string
	CompletedObjectives map[string]bool
	Failed              bool
	FailReason          string
	AcceptedAt          time.Time
}

// ObjectiveDone reports whether the named objective is complete within
// the named stage.
func (q ActiveQuest) ObjectiveDone(stageRef, objectiveRef string) bool {
	return q.CompletedObjectives[objectiveKey(stageRef, objectiveRef)]
}

// WithObjective returns a copy of the quest with one more objective
// marked done, leaving the receiver untouched. Validation uses it to
// ask what a stage looks like after a candidate completion.
func (q ActiveQuest) WithObjective(stageRef, objectiveRef string) ActiveQuest {
	out := q
	out.CompletedObjectives = make(map[string]bool, len(q.CompletedObjectives)+1)
	for key, done := range q.CompletedObjectives {
		out.CompletedObjectives[key] = done
	}
	out.CompletedObjectives[objectiveKey(stageRef, objectiveRef)] = true
	return out
}

// StageSatisfied applies a stage's completion logic against the quest's
// completed objectives: all objectives by default, any single objective
// when the stage opts in. Stages without objectives are satisfied.
func (q ActiveQuest) StageSatisfied(stage template.Stage) bool {
	if len(stage.Objectives) == 0 {
		return true
	}
	if stage.AnyObjective {
		for _, obj := range stage.Objectives {
			if q.ObjectiveDone(stage.Ref, obj) {
				return true
			}
		}
		return false
	}
	for _, obj := range stage.Objectives {
		if !q.ObjectiveDone(stage.Ref, obj) {
			return false
		}
	}
	return true
}

// FeatureState tracks per-feature interaction counters.
type FeatureState struct {
	InteractionCount int
	LastInteraction  time.Time
}

// DialogueState tracks visited nodes within one dialogue graph.
type DialogueState struct {
	NodesVisited map[string]bool
	LastNode     string
}

// BattleSummary is the derived record of one battle.
type BattleSummary struct {
	Turns   uint64
	Outcome string
}

// DerivedState is the full derived view of one campaign instance.
//
// It is never persisted as authoritative: it is recomputed from the
// committed log on demand and any stored copy is a disposable
// accelerator.
type DerivedState struct {
	CampaignRef     string
	Characters      map[string]CharacterState
	Triggers        map[string]TriggerState
	Tokens          map[string]bool
	ActiveQuests    map[string]ActiveQuest
	CompletedQuests map[string]bool
	Reputation      map[string]int64
	Features        map[string]FeatureState
	Dialogues       map[string]DialogueState
	Battles         map[string]BattleSummary
	Reversals       map[string]string
	ActiveBattleID  string
	LastSeq         uint64

	// HeroPosition is the last position asserted by an accepted claim,
	// nil until the first positioned claim commits. Movement anchors and
	// region fail checks read it.
	HeroPosition *template.Position
}

// NewState builds the initial derived state for a campaign instance.
// Expanded triggers seed their starting status: gated triggers begin
// inactive, ungated triggers begin active.
func NewState(campaignRef string, triggers trigger.Set) *DerivedState {
	state := &DerivedState{
		CampaignRef:     campaignRef,
		Characters:      map[string]CharacterState{},
		Triggers:        map[string]TriggerState{},
		Tokens:          map[string]bool{},
		ActiveQuests:    map[string]ActiveQuest{},
		CompletedQuests: map[string]bool{},
		Reputation:      map[string]int64{},
		Features:        map[string]FeatureState{},
		Dialogues:       map[string]DialogueState{},
		Battles:         map[string]BattleSummary{},
		Reversals:       map[string]string{},
	}
	for ref, trg := range triggers {
		status := TriggerActive
		if trg.RequiresToken != "" {
			status = TriggerInactive
		}
		state.Triggers[ref] = TriggerState{Status: status}
	}
	return state
}

// TriggerStatusOf returns the status of a trigger ref, Undiscovered for
// refs outside the derived set.
func (s *DerivedState) TriggerStatusOf(ref string) TriggerStatus {
	if entry, ok := s.Triggers[ref]; ok {
		return entry.Status
	}
	return TriggerUndiscovered
}

// HasToken reports whether a progression token has been granted.
func (s *DerivedState) HasToken(token string) bool {
	return s.Tokens[token]
}

// Clone returns a deep copy safe to cache and hand across goroutines.
func (s *DerivedState) Clone() *DerivedState {
	if s == nil {
		return nil
	}
	out := &DerivedState{
		CampaignRef:     s.CampaignRef,
		Characters:      make(map[string]CharacterState, len(s.Characters)),
		Triggers:        make(map[string]TriggerState, len(s.Triggers)),
		Tokens:          make(map[string]bool, len(s.Tokens)),
		ActiveQuests:    make(map[string]ActiveQuest, len(s.ActiveQuests)),
		CompletedQuests: make(map[string]bool, len(s.CompletedQuests)),
		Reputation:      make(map[string]int64, len(s.Reputation)),
		Features:        make(map[string]FeatureState, len(s.Features)),
		Dialogues:       make(map[string]DialogueState, len(s.Dialogues)),
		Battles:         make(map[string]BattleSummary, len(s.Battles)),
		Reversals:       make(map[string]string, len(s.Reversals)),
		ActiveBattleID:  s.ActiveBattleID,
		LastSeq:         s.LastSeq,
	}
	for ref, c := range s.Characters {
		cloned := c
		cloned.Inventory = append([]string(nil), c.Inventory...)
		cloned.Traits = append([]string(nil), c.Traits...)
		out.Characters[ref] = cloned
	}
	for ref, t := range s.Triggers {
		out.Triggers[ref] = t
	}
	for token := range s.Tokens {
		out.Tokens[token] = true
	}
	for ref, q := range s.ActiveQuests {
		cloned := q
		cloned.ChosenBranches = make(map[string]string, len(q.ChosenBranches))
		for stage, branch := range q.ChosenBranches {
			cloned.ChosenBranches[stage] = branch
		}
		cloned.CompletedObjectives = make(map[string]bool, len(q.CompletedObjectives))
		for key, done := range q.CompletedObjectives {
			cloned.CompletedObjectives[key] = done
		}
		out.ActiveQuests[ref] = cloned
	}
	for ref := range s.CompletedQuests {
		out.CompletedQuests[ref] = true
	}
	for faction, total := range s.Reputation {
		out.Reputation[faction] = total
	}
	for ref, f := range s.Features {
		out.Features[ref] = f
	}
	for ref, d := range s.Dialogues {
		cloned := d
		cloned.NodesVisited = make(map[string]bool, len(d.NodesVisited))
		for node := range d.NodesVisited {
			cloned.NodesVisited[node] = true
		}
		out.Dialogues[ref] = cloned
	}
	for id, b := range s.Battles {
		out.Battles[id] = b
	}
	for id, reason := range s.Reversals {
		out.Reversals[id] = reason
	}
	if s.HeroPosition != nil {
		pos := *s.HeroPosition
		out.HeroPosition = &pos
	}
	return out
}
