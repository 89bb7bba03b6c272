// Package template defines the immutable campaign template handle shared
// by validation, replay, and the progress evaluators.
//
// Templates are produced once by an external loader and never mutated
// afterward; every consumer reads the same handle. Loading and schema
// validation live outside this core. Lookup methods return a second
// boolean result so callers decide how absence surfaces.
package template

import (
	"math"
	"time"

	"github.com/waymark-rpg/waymark/internal/transaction"
)

// Position is a planar location in meters. Geographic conversion happens
// upstream; the core only ever sees planar coordinates.
type Position struct {
	X float64
	Y float64
}

// DistanceTo returns the planar distance in meters.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// CombatProfile is the numeric battle profile of a template character.
type CombatProfile struct {
	Health   int
	Energy   int
	Attack   int
	Defense  int
	Speed    int
	Focus    int
	Affinity string
	Slots    map[string]string
}

// Character is a template-defined world character.
type Character struct {
	Ref        string
	Name       string
	FactionRef string
	Spawn      Position
	Traits     []string
	Inventory  []string
	Profile    CombatProfile
}

// Feature is a fixed world feature such as a resource node or shrine.
// ExpectedRareRate is the expected fraction of mined blocks yielding the
// rare resource, used by the claim gate's statistical ceiling.
type Feature struct {
	Ref              string
	Kind             string
	Position         Position
	ResourceRef      string
	ExpectedRareRate float64
}

// DialogueNode is one node in a dialogue graph.
type DialogueNode struct {
	Ref  string
	Next []string
}

// Dialogue is a character conversation graph.
type Dialogue struct {
	Ref          string
	CharacterRef string
	EntryNode    string
	Nodes        map[string]DialogueNode
}

// Faction is a named reputation target.
type Faction struct {
	Ref  string
	Name string
}

// Branch is one selectable path out of a quest stage.
type Branch struct {
	Ref  string
	Next string
}

// Stage is one step of a quest. Objectives complete with AND logic unless
// AnyObjective opts the stage into OR logic. Branches, when present, decide
// the next stage; Exclusive stages allow only one branch choice ever.
type Stage struct {
	Ref          string
	Objectives   []string
	AnyObjective bool
	Branches     []Branch
	Exclusive    bool
	Next         string
}

// Branch returns the named branch.
func (s Stage) Branch(ref string) (Branch, bool) {
	for _, b := range s.Branches {
		if b.Ref == ref {
			return b, true
		}
	}
	return Branch{}, false
}

// HasObjective reports whether the stage requires the named objective.
func (s Stage) HasObjective(ref string) bool {
	for _, o := range s.Objectives {
		if o == ref {
			return true
		}
	}
	return false
}

// Region is a circular area used by quest fail conditions.
type Region struct {
	Center Position
	Radius float64
}

// FailCondition fails an active quest when the time since acceptance
// exceeds TimeLimit or the hero's live position leaves Region. Zero values
// disable the respective check.
type FailCondition struct {
	TimeLimit time.Duration
	Region    *Region
}

// Quest is an ordered multi-stage quest definition. The first stage is the
// entry point.
type Quest struct {
	Ref    string
	Name   string
	Stages []Stage
	Fail   *FailCondition
}

// Stage returns the named stage.
func (q Quest) Stage(ref string) (Stage, bool) {
	for _, s := range q.Stages {
		if s.Ref == ref {
			return s, true
		}
	}
	return Stage{}, false
}

// FirstStage returns the entry stage.
func (q Quest) FirstStage() (Stage, bool) {
	if len(q.Stages) == 0 {
		return Stage{}, false
	}
	return q.Stages[0], true
}

// CountStrategy selects how an evaluator scans the committed log.
type CountStrategy string

const (
	// StrategyCount counts matching transactions.
	StrategyCount CountStrategy = "count"
	// StrategyDistinct counts distinct values of an attribute across
	// matching transactions.
	StrategyDistinct CountStrategy = "distinct"
	// StrategyReputation sums reputation deltas for a faction and
	// compares the total against a level table.
	StrategyReputation CountStrategy = "reputation"
	// StrategyPresence checks that at least one matching transaction
	// exists.
	StrategyPresence CountStrategy = "presence"
)

// CountRule describes a pure scan over committed transactions.
//
// FilterAttr/FilterRef narrow matches to transactions whose attribute
// equals the given reference. DistinctAttr names the attribute whose
// unique values are counted under StrategyDistinct. Levels holds the
// ascending reputation totals required per level under
// StrategyReputation.
type CountRule struct {
	Strategy     CountStrategy
	Kind         transaction.Kind
	FilterAttr   string
	FilterRef    string
	DistinctAttr string
	FactionRef   string
	Levels       []int64
}

// Achievement is a template-defined achievement. Threshold is the matched
// count required for full progress; for reputation rules it is the target
// level (1-based index into the rule's level table).
type Achievement struct {
	Ref       string
	Name      string
	Rule      CountRule
	Threshold int
	Fail      *FailCondition
}

// TriggerDef is one concrete trigger inside a pattern: a position with an
// activation radius.
type TriggerDef struct {
	Ref      string
	Position Position
	Radius   float64
}

// TriggerPattern is a named, expandable set of triggers. Patterns that
// enforce progression are expanded into a token-gated chain ordered by
// activation radius.
type TriggerPattern struct {
	Ref                string
	Members            []TriggerDef
	EnforceProgression bool
}

// Template is the immutable campaign definition handle.
type Template struct {
	CampaignRef  string
	Name         string
	Characters   map[string]Character
	Features     map[string]Feature
	Dialogues    map[string]Dialogue
	Factions     map[string]Faction
	Quests       map[string]Quest
	Achievements map[string]Achievement
	Patterns     map[string]TriggerPattern
}

// Character returns the named character definition.
func (t *Template) Character(ref string) (Character, bool) {
	c, ok := t.Characters[ref]
	return c, ok
}

// Feature returns the named feature definition.
func (t *Template) Feature(ref string) (Feature, bool) {
	f, ok := t.Features[ref]
	return f, ok
}

// Dialogue returns the named dialogue definition.
func (t *Template) Dialogue(ref string) (Dialogue, bool) {
	d, ok := t.Dialogues[ref]
	return d, ok
}

// Faction returns the named faction definition.
func (t *Template) Faction(ref string) (Faction, bool) {
	f, ok := t.Factions[ref]
	return f, ok
}

// Quest returns the named quest definition.
func (t *Template) Quest(ref string) (Quest, bool) {
	q, ok := t.Quests[ref]
	return q, ok
}

// Achievement returns the named achievement definition.
func (t *Template) Achievement(ref string) (Achievement, bool) {
	a, ok := t.Achievements[ref]
	return a, ok
}

// Pattern returns the named trigger pattern.
func (t *Template) Pattern(ref string) (TriggerPattern, bool) {
	p, ok := t.Patterns[ref]
	return p, ok
}
