// Package trigger expands named trigger patterns into concrete,
// instance-scoped trigger chains.
//
// Expansion is deterministic: the same pattern and campaign scope always
// produce the same ordered list, which is part of the replay input.
package trigger

import (
	"fmt"
	"sort"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/template"
)

// Trigger is one expanded trigger bound to a campaign instance.
//
// RequiresToken gates activation on a previously granted progression
// token; it is empty for ungated triggers. GrantsToken names the token the
// trigger grants on activation, empty for patterns without progression.
type Trigger struct {
	Ref           string
	Position      template.Position
	Radius        float64
	RequiresToken string
	GrantsToken   string
}

// CompletionToken builds the progression token a trigger grants.
// The campaign scope prefix keeps tokens distinct across instances that
// expand the same pattern.
func CompletionToken(campaignScope, triggerRef string) string {
	return fmt.Sprintf("%s_%s_Completed", campaignScope, triggerRef)
}

// Expand resolves a named pattern into the concrete ordered trigger list
// for one campaign instance. campaignScope is the per-instance campaign
// reference.
//
// Patterns that enforce progression sort members by activation radius
// descending, outermost first, and wire a linear token chain: trigger N
// requires the completion token of trigger N-1 and grants its own.
// Patterns without progression keep declaration order and grant no tokens.
func Expand(tpl *template.Template, patternRef, campaignScope string) ([]Trigger, error) {
	if campaignScope == "" {
		return nil, fmt.Errorf("campaign scope is required")
	}
	pattern, ok := tpl.Pattern(patternRef)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodePatternUnknown,
			fmt.Sprintf("trigger pattern %s is not defined", patternRef),
			map[string]string{"pattern_ref": patternRef})
	}

	members := make([]template.TriggerDef, len(pattern.Members))
	copy(members, pattern.Members)
	if pattern.EnforceProgression {
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Radius > members[j].Radius
		})
	}

	out := make([]Trigger, 0, len(members))
	prevToken := ""
	for _, member := range members {
		expanded := Trigger{
			Ref:      member.Ref,
			Position: member.Position,
			Radius:   member.Radius,
		}
		if pattern.EnforceProgression {
			expanded.RequiresToken = prevToken
			expanded.GrantsToken = CompletionToken(campaignScope, member.Ref)
			prevToken = expanded.GrantsToken
		}
		out = append(out, expanded)
	}
	return out, nil
}

// ExpandAll expands every pattern in a template into one merged set.
// Trigger refs must be unique across patterns; a duplicate is a template
// authoring error surfaced here because the merged index keys by ref.
func ExpandAll(tpl *template.Template, campaignScope string) (Set, error) {
	refs := make([]string, 0, len(tpl.Patterns))
	for ref := range tpl.Patterns {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	set := make(Set)
	for _, patternRef := range refs {
		expanded, err := Expand(tpl, patternRef, campaignScope)
		if err != nil {
			return nil, err
		}
		for _, trg := range expanded {
			if _, dup := set[trg.Ref]; dup {
				return nil, fmt.Errorf("trigger %s expanded by more than one pattern", trg.Ref)
			}
			set[trg.Ref] = trg
		}
	}
	return set, nil
}

// Set indexes expanded triggers by ref.
type Set map[string]Trigger

// NewSet builds an index over expanded triggers.
func NewSet(triggers []Trigger) Set {
	set := make(Set, len(triggers))
	for _, trg := range triggers {
		set[trg.Ref] = trg
	}
	return set
}

// Trigger returns the expanded trigger with the given ref.
func (s Set) Trigger(ref string) (Trigger, bool) {
	trg, ok := s[ref]
	return trg, ok
}
