// Package progress computes quest and achievement progress by scanning
// committed transactions.
//
// Every evaluator is a pure function over an ordered transaction list and
// the campaign template; nothing here maintains counters between calls.
// Scans skip transactions that a later committed reversal compensated,
// and transactions recorded for a different hero never count toward the
// querying hero's progress.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

var (
	ErrUnknownStrategy      = errors.New("unknown counting strategy")
	ErrThresholdInvalid     = errors.New("threshold must be positive")
	ErrDistinctAttrRequired = errors.New("distinct strategy requires an attribute name")
	ErrFactionRequired      = errors.New("reputation strategy requires a faction reference")
	ErrLevelTableRequired   = errors.New("reputation strategy requires a level table")
)

// Achievement evaluates an achievement definition against the committed
// log, returning progress in [0, 1]. Progress clamps at 1 once the
// matched count reaches the threshold.
func Achievement(def template.Achievement, txs []transaction.Transaction, heroID string) (float64, error) {
	return evaluateRule(def.Rule, def.Threshold, txs, heroID)
}

func evaluateRule(rule template.CountRule, threshold int, txs []transaction.Transaction, heroID string) (float64, error) {
	reversed := reversedOriginals(txs)

	switch rule.Strategy {
	case template.StrategyCount:
		if threshold <= 0 {
			return 0, ErrThresholdInvalid
		}
		matched := 0
		for _, tx := range txs {
			if matches(tx, heroID, rule, reversed) {
				matched++
			}
		}
		return clamp(float64(matched) / float64(threshold)), nil

	case template.StrategyDistinct:
		if threshold <= 0 {
			return 0, ErrThresholdInvalid
		}
		if rule.DistinctAttr == "" {
			return 0, ErrDistinctAttrRequired
		}
		seen := make(map[string]struct{})
		for _, tx := range txs {
			if !matches(tx, heroID, rule, reversed) {
				continue
			}
			if value := tx.Attrs[rule.DistinctAttr]; value != "" {
				seen[value] = struct{}{}
			}
		}
		return clamp(float64(len(seen)) / float64(threshold)), nil

	case template.StrategyPresence:
		for _, tx := range txs {
			if matches(tx, heroID, rule, reversed) {
				return 1, nil
			}
		}
		return 0, nil

	case template.StrategyReputation:
		if rule.FactionRef == "" {
			return 0, ErrFactionRequired
		}
		if len(rule.Levels) == 0 {
			return 0, ErrLevelTableRequired
		}
		if threshold <= 0 || threshold > len(rule.Levels) {
			return 0, ErrThresholdInvalid
		}
		total, err := ReputationTotal(txs, heroID, rule.FactionRef)
		if err != nil {
			return 0, err
		}
		required := rule.Levels[threshold-1]
		if required <= 0 {
			return 1, nil
		}
		if total <= 0 {
			return 0, nil
		}
		return clamp(float64(total) / float64(required)), nil

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, rule.Strategy)
	}
}

// Quest returns the fraction of a quest's stages the hero has completed.
// A committed quest.completed transaction short-circuits to 1; stages
// with neither objectives nor branches do not count toward the fraction.
func Quest(def template.Quest, txs []transaction.Transaction, heroID string) float64 {
	reversed := reversedOriginals(txs)

	objectives := make(map[string]map[string]struct{})
	branches := make(map[string]struct{})
	for _, tx := range txs {
		if !countable(tx, heroID, reversed) || tx.Attrs["quest"] != def.Ref {
			continue
		}
		switch tx.Kind {
		case transaction.KindQuestCompleted:
			return 1
		case transaction.KindQuestObjectiveCompleted:
			stage := tx.Attrs["stage"]
			if objectives[stage] == nil {
				objectives[stage] = make(map[string]struct{})
			}
			objectives[stage][tx.Attrs["objective"]] = struct{}{}
		case transaction.KindQuestBranchChosen:
			branches[tx.Attrs["stage"]] = struct{}{}
		}
	}

	counted, completed := 0, 0
	for _, stage := range def.Stages {
		if len(stage.Objectives) == 0 && len(stage.Branches) == 0 {
			continue
		}
		counted++
		if stageComplete(stage, objectives[stage.Ref], branches) {
			completed++
		}
	}
	if counted == 0 {
		return 0
	}
	return clamp(float64(completed) / float64(counted))
}

func stageComplete(stage template.Stage, done map[string]struct{}, branches map[string]struct{}) bool {
	if len(stage.Branches) > 0 {
		_, chosen := branches[stage.Ref]
		return chosen
	}
	if stage.AnyObjective {
		return len(done) > 0
	}
	for _, objective := range stage.Objectives {
		if _, ok := done[objective]; !ok {
			return false
		}
	}
	return true
}

// ObjectiveDone reports whether one specific objective has a committed
// completion for the hero.
func ObjectiveDone(questRef, stageRef, objectiveRef string, txs []transaction.Transaction, heroID string) bool {
	reversed := reversedOriginals(txs)
	for _, tx := range txs {
		if !countable(tx, heroID, reversed) || tx.Kind != transaction.KindQuestObjectiveCompleted {
			continue
		}
		if tx.Attrs["quest"] == questRef && tx.Attrs["stage"] == stageRef && tx.Attrs["objective"] == objectiveRef {
			return true
		}
	}
	return false
}

// ReputationTotal sums the hero's committed reputation deltas for one
// faction.
func ReputationTotal(txs []transaction.Transaction, heroID, factionRef string) (int64, error) {
	reversed := reversedOriginals(txs)
	var total int64
	for _, tx := range txs {
		if !countable(tx, heroID, reversed) || tx.Kind != transaction.KindReputationChanged {
			continue
		}
		if tx.Attrs["faction"] != factionRef {
			continue
		}
		payload, err := transaction.DecodeReputationChanged(tx.Attrs)
		if err != nil {
			return 0, fmt.Errorf("reputation transaction %s: %w", tx.ID, err)
		}
		total += payload.Amount
	}
	return total, nil
}

// ReputationLevel returns the highest level whose required total the sum
// reaches, zero when below the first entry. Levels ascend.
func ReputationLevel(total int64, levels []int64) int {
	level := 0
	for i, required := range levels {
		if total >= required {
			level = i + 1
		}
	}
	return level
}

// AcceptedAt returns the canonical time of the hero's committed
// acceptance of a quest, the anchor for time-limit fail checks.
func AcceptedAt(questRef string, txs []transaction.Transaction, heroID string) (time.Time, bool) {
	reversed := reversedOriginals(txs)
	for _, tx := range txs {
		if !countable(tx, heroID, reversed) || tx.Kind != transaction.KindQuestAccepted {
			continue
		}
		if tx.Attrs["quest"] == questRef {
			return tx.CanonicalAt, true
		}
	}
	return time.Time{}, false
}

// FailReason names which fail condition tripped.
type FailReason string

const (
	FailTimeLimit   FailReason = "time_limit"
	FailOutOfRegion FailReason = "out_of_region"
)

// EvaluateFailure checks a quest fail condition against the acceptance
// anchor and the externally supplied live position. The log alone cannot
// answer either question, so both come in as arguments. A nil position
// skips the region check.
func EvaluateFailure(cond *template.FailCondition, acceptedAt, now time.Time, position *template.Position) (FailReason, bool) {
	if cond == nil {
		return "", false
	}
	if cond.TimeLimit > 0 && !acceptedAt.IsZero() && now.Sub(acceptedAt) > cond.TimeLimit {
		return FailTimeLimit, true
	}
	if cond.Region != nil && position != nil {
		if position.DistanceTo(cond.Region.Center) > cond.Region.Radius {
			return FailOutOfRegion, true
		}
	}
	return "", false
}

func matches(tx transaction.Transaction, heroID string, rule template.CountRule, reversed map[string]struct{}) bool {
	if !countable(tx, heroID, reversed) {
		return false
	}
	if tx.Kind != rule.Kind {
		return false
	}
	if rule.FilterAttr != "" && tx.Attrs[rule.FilterAttr] != rule.FilterRef {
		return false
	}
	return true
}

// countable applies the filters shared by every strategy: only committed
// transactions, only the querying hero's, and nothing a reversal undid.
func countable(tx transaction.Transaction, heroID string, reversed map[string]struct{}) bool {
	if tx.Status != transaction.StatusCommitted {
		return false
	}
	if heroID != "" && tx.HeroID != heroID {
		return false
	}
	if _, undone := reversed[tx.ID]; undone {
		return false
	}
	return true
}

// reversedOriginals collects the IDs that committed reversal records
// compensate, so scans do not count undone work.
func reversedOriginals(txs []transaction.Transaction) map[string]struct{} {
	var reversed map[string]struct{}
	for _, tx := range txs {
		if tx.Kind != transaction.KindReversed || tx.Status != transaction.StatusCommitted {
			continue
		}
		payload, err := transaction.DecodeReversed(tx.Attrs)
		if err != nil || payload.OriginalID == "" {
			continue
		}
		if reversed == nil {
			reversed = make(map[string]struct{})
		}
		reversed[payload.OriginalID] = struct{}{}
	}
	return reversed
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
