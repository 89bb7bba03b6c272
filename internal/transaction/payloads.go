package transaction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Payload codecs translate between typed structs and the flat string
// attribute map. All attribute parsing in the repository happens here;
// consumers work with the structs.
//
// Encoding conventions: integers in base 10, floats in shortest 'g' form,
// timestamps as UTC Unix milliseconds, reference lists comma-joined.

func putInt(attrs map[string]string, key string, v int64) {
	attrs[key] = strconv.FormatInt(v, 10)
}

func putUint(attrs map[string]string, key string, v uint64) {
	attrs[key] = strconv.FormatUint(v, 10)
}

func putFloat(attrs map[string]string, key string, v float64) {
	attrs[key] = strconv.FormatFloat(v, 'g', -1, 64)
}

func putTime(attrs map[string]string, key string, v time.Time) {
	attrs[key] = strconv.FormatInt(v.UTC().UnixMilli(), 10)
}

func attrInt(attrs map[string]string, key string) (int64, error) {
	raw, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("attribute %q missing", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return v, nil
}

func attrUint(attrs map[string]string, key string) (uint64, error) {
	raw, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("attribute %q missing", key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return v, nil
}

func attrFloat(attrs map[string]string, key string) (float64, error) {
	raw, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("attribute %q missing", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return v, nil
}

func attrTime(attrs map[string]string, key string) (time.Time, error) {
	millis, err := attrInt(attrs, key)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

// CharacterSpawned records a template character entering the world at a
// position in planar meters.
type CharacterSpawned struct {
	CharacterRef string
	X, Y         float64
}

// Encode returns the flat attribute form.
func (p CharacterSpawned) Encode() map[string]string {
	attrs := map[string]string{"character": p.CharacterRef}
	putFloat(attrs, "x", p.X)
	putFloat(attrs, "y", p.Y)
	return attrs
}

// DecodeCharacterSpawned parses the flat attribute form.
func DecodeCharacterSpawned(attrs map[string]string) (CharacterSpawned, error) {
	x, err := attrFloat(attrs, "x")
	if err != nil {
		return CharacterSpawned{}, err
	}
	y, err := attrFloat(attrs, "y")
	if err != nil {
		return CharacterSpawned{}, err
	}
	return CharacterSpawned{CharacterRef: attrs["character"], X: x, Y: y}, nil
}

// CharacterDefeated records a character going down, optionally naming the
// battle that produced the defeat.
type CharacterDefeated struct {
	CharacterRef string
	BattleID     string
}

// Encode returns the flat attribute form.
func (p CharacterDefeated) Encode() map[string]string {
	attrs := map[string]string{"character": p.CharacterRef}
	if p.BattleID != "" {
		attrs["battle"] = p.BattleID
	}
	return attrs
}

// DecodeCharacterDefeated parses the flat attribute form.
func DecodeCharacterDefeated(attrs map[string]string) (CharacterDefeated, error) {
	return CharacterDefeated{CharacterRef: attrs["character"], BattleID: attrs["battle"]}, nil
}

// CharacterLooted records loot being claimed from a defeated character.
// The character's remaining inventory is cleared by the fold.
type CharacterLooted struct {
	CharacterRef string
	ItemRefs     []string
}

// Encode returns the flat attribute form.
func (p CharacterLooted) Encode() map[string]string {
	attrs := map[string]string{"character": p.CharacterRef}
	if len(p.ItemRefs) > 0 {
		attrs["items"] = strings.Join(p.ItemRefs, ",")
	}
	return attrs
}

// DecodeCharacterLooted parses the flat attribute form.
func DecodeCharacterLooted(attrs map[string]string) (CharacterLooted, error) {
	out := CharacterLooted{CharacterRef: attrs["character"]}
	if raw := attrs["items"]; raw != "" {
		out.ItemRefs = strings.Split(raw, ",")
	}
	return out, nil
}

// FeatureInteracted records one interaction with a world feature.
type FeatureInteracted struct {
	FeatureRef string
}

// Encode returns the flat attribute form.
func (p FeatureInteracted) Encode() map[string]string {
	return map[string]string{"feature": p.FeatureRef}
}

// DecodeFeatureInteracted parses the flat attribute form.
func DecodeFeatureInteracted(attrs map[string]string) (FeatureInteracted, error) {
	return FeatureInteracted{FeatureRef: attrs["feature"]}, nil
}

// DialogueVisited records one dialogue node being reached.
type DialogueVisited struct {
	DialogueRef  string
	NodeRef      string
	CharacterRef string
}

// Encode returns the flat attribute form.
func (p DialogueVisited) Encode() map[string]string {
	attrs := map[string]string{"dialogue": p.DialogueRef, "node": p.NodeRef}
	if p.CharacterRef != "" {
		attrs["character"] = p.CharacterRef
	}
	return attrs
}

// DecodeDialogueVisited parses the flat attribute form.
func DecodeDialogueVisited(attrs map[string]string) (DialogueVisited, error) {
	return DialogueVisited{
		DialogueRef:  attrs["dialogue"],
		NodeRef:      attrs["node"],
		CharacterRef: attrs["character"],
	}, nil
}

// QuestAccepted records a quest entering the active set at its first stage.
type QuestAccepted struct {
	QuestRef string
}

// Encode returns the flat attribute form.
func (p QuestAccepted) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef}
}

// DecodeQuestAccepted parses the flat attribute form.
func DecodeQuestAccepted(attrs map[string]string) (QuestAccepted, error) {
	return QuestAccepted{QuestRef: attrs["quest"]}, nil
}

// QuestObjectiveCompleted records one objective done within a stage.
type QuestObjectiveCompleted struct {
	QuestRef     string
	StageRef     string
	ObjectiveRef string
}

// Encode returns the flat attribute form.
func (p QuestObjectiveCompleted) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef, "stage": p.StageRef, "objective": p.ObjectiveRef}
}

// DecodeQuestObjectiveCompleted parses the flat attribute form.
func DecodeQuestObjectiveCompleted(attrs map[string]string) (QuestObjectiveCompleted, error) {
	return QuestObjectiveCompleted{
		QuestRef:     attrs["quest"],
		StageRef:     attrs["stage"],
		ObjectiveRef: attrs["objective"],
	}, nil
}

// QuestBranchChosen records a branch choice advancing a quest stage.
type QuestBranchChosen struct {
	QuestRef  string
	StageRef  string
	BranchRef string
}

// Encode returns the flat attribute form.
func (p QuestBranchChosen) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef, "stage": p.StageRef, "branch": p.BranchRef}
}

// DecodeQuestBranchChosen parses the flat attribute form.
func DecodeQuestBranchChosen(attrs map[string]string) (QuestBranchChosen, error) {
	return QuestBranchChosen{
		QuestRef:  attrs["quest"],
		StageRef:  attrs["stage"],
		BranchRef: attrs["branch"],
	}, nil
}

// QuestCompleted records a quest moving from active to completed.
type QuestCompleted struct {
	QuestRef string
}

// Encode returns the flat attribute form.
func (p QuestCompleted) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef}
}

// DecodeQuestCompleted parses the flat attribute form.
func DecodeQuestCompleted(attrs map[string]string) (QuestCompleted, error) {
	return QuestCompleted{QuestRef: attrs["quest"]}, nil
}

// QuestAbandoned records a quest leaving the active set without completing.
type QuestAbandoned struct {
	QuestRef string
}

// Encode returns the flat attribute form.
func (p QuestAbandoned) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef}
}

// DecodeQuestAbandoned parses the flat attribute form.
func DecodeQuestAbandoned(attrs map[string]string) (QuestAbandoned, error) {
	return QuestAbandoned{QuestRef: attrs["quest"]}, nil
}

// QuestFailed records a fail condition firing on an active quest.
type QuestFailed struct {
	QuestRef string
	Reason   string
}

// Encode returns the flat attribute form.
func (p QuestFailed) Encode() map[string]string {
	return map[string]string{"quest": p.QuestRef, "reason": p.Reason}
}

// DecodeQuestFailed parses the flat attribute form.
func DecodeQuestFailed(attrs map[string]string) (QuestFailed, error) {
	return QuestFailed{QuestRef: attrs["quest"], Reason: attrs["reason"]}, nil
}

// ReputationChanged records a signed reputation delta for a faction.
type ReputationChanged struct {
	FactionRef string
	Amount     int64
}

// Encode returns the flat attribute form.
func (p ReputationChanged) Encode() map[string]string {
	attrs := map[string]string{"faction": p.FactionRef}
	putInt(attrs, "amount", p.Amount)
	return attrs
}

// DecodeReputationChanged parses the flat attribute form.
func DecodeReputationChanged(attrs map[string]string) (ReputationChanged, error) {
	amount, err := attrInt(attrs, "amount")
	if err != nil {
		return ReputationChanged{}, err
	}
	return ReputationChanged{FactionRef: attrs["faction"], Amount: amount}, nil
}

// TriggerActivated records a trigger firing. Token carries the granted
// progression token for gated triggers, empty otherwise.
type TriggerActivated struct {
	TriggerRef string
	Token      string
}

// Encode returns the flat attribute form.
func (p TriggerActivated) Encode() map[string]string {
	attrs := map[string]string{"trigger": p.TriggerRef}
	if p.Token != "" {
		attrs["token"] = p.Token
	}
	return attrs
}

// DecodeTriggerActivated parses the flat attribute form.
func DecodeTriggerActivated(attrs map[string]string) (TriggerActivated, error) {
	return TriggerActivated{TriggerRef: attrs["trigger"], Token: attrs["token"]}, nil
}

// BattleProfile is a combatant's full numeric profile as snapshotted by a
// battle opening. Slots maps equipment slot names to item refs.
type BattleProfile struct {
	Ref      string
	Health   int
	Energy   int
	Attack   int
	Defense  int
	Speed    int
	Focus    int
	Affinity string
	Slots    map[string]string
}

func encodeProfile(attrs map[string]string, prefix string, p BattleProfile) {
	attrs[prefix+"ref"] = p.Ref
	putInt(attrs, prefix+"health", int64(p.Health))
	putInt(attrs, prefix+"energy", int64(p.Energy))
	putInt(attrs, prefix+"attack", int64(p.Attack))
	putInt(attrs, prefix+"defense", int64(p.Defense))
	putInt(attrs, prefix+"speed", int64(p.Speed))
	putInt(attrs, prefix+"focus", int64(p.Focus))
	if p.Affinity != "" {
		attrs[prefix+"affinity"] = p.Affinity
	}
	for slot, item := range p.Slots {
		attrs[prefix+"slot_"+slot] = item
	}
}

func decodeProfile(attrs map[string]string, prefix string) (BattleProfile, error) {
	out := BattleProfile{Ref: attrs[prefix+"ref"], Affinity: attrs[prefix+"affinity"]}
	for _, field := range []struct {
		key string
		dst *int
	}{
		{"health", &out.Health},
		{"energy", &out.Energy},
		{"attack", &out.Attack},
		{"defense", &out.Defense},
		{"speed", &out.Speed},
		{"focus", &out.Focus},
	} {
		v, err := attrInt(attrs, prefix+field.key)
		if err != nil {
			return BattleProfile{}, err
		}
		*field.dst = int(v)
	}
	slotPrefix := prefix + "slot_"
	for key, value := range attrs {
		if strings.HasPrefix(key, slotPrefix) {
			if out.Slots == nil {
				out.Slots = map[string]string{}
			}
			out.Slots[strings.TrimPrefix(key, slotPrefix)] = value
		}
	}
	return out, nil
}

// BattleStarted snapshots both combatants and the battle seed. Ally is
// non-nil when a companion fights alongside the hero.
type BattleStarted struct {
	BattleID string
	Seed     int64
	Hero     BattleProfile
	Enemy    BattleProfile
	Ally     *BattleProfile
}

// Encode returns the flat attribute form.
func (p BattleStarted) Encode() map[string]string {
	attrs := map[string]string{"battle": p.BattleID}
	putInt(attrs, "seed", p.Seed)
	encodeProfile(attrs, "hero_", p.Hero)
	encodeProfile(attrs, "enemy_", p.Enemy)
	if p.Ally != nil {
		encodeProfile(attrs, "ally_", *p.Ally)
	}
	return attrs
}

// DecodeBattleStarted parses the flat attribute form.
func DecodeBattleStarted(attrs map[string]string) (BattleStarted, error) {
	seed, err := attrInt(attrs, "seed")
	if err != nil {
		return BattleStarted{}, err
	}
	hero, err := decodeProfile(attrs, "hero_")
	if err != nil {
		return BattleStarted{}, err
	}
	enemy, err := decodeProfile(attrs, "enemy_")
	if err != nil {
		return BattleStarted{}, err
	}
	out := BattleStarted{BattleID: attrs["battle"], Seed: seed, Hero: hero, Enemy: enemy}
	if _, ok := attrs["ally_ref"]; ok {
		ally, err := decodeProfile(attrs, "ally_")
		if err != nil {
			return BattleStarted{}, err
		}
		out.Ally = &ally
	}
	return out, nil
}

// BattleTurn records one executed turn: who acted, the decision taken, and
// the post-turn checkpoint values used to detect replay corruption.
type BattleTurn struct {
	BattleID     string
	Turn         uint64
	Side         string
	Decision     string
	Param        string
	TargetHealth int
	ActorEnergy  int
}

// Encode returns the flat attribute form.
func (p BattleTurn) Encode() map[string]string {
	attrs := map[string]string{
		"battle":   p.BattleID,
		"side":     p.Side,
		"decision": p.Decision,
	}
	putUint(attrs, "turn", p.Turn)
	if p.Param != "" {
		attrs["param"] = p.Param
	}
	putInt(attrs, "target_health", int64(p.TargetHealth))
	putInt(attrs, "actor_energy", int64(p.ActorEnergy))
	return attrs
}

// DecodeBattleTurn parses the flat attribute form.
func DecodeBattleTurn(attrs map[string]string) (BattleTurn, error) {
	turn, err := attrUint(attrs, "turn")
	if err != nil {
		return BattleTurn{}, err
	}
	targetHealth, err := attrInt(attrs, "target_health")
	if err != nil {
		return BattleTurn{}, err
	}
	actorEnergy, err := attrInt(attrs, "actor_energy")
	if err != nil {
		return BattleTurn{}, err
	}
	return BattleTurn{
		BattleID:     attrs["battle"],
		Turn:         turn,
		Side:         attrs["side"],
		Decision:     attrs["decision"],
		Param:        attrs["param"],
		TargetHealth: int(targetHealth),
		ActorEnergy:  int(actorEnergy),
	}, nil
}

// BattleEnded records the terminal state of a battle.
type BattleEnded struct {
	BattleID string
	Outcome  string
	Turns    uint64
}

// Encode returns the flat attribute form.
func (p BattleEnded) Encode() map[string]string {
	attrs := map[string]string{"battle": p.BattleID, "outcome": p.Outcome}
	putUint(attrs, "turns", p.Turns)
	return attrs
}

// DecodeBattleEnded parses the flat attribute form.
func DecodeBattleEnded(attrs map[string]string) (BattleEnded, error) {
	turns, err := attrUint(attrs, "turns")
	if err != nil {
		return BattleEnded{}, err
	}
	return BattleEnded{BattleID: attrs["battle"], Outcome: attrs["outcome"], Turns: turns}, nil
}

// ClaimMovement asserts the hero moved between two positions over a time
// window. Subject to speed and reach validation before append.
type ClaimMovement struct {
	FromX, FromY float64
	ToX, ToY     float64
	StartedAt    time.Time
	EndedAt      time.Time
}

// Encode returns the flat attribute form.
func (p ClaimMovement) Encode() map[string]string {
	attrs := map[string]string{}
	putFloat(attrs, "from_x", p.FromX)
	putFloat(attrs, "from_y", p.FromY)
	putFloat(attrs, "to_x", p.ToX)
	putFloat(attrs, "to_y", p.ToY)
	putTime(attrs, "started_at", p.StartedAt)
	putTime(attrs, "ended_at", p.EndedAt)
	return attrs
}

// DecodeClaimMovement parses the flat attribute form.
func DecodeClaimMovement(attrs map[string]string) (ClaimMovement, error) {
	var (
		out ClaimMovement
		err error
	)
	if out.FromX, err = attrFloat(attrs, "from_x"); err != nil {
		return ClaimMovement{}, err
	}
	if out.FromY, err = attrFloat(attrs, "from_y"); err != nil {
		return ClaimMovement{}, err
	}
	if out.ToX, err = attrFloat(attrs, "to_x"); err != nil {
		return ClaimMovement{}, err
	}
	if out.ToY, err = attrFloat(attrs, "to_y"); err != nil {
		return ClaimMovement{}, err
	}
	if out.StartedAt, err = attrTime(attrs, "started_at"); err != nil {
		return ClaimMovement{}, err
	}
	if out.EndedAt, err = attrTime(attrs, "ended_at"); err != nil {
		return ClaimMovement{}, err
	}
	return out, nil
}

// ClaimMining asserts blocks mined from a feature, including rare yield
// for the statistical ceiling check.
type ClaimMining struct {
	FeatureRef  string
	ResourceRef string
	Blocks      int
	RareYield   int
	ToolRef     string
	X, Y        float64
	StartedAt   time.Time
	EndedAt     time.Time
}

// Encode returns the flat attribute form.
func (p ClaimMining) Encode() map[string]string {
	attrs := map[string]string{"feature": p.FeatureRef, "resource": p.ResourceRef}
	putInt(attrs, "blocks", int64(p.Blocks))
	putInt(attrs, "rare_yield", int64(p.RareYield))
	if p.ToolRef != "" {
		attrs["tool"] = p.ToolRef
	}
	putFloat(attrs, "x", p.X)
	putFloat(attrs, "y", p.Y)
	putTime(attrs, "started_at", p.StartedAt)
	putTime(attrs, "ended_at", p.EndedAt)
	return attrs
}

// DecodeClaimMining parses the flat attribute form.
func DecodeClaimMining(attrs map[string]string) (ClaimMining, error) {
	blocks, err := attrInt(attrs, "blocks")
	if err != nil {
		return ClaimMining{}, err
	}
	rare, err := attrInt(attrs, "rare_yield")
	if err != nil {
		return ClaimMining{}, err
	}
	x, err := attrFloat(attrs, "x")
	if err != nil {
		return ClaimMining{}, err
	}
	y, err := attrFloat(attrs, "y")
	if err != nil {
		return ClaimMining{}, err
	}
	startedAt, err := attrTime(attrs, "started_at")
	if err != nil {
		return ClaimMining{}, err
	}
	endedAt, err := attrTime(attrs, "ended_at")
	if err != nil {
		return ClaimMining{}, err
	}
	return ClaimMining{
		FeatureRef:  attrs["feature"],
		ResourceRef: attrs["resource"],
		Blocks:      int(blocks),
		RareYield:   int(rare),
		ToolRef:     attrs["tool"],
		X:           x,
		Y:           y,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
	}, nil
}

// ClaimBuilding asserts blocks placed at a feature.
type ClaimBuilding struct {
	FeatureRef string
	Blocks     int
	X, Y       float64
	StartedAt  time.Time
	EndedAt    time.Time
}

// Encode returns the flat attribute form.
func (p ClaimBuilding) Encode() map[string]string {
	attrs := map[string]string{"feature": p.FeatureRef}
	putInt(attrs, "blocks", int64(p.Blocks))
	putFloat(attrs, "x", p.X)
	putFloat(attrs, "y", p.Y)
	putTime(attrs, "started_at", p.StartedAt)
	putTime(attrs, "ended_at", p.EndedAt)
	return attrs
}

// DecodeClaimBuilding parses the flat attribute form.
func DecodeClaimBuilding(attrs map[string]string) (ClaimBuilding, error) {
	blocks, err := attrInt(attrs, "blocks")
	if err != nil {
		return ClaimBuilding{}, err
	}
	x, err := attrFloat(attrs, "x")
	if err != nil {
		return ClaimBuilding{}, err
	}
	y, err := attrFloat(attrs, "y")
	if err != nil {
		return ClaimBuilding{}, err
	}
	startedAt, err := attrTime(attrs, "started_at")
	if err != nil {
		return ClaimBuilding{}, err
	}
	endedAt, err := attrTime(attrs, "ended_at")
	if err != nil {
		return ClaimBuilding{}, err
	}
	return ClaimBuilding{
		FeatureRef: attrs["feature"],
		Blocks:     int(blocks),
		X:          x,
		Y:          y,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}, nil
}

// ClaimToolWear asserts wear accumulated on a tool over a block count.
type ClaimToolWear struct {
	ToolRef string
	Blocks  int
	Wear    float64
}

// Encode returns the flat attribute form.
func (p ClaimToolWear) Encode() map[string]string {
	attrs := map[string]string{"tool": p.ToolRef}
	putInt(attrs, "blocks", int64(p.Blocks))
	putFloat(attrs, "wear", p.Wear)
	return attrs
}

// DecodeClaimToolWear parses the flat attribute form.
func DecodeClaimToolWear(attrs map[string]string) (ClaimToolWear, error) {
	blocks, err := attrInt(attrs, "blocks")
	if err != nil {
		return ClaimToolWear{}, err
	}
	wear, err := attrFloat(attrs, "wear")
	if err != nil {
		return ClaimToolWear{}, err
	}
	return ClaimToolWear{ToolRef: attrs["tool"], Blocks: int(blocks), Wear: wear}, nil
}

// HeroItemGranted records a derived reward item pushed to the hero record.
type HeroItemGranted struct {
	ItemRef  string
	Quantity int
	Source   string
}

// Encode returns the flat attribute form.
func (p HeroItemGranted) Encode() map[string]string {
	attrs := map[string]string{"item": p.ItemRef}
	putInt(attrs, "quantity", int64(p.Quantity))
	if p.Source != "" {
		attrs["source"] = p.Source
	}
	return attrs
}

// DecodeHeroItemGranted parses the flat attribute form.
func DecodeHeroItemGranted(attrs map[string]string) (HeroItemGranted, error) {
	quantity, err := attrInt(attrs, "quantity")
	if err != nil {
		return HeroItemGranted{}, err
	}
	return HeroItemGranted{ItemRef: attrs["item"], Quantity: int(quantity), Source: attrs["source"]}, nil
}

// HeroStatChanged records a derived stat delta pushed to the hero record.
type HeroStatChanged struct {
	Stat   string
	Delta  int64
	Source string
}

// Encode returns the flat attribute form.
func (p HeroStatChanged) Encode() map[string]string {
	attrs := map[string]string{"stat": p.Stat}
	putInt(attrs, "delta", p.Delta)
	if p.Source != "" {
		attrs["source"] = p.Source
	}
	return attrs
}

// DecodeHeroStatChanged parses the flat attribute form.
func DecodeHeroStatChanged(attrs map[string]string) (HeroStatChanged, error) {
	delta, err := attrInt(attrs, "delta")
	if err != nil {
		return HeroStatChanged{}, err
	}
	return HeroStatChanged{Stat: attrs["stat"], Delta: delta, Source: attrs["source"]}, nil
}

// Reversed compensates an earlier committed transaction whose external
// side effect failed. The original record stays in the log untouched.
type Reversed struct {
	OriginalID   string
	OriginalKind Kind
	Reason       string
}

// Encode returns the flat attribute form.
func (p Reversed) Encode() map[string]string {
	return map[string]string{
		"original_id":   p.OriginalID,
		"original_kind": string(p.OriginalKind),
		"reason":        p.Reason,
	}
}

// DecodeReversed parses the flat attribute form.
func DecodeReversed(attrs map[string]string) (Reversed, error) {
	return Reversed{
		OriginalID:   attrs["original_id"],
		OriginalKind: Kind(attrs["original_kind"]),
		Reason:       attrs["reason"],
	}, nil
}

// SortedAttrKeys returns the attribute keys in lexical order, the canonical
// ordering used by hashing and archival encoding.
func SortedAttrKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
