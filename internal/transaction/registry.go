package transaction

import (
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
)

// Validation errors surfaced by ValidateForAppend. Matching uses the
// platform error code, so wrapped variants still satisfy errors.Is.
var (
	ErrKindUnknown  = apperrors.New(apperrors.CodeTransactionKindUnknown, "transaction kind is not registered")
	ErrHeroRequired = apperrors.New(apperrors.CodeTransactionHeroRequired, "transaction requires an owning hero")
	ErrAttrRequired = apperrors.New(apperrors.CodeTransactionEntityRequired, "transaction is missing a required attribute")
	ErrNotPending   = apperrors.New(apperrors.CodeTransactionNotPending, "transaction is not pending")
)

// Definition declares the append-time contract for one kind.
type Definition struct {
	Kind Kind
	// RequiredAttrs lists attribute keys that must be present and
	// non-blank before the transaction may enter the journal.
	RequiredAttrs []string
}

// Registry validates transactions against registered kind definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[Kind]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Kind]Definition)}
}

// Register adds a kind definition. Registering the same kind twice fails.
func (r *Registry) Register(def Definition) error {
	kind := Kind(strings.TrimSpace(string(def.Kind)))
	if kind == "" {
		return fmt.Errorf("kind is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[kind]; exists {
		return fmt.Errorf("kind %s already registered", kind)
	}
	def.Kind = kind
	r.defs[kind] = def
	return nil
}

// Definition returns the registered definition for a kind.
func (r *Registry) Definition(kind Kind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[kind]
	return def, ok
}

// ValidateForAppend checks a transaction against its kind definition and
// returns a normalized copy: attribute keys trimmed, blank attribute keys
// rejected, canonical timestamp defaulted. Sequence and integrity fields
// must still be unset; persistence assigns them at commit.
func (r *Registry) ValidateForAppend(tx Transaction) (Transaction, error) {
	if tx.Status != StatusPending {
		return Transaction{}, fmt.Errorf("validate %s: %w", tx.Kind, ErrNotPending)
	}
	if strings.TrimSpace(tx.HeroID) == "" {
		return Transaction{}, fmt.Errorf("validate %s: %w", tx.Kind, ErrHeroRequired)
	}

	r.mu.RLock()
	def, ok := r.defs[tx.Kind]
	r.mu.RUnlock()
	if !ok {
		return Transaction{}, fmt.Errorf("validate %q: %w", tx.Kind, ErrKindUnknown)
	}

	normalized := tx.Clone()
	if normalized.Attrs == nil {
		normalized.Attrs = map[string]string{}
	} else {
		attrs := make(map[string]string, len(normalized.Attrs))
		for key, value := range normalized.Attrs {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				return Transaction{}, fmt.Errorf("validate %s: attribute key cannot be blank", tx.Kind)
			}
			if _, dup := attrs[trimmed]; dup {
				return Transaction{}, fmt.Errorf("validate %s: duplicate attribute key %q", tx.Kind, trimmed)
			}
			attrs[trimmed] = value
		}
		normalized.Attrs = attrs
	}

	for _, required := range def.RequiredAttrs {
		if strings.TrimSpace(normalized.Attrs[required]) == "" {
			return Transaction{}, fmt.Errorf("validate %s: attribute %q: %w", tx.Kind, required, ErrAttrRequired)
		}
	}

	if normalized.CanonicalAt.IsZero() {
		normalized.CanonicalAt = normalized.OccurredAt
	}
	return normalized, nil
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry with every built-in
// kind registered.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, def := range builtinDefinitions() {
			if err := defaultRegistry.Register(def); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}

func builtinDefinitions() []Definition {
	return []Definition{
		{Kind: KindCharacterSpawned, RequiredAttrs: []string{"character"}},
		{Kind: KindCharacterDefeated, RequiredAttrs: []string{"character"}},
		{Kind: KindCharacterLooted, RequiredAttrs: []string{"character"}},
		{Kind: KindFeatureInteracted, RequiredAttrs: []string{"feature"}},
		{Kind: KindDialogueVisited, RequiredAttrs: []string{"dialogue", "node"}},
		{Kind: KindQuestAccepted, RequiredAttrs: []string{"quest"}},
		{Kind: KindQuestObjectiveCompleted, RequiredAttrs: []string{"quest", "stage", "objective"}},
		{Kind: KindQuestBranchChosen, RequiredAttrs: []string{"quest", "stage", "branch"}},
		{Kind: KindQuestCompleted, RequiredAttrs: []string{"quest"}},
		{Kind: KindQuestAbandoned, RequiredAttrs: []string{"quest"}},
		{Kind: KindQuestFailed, RequiredAttrs: []string{"quest", "reason"}},
		{Kind: KindReputationChanged, RequiredAttrs: []string{"faction", "amount"}},
		{Kind: KindTriggerActivated, RequiredAttrs: []string{"trigger"}},
		{Kind: KindBattleStarted, RequiredAttrs: []string{"battle", "seed", "enemy_ref"}},
		{Kind: KindBattleTurn, RequiredAttrs: []string{"battle", "turn", "side", "decision"}},
		{Kind: KindBattleEnded, RequiredAttrs: []string{"battle", "outcome"}},
		{Kind: KindClaimMovement, RequiredAttrs: []string{"from_x", "from_y", "to_x", "to_y", "started_at", "ended_at"}},
		{Kind: KindClaimMining, RequiredAttrs: []string{"feature", "resource", "blocks", "started_at", "ended_at"}},
		{Kind: KindClaimBuilding, RequiredAttrs: []string{"feature", "blocks", "started_at", "ended_at"}},
		{Kind: KindClaimToolWear, RequiredAttrs: []string{"tool", "blocks", "wear"}},
		{Kind: KindHeroItemGranted, RequiredAttrs: []string{"item", "quantity"}},
		{Kind: KindHeroStatChanged, RequiredAttrs: []string{"stat", "delta"}},
		{Kind: KindReversed, RequiredAttrs: []string{"original_id", "original_kind", "reason"}},
	}
}
