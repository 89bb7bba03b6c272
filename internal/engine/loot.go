package engine

import (
	"context"
	"fmt"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// LootResult reports a loot award. Reversed lists the reward
// transactions compensated after a failed hero push; the loot record
// itself always stands once committed.
type LootResult struct {
	Committed []transaction.Transaction
	Items     []string
	Reversed  []string
}

// StatChangeResult reports a hero stat change.
type StatChangeResult struct {
	Committed transaction.Transaction
	Reversed  []string
}

// AwardLoot empties a defeated character's inventory onto the hero. The
// character must be spawned, down, and not yet looted; every carried
// item commits as its own grant so a failed push reverses item by item.
func (h Handler) AwardLoot(ctx context.Context, instanceID, characterRef string) (LootResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return LootResult{}, err
	}
	if _, ok := sc.tpl.Character(characterRef); !ok {
		return LootResult{}, characterUnknown(characterRef)
	}
	cs := sc.state.Characters[characterRef]
	if !cs.Spawned {
		return LootResult{}, apperrors.WithMetadata(apperrors.CodeCharacterNotSpawned,
			fmt.Sprintf("character %q is not in the world", characterRef),
			map[string]string{"character_ref": characterRef})
	}
	if cs.Alive {
		return LootResult{}, apperrors.WithMetadata(apperrors.CodeCharacterStillStands,
			fmt.Sprintf("character %q still stands", characterRef),
			map[string]string{"character_ref": characterRef})
	}
	if cs.Looted {
		return LootResult{}, apperrors.WithMetadata(apperrors.CodeCharacterAlreadyLoot,
			fmt.Sprintf("character %q has already been looted", characterRef),
			map[string]string{"character_ref": characterRef})
	}

	items := append([]string(nil), cs.Inventory...)
	batch := make([]transaction.Transaction, 0, len(items)+1)
	batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindCharacterLooted, transaction.CharacterLooted{
		CharacterRef: characterRef,
		ItemRefs:     items,
	}.Encode()))
	for _, item := range items {
		batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindHeroItemGranted, transaction.HeroItemGranted{
			ItemRef:  item,
			Quantity: 1,
			Source:   "loot:" + characterRef,
		}.Encode()))
	}

	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return LootResult{}, err
	}
	reversed, err := h.pushRewards(ctx, sc, committed[1:])
	if err != nil {
		return LootResult{Committed: committed, Items: items, Reversed: reversed}, err
	}
	return LootResult{Committed: committed, Items: items}, nil
}

// ChangeHeroStat commits a stat delta and mirrors it onto the hero
// record. A rejected push reverses the committed change. The stat name
// is validated by the registry at append.
func (h Handler) ChangeHeroStat(ctx context.Context, instanceID string, change transaction.HeroStatChanged) (StatChangeResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return StatChangeResult{}, err
	}
	committed, err := h.commitBatch(ctx, instanceID, []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindHeroStatChanged, change.Encode()),
	})
	if err != nil {
		return StatChangeResult{}, err
	}
	reversed, err := h.pushRewards(ctx, sc, committed)
	if err != nil {
		return StatChangeResult{Committed: committed[0], Reversed: reversed}, err
	}
	return StatChangeResult{Committed: committed[0]}, nil
}
