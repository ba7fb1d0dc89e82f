// Package enchant registers custom enchantments and renders them as item lore.
package enchant

import (
	"slices"
	"strings"
)

// Rarity is the rarity of an enchantment. The weight decides how likely the
// enchantment is picked when enchanting.
type Rarity struct {
	name   string
	weight int
}

var (
	RarityCommon   = Rarity{name: "Common", weight: 10}
	RarityUncommon = Rarity{name: "Uncommon", weight: 5}
	RarityRare     = Rarity{name: "Rare", weight: 2}
	RarityVeryRare = Rarity{name: "Very Rare", weight: 1}
)

// Name ...
func (r Rarity) Name() string {
	return r.name
}

// Weight ...
func (r Rarity) Weight() int {
	return r.weight
}

// Type is an enchantment that items may carry.
type Type interface {
	// Name returns the name of the enchantment as shown to players.
	Name() string
	// MaxLevel returns the highest level the enchantment can be applied at.
	MaxLevel() int
	// Cost returns the minimum and maximum enchanting power that can produce
	// the level passed.
	Cost(level int) (int, int)
	// Rarity ...
	Rarity() Rarity
	// CompatibleWithEnchantment reports whether the enchantment may be on the
	// same item as t.
	CompatibleWithEnchantment(t Type) bool
	// CompatibleWithItem reports whether the enchantment may be applied to the
	// item with the identifier passed, such as "minecraft:trident".
	CompatibleWithItem(item string) bool
}

// Simple is a Type described by its fields, for enchantments that need no
// behaviour of their own.
type Simple struct {
	DisplayName string
	Max         int
	Rare        Rarity
	// BaseCost is the minimum cost at level 1 and CostPerLevel is added for
	// every level above. CostSpread is the gap between the minimum and
	// maximum cost.
	BaseCost, CostPerLevel, CostSpread int
	// Items lists the item identifiers the enchantment applies to. Empty means
	// any item.
	Items []string
	// Incompatible lists the names of enchantments that conflict with this one.
	Incompatible []string
}

// Name ...
func (s Simple) Name() string {
	return s.DisplayName
}

// MaxLevel ...
func (s Simple) MaxLevel() int {
	return max(s.Max, 1)
}

// Cost ...
func (s Simple) Cost(level int) (int, int) {
	minCost := s.BaseCost + (level-1)*s.CostPerLevel
	return minCost, minCost + s.CostSpread
}

// Rarity ...
func (s Simple) Rarity() Rarity {
	if s.Rare == (Rarity{}) {
		return RarityCommon
	}
	return s.Rare
}

// CompatibleWithEnchantment ...
func (s Simple) CompatibleWithEnchantment(t Type) bool {
	return !slices.ContainsFunc(s.Incompatible, func(name string) bool {
		return strings.EqualFold(name, t.Name())
	})
}

// CompatibleWithItem ...
func (s Simple) CompatibleWithItem(item string) bool {
	return len(s.Items) == 0 || slices.Contains(s.Items, item)
}
