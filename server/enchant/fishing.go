package enchant

const fishingRod = "minecraft:fishing_rod"

// LuckOfTheSea increases the chance to obtain treasure while fishing.
var LuckOfTheSea luckOfTheSea

type luckOfTheSea struct{}

// Name ...
func (luckOfTheSea) Name() string {
	return "Luck of the Sea"
}

// MaxLevel ...
func (luckOfTheSea) MaxLevel() int {
	return 3
}

// Cost ...
func (luckOfTheSea) Cost(level int) (int, int) {
	minCost := 15 + (level-1)*9
	return minCost, minCost + 50
}

// Rarity ...
func (luckOfTheSea) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (luckOfTheSea) CompatibleWithEnchantment(Type) bool {
	return true
}

// CompatibleWithItem ...
func (luckOfTheSea) CompatibleWithItem(item string) bool {
	return item == fishingRod
}

// Lure decreases the waiting time before something bites on a fishing rod.
var Lure lure

type lure struct{}

// Name ...
func (lure) Name() string {
	return "Lure"
}

// MaxLevel ...
func (lure) MaxLevel() int {
	return 3
}

// Cost ...
func (lure) Cost(level int) (int, int) {
	minCost := 15 + (level-1)*9
	return minCost, minCost + 50
}

// Rarity ...
func (lure) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (lure) CompatibleWithEnchantment(Type) bool {
	return true
}

// CompatibleWithItem ...
func (lure) CompatibleWithItem(item string) bool {
	return item == fishingRod
}
