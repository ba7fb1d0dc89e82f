package enchant

const trident = "minecraft:trident"

// Channeling allows tridents to summon lightning during thunderstorms.
var Channeling channeling

type channeling struct{}

// Name ...
func (channeling) Name() string {
	return "Channeling"
}

// MaxLevel ...
func (channeling) MaxLevel() int {
	return 1
}

// Cost ...
func (channeling) Cost(int) (int, int) {
	return 25, 50
}

// Rarity ...
func (channeling) Rarity() Rarity {
	return RarityVeryRare
}

// CompatibleWithEnchantment ...
func (channeling) CompatibleWithEnchantment(t Type) bool {
	_, isRiptide := t.(riptide)
	return !isRiptide
}

// CompatibleWithItem ...
func (channeling) CompatibleWithItem(item string) bool {
	return item == trident
}

// Loyalty causes thrown tridents to return to their wielder.
var Loyalty loyalty

type loyalty struct{}

// Name ...
func (loyalty) Name() string {
	return "Loyalty"
}

// MaxLevel ...
func (loyalty) MaxLevel() int {
	return 3
}

// Cost ...
func (loyalty) Cost(level int) (int, int) {
	minCost := 12 + (level-1)*7
	return minCost, minCost + 50
}

// Rarity ...
func (loyalty) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (loyalty) CompatibleWithEnchantment(t Type) bool {
	_, isRiptide := t.(riptide)
	return !isRiptide
}

// CompatibleWithItem ...
func (loyalty) CompatibleWithItem(item string) bool {
	return item == trident
}

// Riptide propels the wielder forward when throwing a trident in water or rain.
var Riptide riptide

type riptide struct{}

// Name ...
func (riptide) Name() string {
	return "Riptide"
}

// MaxLevel ...
func (riptide) MaxLevel() int {
	return 3
}

// Cost ...
func (riptide) Cost(level int) (int, int) {
	minCost := 17 + (level-1)*7
	return minCost, minCost + 50
}

// Rarity ...
func (riptide) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (riptide) CompatibleWithEnchantment(t Type) bool {
	_, isLoyalty := t.(loyalty)
	_, isChanneling := t.(channeling)
	return !isLoyalty && !isChanneling
}

// CompatibleWithItem ...
func (riptide) CompatibleWithItem(item string) bool {
	return item == trident
}
