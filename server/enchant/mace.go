package enchant

const mace = "minecraft:mace"

// Density increases the damage of smash attacks depending on the fall distance.
var Density density

type density struct{}

// Name ...
func (density) Name() string {
	return "Density"
}

// MaxLevel ...
func (density) MaxLevel() int {
	return 5
}

// Cost ...
func (density) Cost(level int) (int, int) {
	minCost := 15 + (level-1)*9
	return minCost, minCost + 20
}

// Rarity ...
func (density) Rarity() Rarity {
	return RarityUncommon
}

// CompatibleWithEnchantment ...
func (density) CompatibleWithEnchantment(t Type) bool {
	return t != Breach
}

// CompatibleWithItem ...
func (density) CompatibleWithItem(item string) bool {
	return item == mace
}

// Breach reduces the effectiveness of the armour of the target.
var Breach breach

type breach struct{}

// Name ...
func (breach) Name() string {
	return "Breach"
}

// MaxLevel ...
func (breach) MaxLevel() int {
	return 4
}

// Cost ...
func (breach) Cost(level int) (int, int) {
	minCost := 25 + (level-1)*10
	return minCost, minCost + 25
}

// Rarity ...
func (breach) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (breach) CompatibleWithEnchantment(t Type) bool {
	return t != Density
}

// CompatibleWithItem ...
func (breach) CompatibleWithItem(item string) bool {
	return item == mace
}

// WindBurst launches the wielder upward after landing a smash attack.
var WindBurst windBurst

type windBurst struct{}

// Name ...
func (windBurst) Name() string {
	return "Wind Burst"
}

// MaxLevel ...
func (windBurst) MaxLevel() int {
	return 3
}

// Cost ...
func (windBurst) Cost(level int) (int, int) {
	minCost := 30 + (level-1)*12
	return minCost, minCost + 25
}

// Rarity ...
func (windBurst) Rarity() Rarity {
	return RarityRare
}

// CompatibleWithEnchantment ...
func (windBurst) CompatibleWithEnchantment(Type) bool {
	return true
}

// CompatibleWithItem ...
func (windBurst) CompatibleWithItem(item string) bool {
	return item == mace
}
