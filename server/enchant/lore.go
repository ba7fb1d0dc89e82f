package enchant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrLevel is returned when applying an enchantment at a level outside its
	// range.
	ErrLevel = errors.New("enchantment level out of range")
	// ErrIncompatible is returned when applying an enchantment that conflicts
	// with the item or with an enchantment already on it.
	ErrIncompatible = errors.New("incompatible enchantment")
)

// Instance is an enchantment at a level.
type Instance struct {
	Type  Type
	Level int
}

// Set is the ordered list of enchantments on an item.
type Set struct {
	Item      string
	Instances []Instance
}

// Apply adds t at level to the set. An enchantment already in the set is
// replaced.
func Apply(set *Set, t Type, level int) error {
	if level < 1 || level > t.MaxLevel() {
		return fmt.Errorf("%w: %s %d, max %d", ErrLevel, t.Name(), level, t.MaxLevel())
	}
	if set.Item != "" && !t.CompatibleWithItem(set.Item) {
		return fmt.Errorf("%w: %s cannot be applied to %s", ErrIncompatible, t.Name(), set.Item)
	}
	others := lo.Filter(set.Instances, func(in Instance, _ int) bool {
		return !strings.EqualFold(in.Type.Name(), t.Name())
	})
	if conflict, ok := lo.Find(others, func(in Instance) bool {
		return !t.CompatibleWithEnchantment(in.Type) || !in.Type.CompatibleWithEnchantment(t)
	}); ok {
		return fmt.Errorf("%w: %s conflicts with %s", ErrIncompatible, t.Name(), conflict.Type.Name())
	}
	set.Instances = append(others, Instance{Type: t, Level: level})
	return nil
}

// Lore renders enchantments the way they are listed on an item, one line per
// enchantment, such as "Luck Of The Sea III".
func Lore(instances ...Instance) []string {
	title := cases.Title(language.English)
	return lo.Map(instances, func(in Instance, _ int) string {
		name := title.String(strings.ToLower(in.Type.Name()))
		if in.Type.MaxLevel() == 1 && in.Level == 1 {
			return name
		}
		return name + " " + Roman(in.Level)
	})
}

var numerals = [...]string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}

// Roman returns level as a roman numeral up to 10 and as a decimal number
// above.
func Roman(level int) string {
	if level >= 1 && level < len(numerals) {
		return numerals[level]
	}
	return strconv.Itoa(level)
}
