package enchant

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, e := range Defaults() {
		if _, err := r.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.Name(), err)
		}
	}
	telekinesis := Simple{DisplayName: "Telekinesis", Max: 1, Rare: RarityVeryRare, BaseCost: 20, CostSpread: 30}
	id, err := r.Register(telekinesis)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != firstCustomID+len(Defaults()) {
		t.Fatalf("unexpected id %d", id)
	}
	if _, err := r.Register(Simple{DisplayName: "TELEKINESIS"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, gotID, ok := r.ByName("luck OF the sea")
	if !ok || got != LuckOfTheSea || gotID != firstCustomID {
		t.Fatalf("lookup by name failed: %v %d %v", got, gotID, ok)
	}
	if byID, ok := r.ByID(id); !ok || byID.Name() != "Telekinesis" {
		t.Fatalf("lookup by id failed")
	}
	if all := r.All(); len(all) != r.Len() || all[len(all)-1].Name() != "Telekinesis" {
		t.Fatalf("unexpected registration order")
	}
}

func TestApply(t *testing.T) {
	set := &Set{Item: "minecraft:trident"}
	if err := Apply(set, Loyalty, 3); err != nil {
		t.Fatalf("apply loyalty: %v", err)
	}
	if err := Apply(set, Loyalty, 4); !errors.Is(err, ErrLevel) {
		t.Fatalf("expected ErrLevel, got %v", err)
	}
	if err := Apply(set, Riptide, 1); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected riptide to conflict with loyalty, got %v", err)
	}
	if err := Apply(set, Lure, 1); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected lure to be refused on a trident, got %v", err)
	}
	if err := Apply(set, Loyalty, 1); err != nil {
		t.Fatalf("reapply loyalty: %v", err)
	}
	if len(set.Instances) != 1 || set.Instances[0].Level != 1 {
		t.Fatalf("expected loyalty to be replaced, got %+v", set.Instances)
	}

	custom := Simple{DisplayName: "Frost Bite", Max: 2, Incompatible: []string{"channeling"}}
	if err := Apply(set, Channeling, 1); err != nil {
		t.Fatalf("apply channeling: %v", err)
	}
	if err := Apply(set, custom, 1); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected custom enchantment to conflict, got %v", err)
	}
}

func TestLore(t *testing.T) {
	lines := Lore(
		Instance{Type: LuckOfTheSea, Level: 3},
		Instance{Type: Channeling, Level: 1},
		Instance{Type: Simple{DisplayName: "sharpness", Max: 20}, Level: 12},
		Instance{Type: Density, Level: 10},
	)
	want := []string{"Luck Of The Sea III", "Channeling", "Sharpness 12", "Density X"}
	if !slices.Equal(lines, want) {
		t.Fatalf("expected %q, got %q", want, lines)
	}
}

func TestRoman(t *testing.T) {
	for level, want := range map[int]string{1: "I", 4: "IV", 9: "IX", 10: "X", 11: "11", 0: "0"} {
		if got := Roman(level); got != want {
			t.Errorf("Roman(%d) = %q, want %q", level, got, want)
		}
	}
}

func TestSimpleCost(t *testing.T) {
	s := Simple{DisplayName: "x", BaseCost: 10, CostPerLevel: 5, CostSpread: 20}
	if lo, hi := s.Cost(3); lo != 20 || hi != 40 {
		t.Fatalf("unexpected cost %d-%d", lo, hi)
	}
	if s.Rarity() != RarityCommon || s.MaxLevel() != 1 {
		t.Fatalf("unexpected defaults")
	}
}
