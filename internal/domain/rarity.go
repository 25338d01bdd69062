package domain

import "fmt"

// Rarity is a card rarity label. Labels are totally ordered:
// Common < Uncommon < Rare < Epic < Legendary.
type Rarity string

const (
	Common    Rarity = "Common"
	Uncommon  Rarity = "Uncommon"
	Rare      Rarity = "Rare"
	Epic      Rarity = "Epic"
	Legendary Rarity = "Legendary"
)

var rarityOrder = []Rarity{Common, Uncommon, Rare, Epic, Legendary}

var rarityRank = func() map[Rarity]int {
	m := make(map[Rarity]int, len(rarityOrder))
	for i, r := range rarityOrder {
		m[r] = i
	}
	return m
}()

// Rarities returns every known rarity, lowest first.
func Rarities() []Rarity {
	out := make([]Rarity, len(rarityOrder))
	copy(out, rarityOrder)
	return out
}

// ParseRarity accepts an exact rarity label. Unknown labels are rejected
// rather than ranked.
func ParseRarity(s string) (Rarity, error) {
	r := Rarity(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRarity, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known labels.
func (r Rarity) Valid() bool {
	_, ok := rarityRank[r]
	return ok
}

// Rank is the position of r in the order, or -1 for unknown labels.
func (r Rarity) Rank() int {
	if rank, ok := rarityRank[r]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether r ranks at or above floor. Unknown labels never qualify.
func (r Rarity) AtLeast(floor Rarity) bool {
	if !r.Valid() || !floor.Valid() {
		return false
	}
	return CompareRarity(r, floor) >= 0
}

// CompareRarity returns -1, 0 or +1. Both labels must be valid.
func CompareRarity(a, b Rarity) int {
	switch ra, rb := a.Rank(), b.Rank(); {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}
