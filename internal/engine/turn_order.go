package engine

import "math/rand"

// TurnSequence is the shrinking list of players still taking turns in a
// round, plus a pointer at whoever's turn it is.
type TurnSequence struct {
	Order []string
	Index int
}

func NewTurnSequence(order []string) TurnSequence {
	return TurnSequence{Order: append([]string(nil), order...)}
}

// ShuffledOrder returns a uniformly random permutation of players
// (Fisher-Yates via rng.Shuffle). players is not modified.
func ShuffledOrder(rng *rand.Rand, players []string) []string {
	order := append([]string(nil), players...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

func (t TurnSequence) Len() int { return len(t.Order) }

func (t TurnSequence) Current() (string, bool) {
	if len(t.Order) == 0 {
		return "", false
	}
	return t.Order[t.Index], true
}

func (t TurnSequence) Contains(id string) bool {
	return t.position(id) >= 0
}

// Advance moves the pointer to the next player, wrapping at the end.
func (t *TurnSequence) Advance() (string, bool) {
	if len(t.Order) == 0 {
		t.Index = 0
		return "", false
	}
	t.Index = (t.Index + 1) % len(t.Order)
	return t.Order[t.Index], true
}

// Remove deletes id from the sequence. When the removed entry sat at or
// before the pointer, the pointer steps back so the next Advance lands on
// the removed player's successor.
func (t *TurnSequence) Remove(id string) bool {
	pos := t.position(id)
	if pos < 0 {
		return false
	}
	t.Order = append(t.Order[:pos:pos], t.Order[pos+1:]...)

	if len(t.Order) == 0 {
		t.Index = 0
		return true
	}
	if pos <= t.Index {
		t.Index--
	}
	if t.Index < 0 {
		t.Index = len(t.Order) - 1
	}
	if t.Index >= len(t.Order) {
		t.Index = 0
	}
	return true
}

func (t TurnSequence) Clone() TurnSequence {
	return TurnSequence{Order: append([]string(nil), t.Order...), Index: t.Index}
}

func (t TurnSequence) position(id string) int {
	for i, p := range t.Order {
		if p == id {
			return i
		}
	}
	return -1
}
