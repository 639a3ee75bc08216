package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_WrapsModuloLength(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e"}
	for start := range order {
		for k := 0; k < 12; k++ {
			seq := TurnSequence{Order: order, Index: start}
			for i := 0; i < k; i++ {
				seq.Advance()
			}
			require.Equal(t, (start+k)%len(order), seq.Index, "start=%d k=%d", start, k)
		}
	}
}

func TestAdvance_EmptySequence(t *testing.T) {
	var seq TurnSequence
	_, ok := seq.Advance()
	assert.False(t, ok)
	_, ok = seq.Current()
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	cases := []struct {
		name      string
		order     []string
		index     int
		remove    string
		wantOrder []string
		// player the next Advance should land on
		wantNext string
	}{
		{
			name:      "remove current keeps successor next",
			order:     []string{"a", "b", "c"},
			index:     1,
			remove:    "b",
			wantOrder: []string{"a", "c"},
			wantNext:  "c",
		},
		{
			name:      "remove current at head wraps",
			order:     []string{"a", "b", "c"},
			index:     0,
			remove:    "a",
			wantOrder: []string{"b", "c"},
			wantNext:  "b",
		},
		{
			name:      "remove current at tail wraps to head",
			order:     []string{"a", "b", "c"},
			index:     2,
			remove:    "c",
			wantOrder: []string{"a", "b"},
			wantNext:  "a",
		},
		{
			name:      "remove before current keeps current",
			order:     []string{"a", "b", "c", "d"},
			index:     2,
			remove:    "a",
			wantOrder: []string{"b", "c", "d"},
			wantNext:  "d",
		},
		{
			name:      "remove after current keeps current",
			order:     []string{"a", "b", "c", "d"},
			index:     1,
			remove:    "d",
			wantOrder: []string{"a", "b", "c"},
			wantNext:  "c",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := NewTurnSequence(tc.order)
			seq.Index = tc.index
			before, _ := seq.Current()

			require.True(t, seq.Remove(tc.remove))
			assert.Equal(t, tc.wantOrder, seq.Order)

			if tc.remove != before {
				cur, _ := seq.Current()
				assert.Equal(t, before, cur, "current player must not change")
			}

			next, ok := seq.Advance()
			require.True(t, ok)
			assert.Equal(t, tc.wantNext, next)
		})
	}
}

func TestRemove_UnknownAndLast(t *testing.T) {
	seq := NewTurnSequence([]string{"a"})
	assert.False(t, seq.Remove("zz"))
	assert.True(t, seq.Remove("a"))
	assert.Equal(t, 0, seq.Len())
	assert.Equal(t, 0, seq.Index)
}

func TestRemove_NeverLeavesIndexOutOfRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 500; trial++ {
		n := 1 + rng.Intn(8)
		order := make([]string, n)
		for i := range order {
			order[i] = fmt.Sprintf("p%d", i)
		}
		seq := NewTurnSequence(order)
		seq.Index = rng.Intn(n)

		for seq.Len() > 0 {
			if rng.Intn(2) == 0 {
				seq.Advance()
			}
			victim := seq.Order[rng.Intn(seq.Len())]
			seq.Remove(victim)
			if seq.Len() > 0 {
				require.GreaterOrEqual(t, seq.Index, 0)
				require.Less(t, seq.Index, seq.Len())
			} else {
				require.Equal(t, 0, seq.Index)
			}
		}
	}
}

func TestShuffledOrder_IsPermutation(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4"}
	order := ShuffledOrder(rand.New(rand.NewSource(3)), players)

	assert.ElementsMatch(t, players, order)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, players, "input must not be reordered")
}
