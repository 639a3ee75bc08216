package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

func TestAssignNames_Bijection(t *testing.T) {
	for n := 2; n <= 9; n++ {
		for seed := int64(0); seed < 200; seed++ {
			players := make([]string, n)
			contribs := make([]Contribution, n)
			for i := range players {
				players[i] = fmt.Sprintf("p%d", i)
				contribs[i] = Contribution{ContributorID: players[i], Name: fmt.Sprintf("name-%d", i)}
			}
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(n, func(i, j int) { contribs[i], contribs[j] = contribs[j], contribs[i] })

			got, err := AssignNames(rng, players, contribs)
			require.NoError(t, err)
			require.Len(t, got, n)

			guessers := map[string]bool{}
			names := map[string]bool{}
			for i, a := range got {
				guessers[a.GuesserID] = true
				names[a.Name] = true
				assert.Equal(t, contribs[i].ContributorID, a.ContributorID)

				// self-assignment only when the last contributor is the last one unassigned
				if a.GuesserID == a.ContributorID {
					assert.Equal(t, n-1, i, "n=%d seed=%d: self-assignment before the forced case", n, seed)
				}
			}
			assert.Len(t, guessers, n, "every player guesses exactly one name")
			assert.Len(t, names, n, "every name is handed out once")
		}
	}
}

func TestAssignNames_TwoPlayersSwap(t *testing.T) {
	players := []string{"a", "b"}
	contribs := []Contribution{{ContributorID: "a", Name: "Ada"}, {ContributorID: "b", Name: "Bo"}}

	got, err := AssignNames(rand.New(rand.NewSource(1)), players, contribs)
	require.NoError(t, err)

	assert.Equal(t, []Assignment{
		{GuesserID: "b", ContributorID: "a", Name: "Ada"},
		{GuesserID: "a", ContributorID: "b", Name: "Bo"},
	}, got)
}

func TestAssignNames_SinglePlayerGetsOwnName(t *testing.T) {
	got, err := AssignNames(rand.New(rand.NewSource(1)), []string{"a"}, []Contribution{{ContributorID: "a", Name: "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].GuesserID)
}

func TestAssignNames_CountMismatch(t *testing.T) {
	_, err := AssignNames(rand.New(rand.NewSource(1)), []string{"a", "b"}, []Contribution{{ContributorID: "a"}})
	assert.ErrorIs(t, err, gameerr.ErrInternal)
}
