package engine

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

type Contribution struct {
	ContributorID string
	Name          string
}

type Assignment struct {
	GuesserID     string
	ContributorID string
	Name          string
}

// AssignNames hands every contributed name to a distinct player, avoiding
// giving anyone their own name.
//
// Contributions are processed in order. Each name goes to a random player
// among those still unassigned, excluding its contributor; only when the
// contributor is the last unassigned player do they get their own name.
// This greedy pass always completes but is an approximate derangement: an
// unlucky earlier pick can force the last contributor onto their own name
// even though a full derangement existed.
func AssignNames(rng *rand.Rand, players []string, contributions []Contribution) ([]Assignment, error) {
	if len(players) != len(contributions) {
		return nil, gameerr.Internal("assign names",
			fmt.Errorf("%d players but %d contributions", len(players), len(contributions)))
	}

	unassigned := append([]string(nil), players...)
	out := make([]Assignment, 0, len(contributions))

	for _, c := range contributions {
		candidates := make([]string, 0, len(unassigned))
		for _, p := range unassigned {
			if p != c.ContributorID {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			candidates = unassigned
		}

		pick := candidates[rng.Intn(len(candidates))]
		unassigned = slices.DeleteFunc(unassigned, func(p string) bool { return p == pick })

		out = append(out, Assignment{GuesserID: pick, ContributorID: c.ContributorID, Name: c.Name})
	}
	return out, nil
}
