package engine

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/name-guess-backend/internal/events"
)

// NormalizeName trims surrounding space and puts text in NFC so that the
// same name typed on different keyboards compares equal.
func NormalizeName(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// SameName compares two names ignoring case.
func SameName(a, b string) bool {
	fold := cases.Fold()
	return fold.String(NormalizeName(a)) == fold.String(NormalizeName(b))
}

func (s State) Clone() State {
	out := s
	out.Room.Members = slices.Clone(s.Room.Members)
	if s.Rounds != nil {
		out.Rounds = make([]Round, len(s.Rounds))
		for i, r := range s.Rounds {
			out.Rounds[i] = r.Clone()
		}
	}
	return out
}

func (r Round) Clone() Round {
	out := r
	out.Roster = slices.Clone(r.Roster)
	out.Turn = r.Turn.Clone()
	out.Assignments = slices.Clone(r.Assignments)
	out.Answers = slices.Clone(r.Answers)
	out.SolveOrder = slices.Clone(r.SolveOrder)
	if r.Pending != nil {
		q := *r.Pending
		out.Pending = &q
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	return out
}

func (s State) IsMember(id string) bool {
	return slices.ContainsFunc(s.Room.Members, func(m Member) bool { return m.ID == id })
}

func (s State) MemberIDs() []string {
	ids := make([]string, 0, len(s.Room.Members))
	for _, m := range s.Room.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// Empty reports whether the last member has left; the room should then be
// deleted together with its rounds.
func (s State) Empty() bool { return len(s.Room.Members) == 0 }

// CurrentRound returns the most recent round, or nil before the first
// submission.
func (s *State) CurrentRound() *Round {
	if len(s.Rounds) == 0 {
		return nil
	}
	return &s.Rounds[len(s.Rounds)-1]
}

func (s *State) FindRound(id string) *Round {
	for i := range s.Rounds {
		if s.Rounds[i].ID == id {
			return &s.Rounds[i]
		}
	}
	return nil
}

func (s *State) activeRound(id string) (*Round, error) {
	r := s.FindRound(id)
	if r == nil {
		return nil, ErrRoundNotFound
	}
	if s.Room.Status != StatusPlaying || r.Phase != PhaseActive {
		return nil, ErrNotPlaying
	}
	return r, nil
}

func (s State) View() events.RoomView {
	players := make([]events.PlayerRef, 0, len(s.Room.Members))
	for _, m := range s.Room.Members {
		players = append(players, events.PlayerRef{ID: m.ID, Name: m.Name})
	}
	return events.RoomView{
		ID:        s.Room.ID,
		Name:      s.Room.Name,
		OwnerID:   s.Room.OwnerID,
		Status:    string(s.Room.Status),
		Capacity:  s.Room.Capacity,
		Players:   players,
		CreatedAt: s.Room.CreatedAt,
	}
}

func (r *Round) answered(seq int, playerID string) bool {
	return slices.ContainsFunc(r.Answers, func(a QuestionAnswer) bool {
		return a.QuestionSeq == seq && a.ResponderID == playerID
	})
}

func (r *Round) memberName(id string) string {
	for _, m := range r.Roster {
		if m.ID == id {
			return m.Name
		}
	}
	return "unknown"
}

func (r *Round) playerRefs(ids []string) []events.PlayerRef {
	refs := make([]events.PlayerRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, events.PlayerRef{ID: id, Name: r.memberName(id)})
	}
	return refs
}

// assignmentViews lists every assignment except the one guessed by hide.
func (r *Round) assignmentViews(hide string) []events.AssignmentView {
	views := make([]events.AssignmentView, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		if hide != "" && a.GuesserID == hide {
			continue
		}
		views = append(views, events.AssignmentView{
			PlayerID:        a.GuesserID,
			PlayerName:      r.memberName(a.GuesserID),
			NameToGuess:     a.Name,
			ContributorID:   a.ContributorID,
			ContributorName: r.memberName(a.ContributorID),
			Solved:          a.Solved,
		})
	}
	return views
}

// viewFor is what player p is allowed to see: everyone else's target, but
// not their own.
func (r *Round) viewFor(p string, order []events.PlayerRef) events.AssignedPlayersInfo {
	return events.AssignedPlayersInfo{
		RoundID:      r.ID,
		MyAssignment: events.HiddenName,
		OtherPlayers: r.assignmentViews(p),
		TurnOrder:    order,
	}
}
