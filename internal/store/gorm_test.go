package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

// openTestPostgres connects to NAMEGUESS_TEST_DATABASE_URL and skips when it
// is unset.
func openTestPostgres(t *testing.T) *Gorm {
	t.Helper()
	dsn := os.Getenv("NAMEGUESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NAMEGUESS_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, err := OpenPostgres(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func freshRoom(version int) engine.State {
	s := sampleState(version)
	s.Room.ID = uuid.NewString()
	return s
}

func withActiveRound(s engine.State) engine.State {
	at := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	s.Room.Status = engine.StatusPlaying
	s.Room.Members = append(s.Room.Members, engine.Member{ID: "p2", Name: "Bo", JoinedAt: at})
	s.Rounds = []engine.Round{{
		ID:          uuid.NewString(),
		RoomID:      s.Room.ID,
		Number:      1,
		Phase:       engine.PhaseActive,
		Roster:      s.Room.Members,
		Turn:        engine.TurnSequence{Order: []string{"p2", "p1"}, Index: 1},
		Pending:     &engine.Question{Seq: 2, AskerID: "p1", Text: "Am I tall?", AskedAt: at},
		QuestionSeq: 2,
		Assignments: []engine.NameAssignment{
			{GuesserID: "p2", ContributorID: "p1", Name: "Ada Lovelace"},
			{GuesserID: "p1", ContributorID: "p2", Name: "Bo Diddley"},
		},
		Answers: []engine.QuestionAnswer{
			{QuestionSeq: 1, QuestionerID: "p2", ResponderID: "p1", Question: "Am I alive?", Answer: true, At: at},
		},
		StartedAt: at,
	}}
	for i := range s.Rounds[0].Assignments {
		s.Rounds[0].Assignments[i].RoundID = s.Rounds[0].ID
	}
	s.Rounds[0].Answers[0].RoundID = s.Rounds[0].ID
	return s
}

func TestGorm_SaveGuardsVersion(t *testing.T) {
	g := openTestPostgres(t)
	ctx := context.Background()

	s := freshRoom(1)
	require.NoError(t, g.Save(ctx, s, 0))
	t.Cleanup(func() { _ = g.Delete(context.Background(), s.Room.ID) })

	err := g.Save(ctx, s, 0)
	require.ErrorIs(t, err, ErrStaleVersion, "a second create hits the primary key")

	next := withActiveRound(s)
	next.Version = 2
	require.NoError(t, g.Save(ctx, next, 1))

	stale := next
	stale.Version = 3
	assert.ErrorIs(t, g.Save(ctx, stale, 1), gameerr.ErrConflict)

	got, err := g.Load(ctx, s.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, []string{"p1", "p2"}, got.MemberIDs())
	require.Len(t, got.Rounds, 1)
	r := got.Rounds[0]
	assert.Equal(t, engine.PhaseActive, r.Phase)
	assert.Equal(t, []string{"p2", "p1"}, r.Turn.Order)
	assert.Equal(t, 1, r.Turn.Index)
	require.NotNil(t, r.Pending)
	assert.Equal(t, "Am I tall?", r.Pending.Text)
	require.Len(t, r.Assignments, 2)
	assert.Equal(t, "Ada Lovelace", r.Assignments[0].Name)
	require.Len(t, r.Answers, 1)
}

func TestGorm_SaveRewritesChildren(t *testing.T) {
	g := openTestPostgres(t)
	ctx := context.Background()

	s := withActiveRound(freshRoom(1))
	require.NoError(t, g.Save(ctx, s, 0))
	t.Cleanup(func() { _ = g.Delete(context.Background(), s.Room.ID) })

	// p2 leaves and the round ends
	next := s.Clone()
	next.Version = 2
	next.Room.Status = engine.StatusFinished
	next.Room.Members = next.Room.Members[:1]
	next.Rounds[0].Phase = engine.PhaseComplete
	next.Rounds[0].Pending = nil
	next.Rounds[0].Turn = engine.TurnSequence{Order: []string{"p1"}}
	require.NoError(t, g.Save(ctx, next, 1))

	got, err := g.Load(ctx, s.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got.MemberIDs())
	require.Len(t, got.Rounds, 1)
	assert.Equal(t, engine.PhaseComplete, got.Rounds[0].Phase)
	assert.Nil(t, got.Rounds[0].Pending)
	assert.Len(t, got.Rounds[0].Answers, 1, "history is kept across rewrites")

	require.NoError(t, g.Delete(ctx, s.Room.ID))
	_, err = g.Load(ctx, s.Room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
