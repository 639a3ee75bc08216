package app

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/hub"
	"github.com/DoyleJ11/name-guess-backend/internal/session"
	"github.com/DoyleJ11/name-guess-backend/internal/store"
	"github.com/DoyleJ11/name-guess-backend/internal/types"
)

type testLink struct {
	id string

	mu   sync.Mutex
	msgs []types.ServerMessage
}

func (l *testLink) ID() string { return l.id }

func (l *testLink) Send(_ context.Context, msg types.ServerMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	return nil
}

func (l *testLink) received(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.ContainsFunc(l.msgs, func(m types.ServerMessage) bool { return m.Type == name })
}

func (l *testLink) last(name string) (types.ServerMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Type == name {
			return l.msgs[i], true
		}
	}
	return types.ServerMessage{}, false
}

func newTestService(t *testing.T, capacity int) (*Service, *session.Directory) {
	t.Helper()
	dir := session.NewDirectory(100, nil)
	h := hub.NewHub(context.Background(), hub.Options{
		Store:        store.NewMemory(),
		Notifier:     dir,
		RoomCapacity: capacity,
		NewRand:      func() *rand.Rand { return rand.New(rand.NewSource(42)) },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return NewService(h, dir, nil, time.Second), dir
}

func loginAs(t *testing.T, svc *Service, name string) (session.Identity, *testLink) {
	t.Helper()
	link := &testLink{id: "link-" + name}
	id, err := svc.Login(context.Background(), link, name)
	require.NoError(t, err)
	return id, link
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}

func TestLogin(t *testing.T) {
	svc, dir := newTestService(t, 10)
	ctx := context.Background()

	_, err := svc.Login(ctx, &testLink{id: "x"}, "  ")
	assert.ErrorIs(t, err, session.ErrBlankName)

	id, link := loginAs(t, svc, "Ada")
	assert.True(t, link.received("LoginSuccess"))
	got, ok := dir.Lookup(id.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada", got.Name)

	_, err = svc.Login(ctx, link, "Ada again")
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
}

func TestCommandsRequireLoginAndRoom(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, &testLink{id: "anon"}, "Room")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, link := loginAs(t, svc, "Ada")
	_, err = svc.StartGame(ctx, link)
	assert.ErrorIs(t, err, ErrNotInRoom)
	assert.NoError(t, svc.LeaveRoom(ctx, link), "leaving with no room is a no-op")

	_, err = svc.JoinRoom(ctx, link, "missing")
	assert.ErrorIs(t, err, hub.ErrRoomNotFound)

	_, err = svc.CreateRoom(ctx, link, "Room")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, link, "Second")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestFullRound(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	_, adaLink := loginAs(t, svc, "Ada")
	_, boLink := loginAs(t, svc, "Bo")
	_, cyLink := loginAs(t, svc, "Cy")
	links := map[string]*testLink{}

	st, err := svc.CreateRoom(ctx, adaLink, "Friday")
	require.NoError(t, err)
	assert.True(t, adaLink.received("RoomCreated"))

	rooms, err := svc.GetRooms(ctx, boLink)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.True(t, boLink.received("RoomList"))

	for _, l := range []*testLink{boLink, cyLink} {
		_, err := svc.JoinRoom(ctx, l, st.Room.ID)
		require.NoError(t, err)
	}
	eventually(t, func() bool { return cyLink.received("JoinedRoom") }, "joiner gets JoinedRoom")

	for l, name := range map[*testLink]string{adaLink: "Marie Curie", boLink: "Alan Turing", cyLink: "Grace Hopper"} {
		_, err := svc.SubmitName(ctx, l, name)
		require.NoError(t, err)
	}
	eventually(t, func() bool { return adaLink.received("AllPlayersReady") }, "owner sees everyone ready")

	_, err = svc.StartGame(ctx, boLink)
	assert.ErrorIs(t, err, engine.ErrNotOwner)

	st, err = svc.StartGame(ctx, adaLink)
	require.NoError(t, err)
	round := st.CurrentRound()
	for _, l := range []*testLink{adaLink, boLink, cyLink} {
		id, _ := svc.dir.ByLink(l.ID())
		links[id.ID] = l
	}

	target := func(player string) string {
		for _, a := range round.Assignments {
			if a.GuesserID == player {
				return a.Name
			}
		}
		return ""
	}

	order := round.Turn.Order
	first, second, third := links[order[0]], links[order[1]], links[order[2]]

	_, err = svc.AskQuestion(ctx, first, round.ID, "Am I a scientist?")
	require.NoError(t, err)
	_, err = svc.AnswerQuestion(ctx, second, round.ID, true)
	require.NoError(t, err)
	_, err = svc.AnswerQuestion(ctx, third, round.ID, true)
	require.NoError(t, err)

	// turn moved to the second player
	_, err = svc.GuessName(ctx, second, round.ID, target(order[1]))
	require.NoError(t, err)
	_, err = svc.GuessName(ctx, third, round.ID, "Nobody")
	require.NoError(t, err)
	st, err = svc.GuessName(ctx, first, round.ID, target(order[0]))
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFinished, st.Room.Status)

	for _, l := range []*testLink{adaLink, boLink, cyLink} {
		eventually(t, func() bool { return l.received("GameEnded") }, "every player sees the end")
	}
	msg, _ := adaLink.last("GameEnded")
	ended := msg.Data.(events.GameEnded)
	assert.Equal(t, []string{order[1], order[0]}, ended.Winners)
	assert.Equal(t, order[2], ended.LoserID)

	_, err = svc.ResetRoom(ctx, adaLink)
	require.NoError(t, err)
	eventually(t, func() bool { return cyLink.received("RoomReset") }, "reset is broadcast")
}

func TestConcurrentJoinsOnLastSeats(t *testing.T) {
	svc, _ := newTestService(t, 3)
	ctx := context.Background()

	_, owner := loginAs(t, svc, "Owner")
	st, err := svc.CreateRoom(ctx, owner, "Tight")
	require.NoError(t, err)

	var contenders []*testLink
	for i := 0; i < 6; i++ {
		_, l := loginAs(t, svc, fmt.Sprintf("p%d", i))
		contenders = append(contenders, l)
	}

	var (
		mu     sync.Mutex
		joined int
		full   int
	)
	var g errgroup.Group
	for _, l := range contenders {
		g.Go(func() error {
			_, err := svc.JoinRoom(ctx, l, st.Room.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				joined++
				return nil
			}
			assert.ErrorIs(t, err, engine.ErrRoomFull)
			full++
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2, joined)
	assert.Equal(t, 4, full)
}

func TestOnDisconnect_OwnerLeavesRoom(t *testing.T) {
	svc, dir := newTestService(t, 10)
	ctx := context.Background()

	ada, adaLink := loginAs(t, svc, "Ada")
	bo, boLink := loginAs(t, svc, "Bo")
	st, err := svc.CreateRoom(ctx, adaLink, "Friday")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, boLink, st.Room.ID)
	require.NoError(t, err)

	svc.OnDisconnect(ctx, adaLink)

	_, ok := dir.Lookup(ada.ID)
	assert.False(t, ok, "identity is forgotten")

	eventually(t, func() bool { return boLink.received("PlayerLeft") }, "remaining player told")
	msg, _ := boLink.last("PlayerLeft")
	left := msg.Data.(events.PlayerLeft)
	assert.Equal(t, ada.ID, left.PlayerID)
	assert.Equal(t, bo.ID, left.NewOwnerID)

	// a second disconnect for the same link does nothing
	svc.OnDisconnect(ctx, adaLink)

	svc.OnDisconnect(ctx, boLink)
	eventually(t, func() bool {
		rooms, err := svc.hub.List(ctx)
		return err == nil && len(rooms) == 0
	}, "empty room is deleted")
	assert.Equal(t, 0, dir.Len())
}
