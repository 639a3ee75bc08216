// Package hub is the room registry. It owns the lobby for every live room
// and the waiting-room listing that lobbies keep current after each commit.
package hub

import (
	"cmp"
	"context"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
	"github.com/DoyleJ11/name-guess-backend/internal/lobby"
	"github.com/DoyleJ11/name-guess-backend/internal/store"
)

var (
	ErrRoomNotFound = gameerr.NotFound("room not found")
	ErrHubClosed    = gameerr.Internal("hub closed", nil)
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	State  engine.State
	Engine *engine.Engine
	Reply  chan *lobby.Lobby
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type ListRooms struct {
	Reply chan []events.RoomView
}

type PublishListing struct {
	Room events.RoomView
}

type RemoveLobby struct {
	ID string
}

type ShutdownHub struct {
	Done chan struct{}
}

func (CreateLobby) isHubMsg()    {}
func (GetLobby) isHubMsg()       {}
func (ListRooms) isHubMsg()      {}
func (PublishListing) isHubMsg() {}
func (RemoveLobby) isHubMsg()    {}
func (ShutdownHub) isHubMsg()    {}

type Options struct {
	Store         store.Store
	Notifier      lobby.Notifier
	Logger        *zap.Logger
	RoomCapacity  int
	MaxNameLength int
	InboxSize     int
	SaveTimeout   time.Duration
	// NewRand seeds the engine of each new room. Tests pin it.
	NewRand func() *rand.Rand
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	listing map[string]events.RoomView
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RoomCapacity == 0 {
		opts.RoomCapacity = 10
	}
	if opts.MaxNameLength == 0 {
		opts.MaxNameLength = 100
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		listing: make(map[string]events.RoomView),
		opts:    opts,
		log:     opts.Logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Create stores a new waiting room owned by owner and starts its lobby.
func (h *Hub) Create(ctx context.Context, name string, owner engine.Member) (*lobby.Lobby, engine.State, error) {
	eng := engine.New(h.opts.NewRand(), engine.WithMaxNameLength(h.opts.MaxNameLength))
	st, err := eng.NewRoom(uuid.NewString(), name, owner, h.opts.RoomCapacity)
	if err != nil {
		return nil, engine.State{}, err
	}
	st.Version = 1
	if err := h.opts.Store.Save(ctx, st, 0); err != nil {
		return nil, engine.State{}, lobby.ContextError(err)
	}

	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, CreateLobby{State: st, Engine: eng, Reply: reply}); err != nil {
		h.discard(ctx, st.Room.ID)
		return nil, engine.State{}, err
	}
	// The hub answers CreateLobby without blocking, so wait for it rather
	// than the caller's deadline. Only a hub that stopped first leaves the
	// room without a lobby.
	select {
	case lb := <-reply:
		h.log.Info("room created", zap.String("room", st.Room.ID), zap.String("owner", owner.ID))
		return lb, st.Clone(), nil
	case <-h.done:
		select {
		case lb := <-reply:
			return lb, st.Clone(), nil
		default:
		}
		h.discard(ctx, st.Room.ID)
		return nil, engine.State{}, ErrHubClosed
	}
}

// discard deletes a stored room that never got a lobby.
func (h *Hub) discard(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.SaveTimeout)
	defer cancel()
	if err := h.opts.Store.Delete(ctx, id); err != nil {
		h.log.Warn("could not discard orphaned room", zap.String("room", id), zap.Error(err))
	}
}

func (h *Hub) Get(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, ErrRoomNotFound
		}
		return lb, nil
	case <-ctx.Done():
		return nil, lobby.ContextError(ctx.Err())
	}
}

// List returns the waiting rooms, oldest first. It reads the published
// listing and never waits on a lobby.
func (h *Hub) List(ctx context.Context) ([]events.RoomView, error) {
	reply := make(chan []events.RoomView, 1)
	if err := h.send(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, lobby.ContextError(ctx.Err())
	}
}

// Publish implements lobby.Registry.
func (h *Hub) Publish(room events.RoomView) {
	select {
	case h.inbox <- PublishListing{Room: room}:
	case <-h.ctx.Done():
	}
}

// Remove implements lobby.Registry.
func (h *Hub) Remove(id string) {
	select {
	case h.inbox <- RemoveLobby{ID: id}:
	case <-h.ctx.Done():
	}
}

// Shutdown stops every lobby and the hub itself, then waits for them.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, ShutdownHub{Done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return lobby.ContextError(ctx.Err())
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				id := msg.State.Room.ID
				lb := lobby.New(h.ctx, msg.State, lobby.Options{
					Engine:      msg.Engine,
					Store:       h.opts.Store,
					Notifier:    h.opts.Notifier,
					Registry:    h,
					Logger:      h.opts.Logger,
					InboxSize:   h.opts.InboxSize,
					SaveTimeout: h.opts.SaveTimeout,
				})
				h.lobbies[id] = lb
				h.listing[id] = msg.State.View()
				msg.Reply <- lb

			case GetLobby:
				msg.Reply <- h.lobbies[msg.ID] // May be nil

			case ListRooms:
				msg.Reply <- h.waitingRooms()

			case PublishListing:
				// a late publish from a lobby that already closed must not resurrect it
				if _, ok := h.lobbies[msg.Room.ID]; ok {
					h.listing[msg.Room.ID] = msg.Room
				}

			case RemoveLobby:
				delete(h.lobbies, msg.ID)
				delete(h.listing, msg.ID)
				h.log.Info("room removed", zap.String("room", msg.ID))

			case ShutdownHub:
				h.cancel()
				for _, lb := range h.lobbies {
					<-lb.Done()
				}
				clear(h.lobbies)
				clear(h.listing)
				close(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) waitingRooms() []events.RoomView {
	rooms := make([]events.RoomView, 0, len(h.listing))
	for _, v := range h.listing {
		if v.Status == string(engine.StatusWaiting) {
			rooms = append(rooms, v)
		}
	}
	slices.SortFunc(rooms, func(a, b events.RoomView) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return rooms
}
