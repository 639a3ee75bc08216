package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
	"github.com/DoyleJ11/name-guess-backend/internal/hub"
	"github.com/DoyleJ11/name-guess-backend/internal/lobby"
	"github.com/DoyleJ11/name-guess-backend/internal/session"
)

var (
	ErrNotLoggedIn     = gameerr.State("log in first")
	ErrAlreadyLoggedIn = gameerr.State("already logged in")
	ErrAlreadyInRoom   = gameerr.State("already in a room")
	ErrNotInRoom       = gameerr.State("not in a room")
)

// Service is the command surface a transport calls into. Every method
// resolves the caller from its link; room commands run inside the room's
// lobby, which delivers the resulting events.
type Service struct {
	hub     *hub.Hub
	dir     *session.Directory
	log     *zap.Logger
	timeout time.Duration
}

func NewService(h *hub.Hub, dir *session.Directory, log *zap.Logger, timeout time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{hub: h, dir: dir, log: log.Named("app"), timeout: timeout}
}

func (s *Service) Login(ctx context.Context, link session.Link, name string) (session.Identity, error) {
	if _, ok := s.dir.ByLink(link.ID()); ok {
		return session.Identity{}, ErrAlreadyLoggedIn
	}
	id, err := s.dir.Register(name)
	if err != nil {
		return session.Identity{}, err
	}
	if err := s.dir.Bind(id.ID, link); err != nil {
		return session.Identity{}, err
	}
	s.log.Info("login", zap.String("player", id.ID), zap.String("link", link.ID()))
	s.dir.SendTo(ctx, link, events.LoginSuccess{Identity: id.View()})
	return id, nil
}

func (s *Service) CreateRoom(ctx context.Context, link session.Link, name string) (engine.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.caller(link)
	if err != nil {
		return engine.State{}, err
	}
	if id.RoomID != "" {
		return engine.State{}, ErrAlreadyInRoom
	}

	_, st, err := s.hub.Create(ctx, name, engine.Member{ID: id.ID, Name: id.Name})
	if err != nil {
		return engine.State{}, err
	}
	if err := s.dir.SetRoom(id.ID, st.Room.ID); err != nil {
		return engine.State{}, err
	}

	s.dir.Deliver(ctx, id.ID, []events.Envelope{
		events.ToCaller(events.RoomCreated{Room: st.View()}),
		events.ToAll(events.RoomListUpdated{}),
	})
	return st, nil
}

func (s *Service) GetRooms(ctx context.Context, link session.Link) ([]events.RoomView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.caller(link); err != nil {
		return nil, err
	}
	rooms, err := s.hub.List(ctx)
	if err != nil {
		return nil, err
	}
	s.dir.SendTo(ctx, link, events.RoomList{Rooms: rooms})
	return rooms, nil
}

func (s *Service) JoinRoom(ctx context.Context, link session.Link, roomID string) (engine.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.caller(link)
	if err != nil {
		return engine.State{}, err
	}
	if id.RoomID != "" {
		return engine.State{}, ErrAlreadyInRoom
	}
	lb, err := s.hub.Get(ctx, roomID)
	if err != nil {
		return engine.State{}, err
	}
	st, err := lb.Do(ctx, engine.Command{Type: engine.CmdJoinRoom, PlayerID: id.ID, PlayerName: id.Name})
	if err != nil {
		return engine.State{}, err
	}
	return st, s.dir.SetRoom(id.ID, roomID)
}

// LeaveRoom is a no-op for a caller who is not in a room.
func (s *Service) LeaveRoom(ctx context.Context, link session.Link) error {
	id, err := s.caller(link)
	if err != nil {
		return err
	}
	return s.leave(ctx, id)
}

func (s *Service) StartGame(ctx context.Context, link session.Link) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdStartGame})
}

func (s *Service) SubmitName(ctx context.Context, link session.Link, name string) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdSubmitName, Text: name})
}

func (s *Service) AskQuestion(ctx context.Context, link session.Link, roundID, question string) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdAskQuestion, RoundID: roundID, Text: question})
}

func (s *Service) AnswerQuestion(ctx context.Context, link session.Link, roundID string, answer bool) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdAnswerQuestion, RoundID: roundID, Answer: answer})
}

func (s *Service) GuessName(ctx context.Context, link session.Link, roundID, guess string) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdGuessName, RoundID: roundID, Text: guess})
}

func (s *Service) ResetRoom(ctx context.Context, link session.Link) (engine.State, error) {
	return s.roomCommand(ctx, link, engine.Command{Type: engine.CmdResetRoom})
}

// OnDisconnect leaves the caller's room and forgets the identity. Failures
// are logged, never returned.
func (s *Service) OnDisconnect(ctx context.Context, link session.Link) {
	id, ok := s.dir.Unbind(link.ID())
	if !ok {
		return
	}

	var errs error
	if id.RoomID != "" {
		errs = multierr.Append(errs, s.leave(ctx, id))
	}
	s.dir.Remove(id.ID)

	if errs != nil {
		s.log.Warn("disconnect cleanup failed", zap.String("player", id.ID), zap.Error(errs))
		return
	}
	s.log.Info("disconnected", zap.String("player", id.ID))
}

func (s *Service) caller(link session.Link) (session.Identity, error) {
	id, ok := s.dir.ByLink(link.ID())
	if !ok {
		return session.Identity{}, ErrNotLoggedIn
	}
	return id, nil
}

func (s *Service) roomCommand(ctx context.Context, link session.Link, cmd engine.Command) (engine.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.caller(link)
	if err != nil {
		return engine.State{}, err
	}
	if id.RoomID == "" {
		return engine.State{}, ErrNotInRoom
	}
	lb, err := s.hub.Get(ctx, id.RoomID)
	if err != nil {
		return engine.State{}, err
	}
	cmd.PlayerID = id.ID
	return lb.Do(ctx, cmd)
}

func (s *Service) leave(ctx context.Context, id session.Identity) error {
	if id.RoomID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lb, err := s.hub.Get(ctx, id.RoomID)
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		// room already gone; only the association is stale
	case err != nil:
		return err
	default:
		_, err = lb.Do(ctx, engine.Command{Type: engine.CmdLeaveRoom, PlayerID: id.ID})
		if err != nil && !errors.Is(err, engine.ErrNotMember) && !errors.Is(err, lobby.ErrClosed) {
			return err
		}
	}
	if err := s.dir.SetRoom(id.ID, ""); err != nil && !errors.Is(err, session.ErrUnknownPlayer) {
		return err
	}
	return nil
}
