// Package lobby runs one goroutine per room. Every command for the room goes
// through its inbox, so the engine only ever sees one command at a time.
package lobby

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
	"github.com/DoyleJ11/name-guess-backend/internal/store"
)

var (
	ErrClosed = gameerr.NotFound("room not found")
	ErrBusy   = gameerr.Conflict("room is busy, retry")
)

type Msg interface{ isLobbyMsg() }

// Exec runs one engine command. Reply must be buffered. A command whose Ctx
// is already done when the loop reaches it is answered with ErrBusy and
// never applied.
type Exec struct {
	Cmd   engine.Command
	Ctx   context.Context
	Reply chan Result

	claim *atomic.Int32
}

func (Exec) isLobbyMsg() {}

const (
	execQueued int32 = iota
	execTaken
	execAbandoned
)

// take marks the command as picked up by the loop. It fails when the
// caller has already given up on it.
func (e Exec) take() bool {
	return e.claim == nil || e.claim.CompareAndSwap(execQueued, execTaken)
}

// abandon withdraws a command the loop has not picked up yet.
func (e Exec) abandon() bool {
	return e.claim != nil && e.claim.CompareAndSwap(execQueued, execAbandoned)
}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type Result struct {
	State engine.State
	Err   error
}

type View struct {
	Version int
	State   engine.State
}

// Notifier delivers committed events. callerID resolves the Caller audience.
type Notifier interface {
	Deliver(ctx context.Context, callerID string, envs []events.Envelope)
}

// Registry is told about every committed change so the room list stays
// current without asking the lobby.
type Registry interface {
	Publish(room events.RoomView)
	Remove(roomID string)
}

type Options struct {
	Engine      *engine.Engine
	Store       store.Store
	Notifier    Notifier
	Registry    Registry
	Logger      *zap.Logger
	InboxSize   int
	SaveTimeout time.Duration
}

type Lobby struct {
	id    string
	inbox chan Msg
	state engine.State
	opts  Options
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts the room actor. initial must already be stored at
// initial.Version.
func New(parent context.Context, initial engine.State, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		id:     initial.Room.ID,
		inbox:  make(chan Msg, opts.InboxSize),
		state:  initial,
		opts:   opts,
		log:    opts.Logger.Named("lobby").With(zap.String("room", initial.Room.ID)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.id }

// Inbox exposes the raw inbox for tests and callers that manage replies
// themselves.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Do runs cmd and waits for its outcome. If ctx ends while the command is
// still queued it is withdrawn and ErrBusy is returned. Once the loop has
// taken it, Do waits for the real result, which the save timeout bounds.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) (engine.State, error) {
	msg := Exec{Cmd: cmd, Ctx: ctx, Reply: make(chan Result, 1), claim: new(atomic.Int32)}
	if err := l.send(ctx, msg); err != nil {
		return engine.State{}, err
	}
	select {
	case res := <-msg.Reply:
		return res.State, res.Err
	case <-l.done:
		return l.lastReply(msg.Reply)
	case <-ctx.Done():
		if msg.abandon() {
			return engine.State{}, ErrBusy
		}
		select {
		case res := <-msg.Reply:
			return res.State, res.Err
		case <-l.done:
			return l.lastReply(msg.Reply)
		}
	}
}

// lastReply picks up a reply sent right before the loop exited.
func (l *Lobby) lastReply(reply <-chan Result) (engine.State, error) {
	select {
	case res := <-reply:
		return res.State, res.Err
	default:
		return engine.State{}, ErrClosed
	}
}

func (l *Lobby) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ErrBusy
	}
}

// Close stops the loop and waits for it to exit.
func (l *Lobby) Close() {
	l.cancel()
	<-l.done
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ContextError(ctx.Err())
	}
}

// ContextError maps an expired or cancelled context to ErrBusy. Other
// errors pass through.
func ContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrBusy
	}
	return err
}

func (l *Lobby) loop() {
	defer close(l.done)
	defer l.cancel()

	for {
		select {
		case <-l.ctx.Done():
			l.log.Debug("lobby stopped")
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Exec:
				if !msg.take() {
					l.log.Debug("dropped abandoned command", zap.String("cmd", string(msg.Cmd.Type)))
					continue
				}
				if closed := l.exec(msg); closed {
					l.log.Info("room empty, lobby closed")
					return
				}

			case GetState:
				msg.Reply <- View{Version: l.state.Version, State: l.state.Clone()}

			case Shutdown:
				l.log.Debug("lobby shut down")
				return
			}
		}
	}
}

// exec applies, persists, commits and then publishes one command. It
// reports whether the room emptied and the lobby should stop.
func (l *Lobby) exec(msg Exec) bool {
	cmd := msg.Cmd
	if msg.Ctx != nil && msg.Ctx.Err() != nil {
		msg.Reply <- Result{State: l.state.Clone(), Err: ErrBusy}
		return false
	}
	evs, next, err := l.opts.Engine.Apply(l.state, cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("player", cmd.PlayerID),
			zap.Error(err))
		msg.Reply <- Result{State: l.state.Clone(), Err: err}
		return false
	}
	next.Version = l.state.Version + 1

	if err := l.persist(next); err != nil {
		err = ContextError(err)
		// a timed out write may still have landed
		if errors.Is(err, store.ErrStaleVersion) || errors.Is(err, ErrBusy) {
			l.reload()
		}
		msg.Reply <- Result{State: l.state.Clone(), Err: err}
		return false
	}

	l.state = next
	empty := next.Empty()
	if empty {
		l.opts.Registry.Remove(l.id)
	} else {
		l.opts.Registry.Publish(next.View())
	}

	msg.Reply <- Result{State: next.Clone()}
	l.opts.Notifier.Deliver(l.ctx, cmd.PlayerID, evs)

	l.log.Debug("command applied",
		zap.String("cmd", string(cmd.Type)),
		zap.String("player", cmd.PlayerID),
		zap.Int("version", next.Version),
		zap.Int("events", len(evs)))
	return empty
}

func (l *Lobby) persist(next engine.State) error {
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	defer cancel()

	if next.Empty() {
		return l.opts.Store.Delete(ctx, l.id)
	}
	return l.opts.Store.Save(ctx, next, l.state.Version)
}

// reload picks up a newer stored version after a conflict.
func (l *Lobby) reload() {
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	defer cancel()

	fresh, err := l.opts.Store.Load(ctx, l.id)
	if err != nil {
		l.log.Warn("reload after conflict failed", zap.Error(err))
		return
	}
	l.log.Info("reloaded room after conflict",
		zap.Int("from", l.state.Version),
		zap.Int("to", fresh.Version))
	l.state = fresh
	l.opts.Registry.Publish(fresh.View())
}
