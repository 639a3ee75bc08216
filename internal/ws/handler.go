package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/app"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
	"github.com/DoyleJ11/name-guess-backend/internal/types"
)

var (
	errLinkClosed = errors.New("link closed")
	errSlowClient = errors.New("client outbox full")

	ErrBadMessage  = gameerr.Validation("bad json")
	ErrUnknownType = gameerr.Validation("unknown message type")
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
)

type Options struct {
	OutboxSize     int
	OriginPatterns []string
}

// link is one websocket connection as seen by the session directory.
// Sends never block: a client that cannot keep up is dropped.
type link struct {
	id     string
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newLink(size int) *link {
	if size <= 0 {
		size = 32
	}
	return &link{id: uuid.NewString(), out: make(chan []byte, size), closed: make(chan struct{})}
}

func (l *link) ID() string { return l.id }

func (l *link) Send(_ context.Context, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-l.closed:
		return errLinkClosed
	default:
	}
	select {
	case l.out <- payload:
		return nil
	default:
		l.close()
		return errSlowClient
	}
}

func (l *link) close() { l.once.Do(func() { close(l.closed) }) }

func Handler(svc *app.Service, log *zap.Logger, opts Options) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		l := newLink(opts.OutboxSize)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		log.Debug("connected", zap.String("link", l.id), zap.String("remote", r.RemoteAddr))
		defer func() {
			l.close()
			svc.OnDisconnect(context.WithoutCancel(r.Context()), l)
			log.Debug("disconnected", zap.String("link", l.id))
		}()

		// Writer goroutine
		go func() {
			defer cancel()
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case payload := <-l.out:
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Write(wctx, websocket.MessageText, payload)
					wcancel()
					if err != nil {
						return
					}
				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						return
					}
				case <-l.closed:
					conn.Close(websocket.StatusPolicyViolation, "too slow")
					return
				case <-ctx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.String("link", l.id), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = l.Send(ctx, types.ErrorMessage("", ErrBadMessage))
				continue
			}
			if err := dispatch(ctx, svc, l, cm); err != nil {
				if gameerr.KindOf(err) == gameerr.KindInternal {
					log.Error("command failed", zap.String("cmd", cm.Type), zap.String("link", l.id), zap.Error(err))
				}
				_ = l.Send(ctx, types.ErrorMessage(cm.Type, err))
			}
		}
	}
}

func dispatch(ctx context.Context, svc *app.Service, l *link, m types.ClientMessage) error {
	var err error
	switch m.Type {
	case "Login":
		_, err = svc.Login(ctx, l, m.Name)
	case "CreateRoom":
		_, err = svc.CreateRoom(ctx, l, m.Name)
	case "GetRooms":
		_, err = svc.GetRooms(ctx, l)
	case "JoinRoom":
		_, err = svc.JoinRoom(ctx, l, m.RoomID)
	case "LeaveRoom":
		err = svc.LeaveRoom(ctx, l)
	case "StartGame":
		_, err = svc.StartGame(ctx, l)
	case "SubmitName":
		_, err = svc.SubmitName(ctx, l, m.Name)
	case "AskQuestion":
		_, err = svc.AskQuestion(ctx, l, m.RoundID, m.Question)
	case "AnswerQuestion":
		_, err = svc.AnswerQuestion(ctx, l, m.RoundID, m.Answer)
	case "GuessName":
		_, err = svc.GuessName(ctx, l, m.RoundID, m.Guess)
	case "ResetRoom":
		_, err = svc.ResetRoom(ctx, l)
	default:
		err = ErrUnknownType
	}
	return err
}
