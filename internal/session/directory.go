// Package session tracks logged-in identities and the transport link each
// one is bound to, and delivers events to them.
package session

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
	"github.com/DoyleJ11/name-guess-backend/internal/types"
)

var (
	ErrBlankName     = gameerr.Validation("name must not be blank")
	ErrNameTooLong   = gameerr.Validation("name is too long")
	ErrUnknownPlayer = gameerr.NotFound("player not found")
)

// Link is one client connection.
type Link interface {
	ID() string
	Send(ctx context.Context, msg types.ServerMessage) error
}

type Identity struct {
	ID        string
	Name      string
	RoomID    string // empty when not in a room
	CreatedAt time.Time
}

func (i Identity) View() events.IdentityView {
	return events.IdentityView{ID: i.ID, Name: i.Name, CreatedAt: i.CreatedAt}
}

type entry struct {
	identity Identity
	link     Link
}

type Directory struct {
	mu      sync.RWMutex
	players map[string]*entry
	byLink  map[string]string

	maxName int
	now     func() time.Time
	log     *zap.Logger
}

func NewDirectory(maxNameLength int, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		players: make(map[string]*entry),
		byLink:  make(map[string]string),
		maxName: maxNameLength,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.Named("session"),
	}
}

// Register creates a new identity with a fresh id.
func (d *Directory) Register(name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, ErrBlankName
	}
	if d.maxName > 0 && utf8.RuneCountInString(name) > d.maxName {
		return Identity{}, ErrNameTooLong
	}

	id := Identity{ID: uuid.NewString(), Name: name, CreatedAt: d.now()}
	d.mu.Lock()
	d.players[id.ID] = &entry{identity: id}
	d.mu.Unlock()
	return id, nil
}

func (d *Directory) Bind(identityID string, link Link) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.players[identityID]
	if !ok {
		return ErrUnknownPlayer
	}
	if e.link != nil {
		delete(d.byLink, e.link.ID())
	}
	e.link = link
	d.byLink[link.ID()] = identityID
	return nil
}

// Unbind detaches the link and returns the identity it carried.
func (d *Directory) Unbind(linkID string) (Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byLink[linkID]
	if !ok {
		return Identity{}, false
	}
	delete(d.byLink, linkID)
	e := d.players[id]
	if e == nil {
		return Identity{}, false
	}
	e.link = nil
	return e.identity, true
}

func (d *Directory) Lookup(id string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.players[id]
	if !ok {
		return Identity{}, false
	}
	return e.identity, true
}

func (d *Directory) ByLink(linkID string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byLink[linkID]
	if !ok {
		return Identity{}, false
	}
	return d.players[id].identity, true
}

func (d *Directory) SetRoom(id, roomID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	e.identity.RoomID = roomID
	return nil
}

func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.players[id]; ok && e.link != nil {
		delete(d.byLink, e.link.ID())
	}
	delete(d.players, id)
}

// Len is the number of registered identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.players)
}

// Deliver sends each envelope to its audience. Links are collected under
// the lock and written to without it; a failed send is logged and skipped.
func (d *Directory) Deliver(ctx context.Context, callerID string, envs []events.Envelope) {
	for _, env := range envs {
		msg := types.EventMessage(env.Event)
		for _, link := range d.resolve(callerID, env) {
			if err := link.Send(ctx, msg); err != nil {
				d.log.Debug("dropping event for link",
					zap.String("link", link.ID()),
					zap.String("event", env.Event.Name()),
					zap.Error(err))
			}
		}
	}
}

// SendTo delivers one message straight to a link, for replies that do not
// go through a room.
func (d *Directory) SendTo(ctx context.Context, link Link, ev events.Event) {
	if err := link.Send(ctx, types.EventMessage(ev)); err != nil {
		d.log.Debug("reply dropped", zap.String("link", link.ID()), zap.Error(err))
	}
}

func (d *Directory) resolve(callerID string, env events.Envelope) []Link {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var links []Link
	add := func(id string) {
		if e, ok := d.players[id]; ok && e.link != nil {
			links = append(links, e.link)
		}
	}

	switch env.Audience {
	case events.AudienceCaller:
		add(callerID)
	case events.AudiencePlayers:
		for _, id := range env.Recipients {
			add(id)
		}
	case events.AudienceAll:
		for _, e := range d.players {
			if e.link != nil {
				links = append(links, e.link)
			}
		}
	}
	return links
}
