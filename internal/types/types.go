package types

import (
	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

// ClientMessage is every command a client can send. Fields unused by a
// command are ignored.
type ClientMessage struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"` // Login, CreateRoom, SubmitName
	RoomID   string `json:"room_id,omitempty"`
	RoundID  string `json:"round_id,omitempty"`
	Question string `json:"question,omitempty"`
	Answer   bool   `json:"answer,omitempty"`
	Guess    string `json:"guess,omitempty"`
}

type ServerMessage struct {
	Type  string     `json:"type"` // event name | "Error"
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Command   string `json:"command,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func EventMessage(ev events.Event) ServerMessage {
	return ServerMessage{Type: ev.Name(), Data: ev}
}

// ErrorMessage reports err to the client that sent command. Internal causes
// are never exposed.
func ErrorMessage(command string, err error) ServerMessage {
	return ServerMessage{
		Type: "Error",
		Error: &ErrorBody{
			Command:   command,
			Kind:      string(gameerr.KindOf(err)),
			Message:   gameerr.PublicMessage(err),
			Retryable: gameerr.Retryable(err),
		},
	}
}
