package events

import "time"

// Event is one server->client notification. The set is closed: only the
// types in this file implement it.
type Event interface {
	Name() string
	isEvent()
}

type Audience int

const (
	// Caller events go back to whoever issued the command.
	AudienceCaller Audience = iota
	// Players events go to the identities listed in Recipients.
	AudiencePlayers
	// All events go to every connected identity.
	AudienceAll
)

type Envelope struct {
	Audience   Audience
	Recipients []string
	Event      Event
}

func ToCaller(ev Event) Envelope { return Envelope{Audience: AudienceCaller, Event: ev} }
func ToAll(ev Event) Envelope    { return Envelope{Audience: AudienceAll, Event: ev} }

func ToPlayers(ids []string, ev Event) Envelope {
	return Envelope{Audience: AudiencePlayers, Recipients: append([]string(nil), ids...), Event: ev}
}

// Views shared by several events.

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IdentityView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	OwnerID   string      `json:"owner_id"`
	Status    string      `json:"status"`
	Capacity  int         `json:"capacity"`
	Players   []PlayerRef `json:"players"`
	CreatedAt time.Time   `json:"created_at"`
}

type AssignmentView struct {
	PlayerID        string `json:"player_id"`
	PlayerName      string `json:"player_name"`
	NameToGuess     string `json:"name_to_guess"`
	ContributorID   string `json:"contributor_id"`
	ContributorName string `json:"contributor_name"`
	Solved          bool   `json:"solved"`
}

// Session and lobby events.

type LoginSuccess struct {
	Identity IdentityView `json:"identity"`
}

type RoomCreated struct {
	Room RoomView `json:"room"`
}

type RoomListUpdated struct{}

type RoomList struct {
	Rooms []RoomView `json:"rooms"`
}

type PlayerJoined struct {
	RoomID string    `json:"room_id"`
	Player PlayerRef `json:"player"`
}

type JoinedRoom struct {
	Room RoomView `json:"room"`
}

type PlayerLeft struct {
	RoomID     string `json:"room_id"`
	PlayerID   string `json:"player_id"`
	NewOwnerID string `json:"new_owner_id,omitempty"`
}

type LeftRoom struct {
	RoomID string `json:"room_id"`
}

type RoomReset struct {
	RoomID string `json:"room_id"`
}

// Round events.

type PreparationStarted struct {
	RoomID  string `json:"room_id"`
	RoundID string `json:"round_id"`
	Number  int    `json:"round_number"`
}

type NameSubmitted struct {
	RoomID        string `json:"room_id"`
	ContributorID string `json:"contributor_id"`
}

type AllPlayersReady struct {
	RoomID string `json:"room_id"`
}

type GamePlayStarted struct {
	RoundID         string      `json:"round_id"`
	CurrentPlayerID string      `json:"current_player_id"`
	TurnOrder       []PlayerRef `json:"turn_order"`
}

// HiddenName replaces the receiver's own target in AssignedPlayersInfo.
const HiddenName = "???"

type AssignedPlayersInfo struct {
	RoundID      string           `json:"round_id"`
	MyAssignment string           `json:"my_assignment"`
	OtherPlayers []AssignmentView `json:"other_players"`
	TurnOrder    []PlayerRef      `json:"turn_order"`
}

type QuestionAsked struct {
	RoundID  string `json:"round_id"`
	AskerID  string `json:"asker_id"`
	Question string `json:"question"`
}

type QuestionAnswered struct {
	RoundID     string `json:"round_id"`
	ResponderID string `json:"responder_id"`
	Answer      bool   `json:"answer"`
}

type AllAnswersReceived struct {
	RoundID      string `json:"round_id"`
	NextPlayerID string `json:"next_player_id"`
}

type NameGuessed struct {
	RoundID      string `json:"round_id"`
	GuesserID    string `json:"guesser_id"`
	IsCorrect    bool   `json:"is_correct"`
	GuessedName  string `json:"guessed_name"`
	NextPlayerID string `json:"next_player_id,omitempty"`
}

// TurnPassed is sent when the current player leaves mid-round.
type TurnPassed struct {
	RoundID      string `json:"round_id"`
	LeaverID     string `json:"leaver_id"`
	NextPlayerID string `json:"next_player_id"`
}

// GameEnded lists solvers in the order they solved. LoserID is the player
// left unsolved, empty when nobody was.
type GameEnded struct {
	RoundID     string           `json:"round_id"`
	Winners     []string         `json:"winners"`
	LoserID     string           `json:"loser_id,omitempty"`
	Assignments []AssignmentView `json:"player_assignments"`
}

func (LoginSuccess) Name() string        { return "LoginSuccess" }
func (RoomCreated) Name() string         { return "RoomCreated" }
func (RoomListUpdated) Name() string     { return "RoomListUpdated" }
func (RoomList) Name() string            { return "RoomList" }
func (PlayerJoined) Name() string        { return "PlayerJoined" }
func (JoinedRoom) Name() string          { return "JoinedRoom" }
func (PlayerLeft) Name() string          { return "PlayerLeft" }
func (LeftRoom) Name() string            { return "LeftRoom" }
func (RoomReset) Name() string           { return "RoomReset" }
func (PreparationStarted) Name() string  { return "PreparationStarted" }
func (NameSubmitted) Name() string       { return "NameSubmitted" }
func (AllPlayersReady) Name() string     { return "AllPlayersReady" }
func (GamePlayStarted) Name() string     { return "GamePlayStarted" }
func (AssignedPlayersInfo) Name() string { return "AssignedPlayersInfo" }
func (QuestionAsked) Name() string       { return "QuestionAsked" }
func (QuestionAnswered) Name() string    { return "QuestionAnswered" }
func (AllAnswersReceived) Name() string  { return "AllAnswersReceived" }
func (NameGuessed) Name() string         { return "NameGuessed" }
func (TurnPassed) Name() string          { return "TurnPassed" }
func (GameEnded) Name() string           { return "GameEnded" }

func (LoginSuccess) isEvent()        {}
func (RoomCreated) isEvent()         {}
func (RoomListUpdated) isEvent()     {}
func (RoomList) isEvent()            {}
func (PlayerJoined) isEvent()        {}
func (JoinedRoom) isEvent()          {}
func (PlayerLeft) isEvent()          {}
func (LeftRoom) isEvent()            {}
func (RoomReset) isEvent()           {}
func (PreparationStarted) isEvent()  {}
func (NameSubmitted) isEvent()       {}
func (AllPlayersReady) isEvent()     {}
func (GamePlayStarted) isEvent()     {}
func (AssignedPlayersInfo) isEvent() {}
func (QuestionAsked) isEvent()       {}
func (QuestionAnswered) isEvent()    {}
func (AllAnswersReceived) isEvent()  {}
func (NameGuessed) isEvent()         {}
func (TurnPassed) isEvent()          {}
func (GameEnded) isEvent()           {}

// Find returns the first event of type T in envs.
func Find[T Event](envs []Envelope) (T, bool) {
	for _, env := range envs {
		if ev, ok := env.Event.(T); ok {
			return ev, true
		}
	}
	var zero T
	return zero, false
}

// Contains reports whether envs carries an event named name.
func Contains(envs []Envelope, name string) bool {
	for _, env := range envs {
		if env.Event.Name() == name {
			return true
		}
	}
	return false
}
