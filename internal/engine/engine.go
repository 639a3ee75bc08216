package engine

import (
	"math/rand"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

var (
	ErrRoomNotWaiting     = gameerr.State("room is not accepting players")
	ErrRoomFull           = gameerr.State("room is full")
	ErrAlreadyMember      = gameerr.State("player already in room")
	ErrNotMember          = gameerr.NotFound("player not in room")
	ErrNotOwner           = gameerr.State("only the room owner can do that")
	ErrTooFewPlayers      = gameerr.State("at least 2 players are required")
	ErrNotAllSubmitted    = gameerr.State("every player must submit a name first")
	ErrSubmissionClosed   = gameerr.State("room is not accepting names")
	ErrAlreadySubmitted   = gameerr.State("name already submitted")
	ErrNotPlaying         = gameerr.State("game is not in progress")
	ErrRoundNotFound      = gameerr.NotFound("round not found")
	ErrWrongTurn          = gameerr.State("not your turn")
	ErrQuestionPending    = gameerr.State("question pending")
	ErrNoPendingQuestion  = gameerr.State("no question to answer")
	ErrAlreadyAnswered    = gameerr.State("question already answered")
	ErrAskerCannotAnswer  = gameerr.State("asker cannot answer own question")
	ErrNotFinished        = gameerr.State("game has not finished")
	ErrNoAssignment       = gameerr.NotFound("no name assigned to player")
	ErrBlankName          = gameerr.Validation("name must not be blank")
	ErrNameTooLong        = gameerr.Validation("name is too long")
	ErrBlankQuestion      = gameerr.Validation("question must not be blank")
	ErrBlankGuess         = gameerr.Validation("guess must not be blank")
	ErrBadCapacity        = gameerr.Validation("room capacity must be at least 2")
	ErrUnsupportedCommand = gameerr.Validation("unsupported command")
)

type RoomStatus string

const (
	StatusWaiting     RoomStatus = "waiting"
	StatusPreparation RoomStatus = "preparation"
	StatusPlaying     RoomStatus = "playing"
	StatusFinished    RoomStatus = "finished"
)

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseActive     Phase = "active"
	PhaseComplete   Phase = "complete"
)

type Member struct {
	ID       string
	Name     string
	JoinedAt time.Time
}

// Room keeps Members in join order; the first member is the owner's
// successor when the owner leaves.
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	Status    RoomStatus
	Capacity  int
	Members   []Member
	CreatedAt time.Time
}

type NameAssignment struct {
	RoundID       string
	GuesserID     string // empty until the round starts
	ContributorID string
	Name          string
	Solved        bool
}

type Question struct {
	Seq     int
	AskerID string
	Text    string
	AskedAt time.Time
}

type QuestionAnswer struct {
	RoundID      string
	QuestionSeq  int
	QuestionerID string
	ResponderID  string
	Question     string
	Answer       bool
	At           time.Time
}

type Round struct {
	ID             string
	RoomID         string
	Number         int
	Phase          Phase
	Roster         []Member // members at start, kept for names after departures
	Turn           TurnSequence
	Pending        *Question
	QuestionSeq    int
	Assignments    []NameAssignment
	Answers        []QuestionAnswer
	SolveOrder     []string
	ReadyAnnounced bool
	StartedAt      time.Time
	EndedAt        *time.Time
}

// State is one room and every round played in it. Version counts committed
// transitions and backs optimistic concurrency in the store.
type State struct {
	Room    Room
	Rounds  []Round
	Version int
}

type CommandType string

const (
	CmdJoinRoom       CommandType = "JoinRoom"
	CmdLeaveRoom      CommandType = "LeaveRoom"
	CmdSubmitName     CommandType = "SubmitName"
	CmdStartGame      CommandType = "StartGame"
	CmdAskQuestion    CommandType = "AskQuestion"
	CmdAnswerQuestion CommandType = "AnswerQuestion"
	CmdGuessName      CommandType = "GuessName"
	CmdResetRoom      CommandType = "ResetRoom"
)

/*
	CmdJoinRoom       -> PlayerJoined (room), JoinedRoom (caller), RoomListUpdated (all)
	CmdLeaveRoom      -> PlayerLeft (room), LeftRoom (caller), RoomListUpdated (all)
	                     [+ TurnPassed | AllAnswersReceived | GameEnded when mid-round]
	CmdSubmitName     -> [PreparationStarted] NameSubmitted [AllPlayersReady]
	CmdStartGame      -> GamePlayStarted (room), AssignedPlayersInfo (each player)
	CmdAskQuestion    -> QuestionAsked
	CmdAnswerQuestion -> QuestionAnswered [AllAnswersReceived]
	CmdGuessName      -> NameGuessed [GameEnded]
	CmdResetRoom      -> RoomReset (room), RoomListUpdated (all)
*/

type Command struct {
	Type       CommandType
	PlayerID   string
	PlayerName string
	RoundID    string
	Text       string
	Answer     bool
}

// Engine applies commands to room state. It owns a *rand.Rand, so one
// Engine must not be shared between goroutines.
type Engine struct {
	rng        *rand.Rand
	now        func() time.Time
	newID      func() string
	maxNameLen int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithIDs(newID func() string) Option    { return func(e *Engine) { e.newID = newID } }
func WithMaxNameLength(n int) Option        { return func(e *Engine) { e.maxNameLen = n } }

func New(rng *rand.Rand, opts ...Option) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		rng:        rng,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		maxNameLen: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRoom builds the initial state of a room whose sole member is owner.
func (e *Engine) NewRoom(id, name string, owner Member, capacity int) (State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return State{}, ErrBlankName
	}
	if utf8.RuneCountInString(name) > e.maxNameLen {
		return State{}, ErrNameTooLong
	}
	if capacity < 2 {
		return State{}, ErrBadCapacity
	}
	now := e.now()
	if owner.JoinedAt.IsZero() {
		owner.JoinedAt = now
	}
	return State{
		Room: Room{
			ID:        id,
			Name:      name,
			OwnerID:   owner.ID,
			Status:    StatusWaiting,
			Capacity:  capacity,
			Members:   []Member{owner},
			CreatedAt: now,
		},
	}, nil
}

// Apply runs cmd against s. s is never modified; on error it is returned
// unchanged with no events.
func (e *Engine) Apply(s State, cmd Command) ([]events.Envelope, State, error) {
	next := s.Clone()

	var (
		evs []events.Envelope
		err error
	)
	switch cmd.Type {
	case CmdJoinRoom:
		evs, err = e.join(&next, cmd)
	case CmdLeaveRoom:
		evs, err = e.leave(&next, cmd)
	case CmdSubmitName:
		evs, err = e.submitName(&next, cmd)
	case CmdStartGame:
		evs, err = e.startGame(&next, cmd)
	case CmdAskQuestion:
		evs, err = e.askQuestion(&next, cmd)
	case CmdAnswerQuestion:
		evs, err = e.answerQuestion(&next, cmd)
	case CmdGuessName:
		evs, err = e.guessName(&next, cmd)
	case CmdResetRoom:
		evs, err = e.resetRoom(&next, cmd)
	default:
		err = ErrUnsupportedCommand
	}
	if err != nil {
		return nil, s, err
	}
	return evs, next, nil
}

func (e *Engine) join(s *State, cmd Command) ([]events.Envelope, error) {
	if s.Room.Status != StatusWaiting {
		return nil, ErrRoomNotWaiting
	}
	if s.IsMember(cmd.PlayerID) {
		return nil, ErrAlreadyMember
	}
	if len(s.Room.Members) >= s.Room.Capacity {
		return nil, ErrRoomFull
	}

	m := Member{ID: cmd.PlayerID, Name: cmd.PlayerName, JoinedAt: e.now()}
	s.Room.Members = append(s.Room.Members, m)

	return []events.Envelope{
		events.ToPlayers(s.MemberIDs(), events.PlayerJoined{
			RoomID: s.Room.ID,
			Player: events.PlayerRef{ID: m.ID, Name: m.Name},
		}),
		events.ToCaller(events.JoinedRoom{Room: s.View()}),
		events.ToAll(events.RoomListUpdated{}),
	}, nil
}

func (e *Engine) leave(s *State, cmd Command) ([]events.Envelope, error) {
	idx := slices.IndexFunc(s.Room.Members, func(m Member) bool { return m.ID == cmd.PlayerID })
	if idx < 0 {
		return nil, ErrNotMember
	}
	s.Room.Members = slices.Delete(s.Room.Members, idx, idx+1)

	left := events.PlayerLeft{RoomID: s.Room.ID, PlayerID: cmd.PlayerID}
	if s.Room.OwnerID == cmd.PlayerID {
		if len(s.Room.Members) > 0 {
			s.Room.OwnerID = s.Room.Members[0].ID
			left.NewOwnerID = s.Room.OwnerID
		} else {
			s.Room.OwnerID = ""
		}
	}

	var evs []events.Envelope
	if len(s.Room.Members) > 0 {
		evs = append(evs, events.ToPlayers(s.MemberIDs(), left))
		if r := s.CurrentRound(); r != nil {
			switch r.Phase {
			case PhaseCollecting:
				evs = append(evs, e.dropSubmission(s, r, cmd.PlayerID)...)
			case PhaseActive:
				evs = append(evs, e.dropFromTurn(s, r, cmd.PlayerID)...)
			}
		}
	}

	evs = append(evs,
		events.ToCaller(events.LeftRoom{RoomID: s.Room.ID}),
		events.ToAll(events.RoomListUpdated{}),
	)
	return evs, nil
}

func (e *Engine) dropSubmission(s *State, r *Round, playerID string) []events.Envelope {
	r.Assignments = slices.DeleteFunc(r.Assignments, func(a NameAssignment) bool {
		return a.ContributorID == playerID
	})
	return e.announceReady(s, r)
}

// dropFromTurn takes a departing player out of an active round.
func (e *Engine) dropFromTurn(s *State, r *Round, playerID string) []events.Envelope {
	current, _ := r.Turn.Current()
	if !r.Turn.Remove(playerID) {
		return nil
	}
	if r.Turn.Len() <= 1 {
		return e.endRound(s, r)
	}

	if current == playerID {
		r.Pending = nil
		next, _ := r.Turn.Advance()
		return []events.Envelope{events.ToPlayers(s.MemberIDs(), events.TurnPassed{
			RoundID:      r.ID,
			LeaverID:     playerID,
			NextPlayerID: next,
		})}
	}
	return e.completeQuestion(s, r)
}

func (e *Engine) submitName(s *State, cmd Command) ([]events.Envelope, error) {
	if !s.IsMember(cmd.PlayerID) {
		return nil, ErrNotMember
	}
	if s.Room.Status != StatusWaiting && s.Room.Status != StatusPreparation {
		return nil, ErrSubmissionClosed
	}
	name, err := e.cleanName(cmd.Text)
	if err != nil {
		return nil, err
	}

	var evs []events.Envelope

	r := s.CurrentRound()
	if r == nil || r.Phase != PhaseCollecting {
		number := 1
		if r != nil {
			number = r.Number + 1
		}
		s.Rounds = append(s.Rounds, Round{
			ID:        e.newID(),
			RoomID:    s.Room.ID,
			Number:    number,
			Phase:     PhaseCollecting,
			StartedAt: e.now(),
		})
		r = s.CurrentRound()
	}

	if slices.ContainsFunc(r.Assignments, func(a NameAssignment) bool { return a.ContributorID == cmd.PlayerID }) {
		return nil, ErrAlreadySubmitted
	}

	if s.Room.Status == StatusWaiting {
		s.Room.Status = StatusPreparation
		evs = append(evs,
			events.ToPlayers(s.MemberIDs(), events.PreparationStarted{RoomID: s.Room.ID, RoundID: r.ID, Number: r.Number}),
			events.ToAll(events.RoomListUpdated{}),
		)
	}

	r.Assignments = append(r.Assignments, NameAssignment{
		RoundID:       r.ID,
		ContributorID: cmd.PlayerID,
		Name:          name,
	})
	evs = append(evs, events.ToPlayers(s.MemberIDs(), events.NameSubmitted{
		RoomID:        s.Room.ID,
		ContributorID: cmd.PlayerID,
	}))

	return append(evs, e.announceReady(s, r)...), nil
}

// announceReady emits AllPlayersReady the first time every member has a
// submission in r. It never starts the round.
func (e *Engine) announceReady(s *State, r *Round) []events.Envelope {
	if r.ReadyAnnounced || len(s.Room.Members) == 0 || len(r.Assignments) != len(s.Room.Members) {
		return nil
	}
	r.ReadyAnnounced = true
	return []events.Envelope{events.ToPlayers(s.MemberIDs(), events.AllPlayersReady{RoomID: s.Room.ID})}
}

func (e *Engine) startGame(s *State, cmd Command) ([]events.Envelope, error) {
	if s.Room.OwnerID != cmd.PlayerID {
		return nil, ErrNotOwner
	}
	if len(s.Room.Members) < 2 {
		return nil, ErrTooFewPlayers
	}
	r := s.CurrentRound()
	if r == nil || r.Phase != PhaseCollecting || len(r.Assignments) != len(s.Room.Members) {
		return nil, ErrNotAllSubmitted
	}

	players := s.MemberIDs()
	contributions := make([]Contribution, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		contributions = append(contributions, Contribution{ContributorID: a.ContributorID, Name: a.Name})
	}
	assigned, err := AssignNames(e.rng, players, contributions)
	if err != nil {
		return nil, err
	}
	for i := range assigned {
		r.Assignments[i].GuesserID = assigned[i].GuesserID
	}

	r.Roster = append([]Member(nil), s.Room.Members...)
	r.Turn = NewTurnSequence(ShuffledOrder(e.rng, players))
	r.Phase = PhaseActive
	s.Room.Status = StatusPlaying

	current, _ := r.Turn.Current()
	order := r.playerRefs(r.Turn.Order)

	evs := []events.Envelope{
		events.ToPlayers(players, events.GamePlayStarted{
			RoundID:         r.ID,
			CurrentPlayerID: current,
			TurnOrder:       order,
		}),
	}
	for _, p := range players {
		evs = append(evs, events.ToPlayers([]string{p}, r.viewFor(p, order)))
	}
	return evs, nil
}

func (e *Engine) askQuestion(s *State, cmd Command) ([]events.Envelope, error) {
	r, err := s.activeRound(cmd.RoundID)
	if err != nil {
		return nil, err
	}
	if current, ok := r.Turn.Current(); !ok || current != cmd.PlayerID {
		return nil, ErrWrongTurn
	}
	if r.Pending != nil {
		return nil, ErrQuestionPending
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, ErrBlankQuestion
	}

	r.QuestionSeq++
	r.Pending = &Question{Seq: r.QuestionSeq, AskerID: cmd.PlayerID, Text: text, AskedAt: e.now()}

	return []events.Envelope{events.ToPlayers(s.MemberIDs(), events.QuestionAsked{
		RoundID:  r.ID,
		AskerID:  cmd.PlayerID,
		Question: text,
	})}, nil
}

func (e *Engine) answerQuestion(s *State, cmd Command) ([]events.Envelope, error) {
	r, err := s.activeRound(cmd.RoundID)
	if err != nil {
		return nil, err
	}
	if r.Pending == nil {
		return nil, ErrNoPendingQuestion
	}
	if !s.IsMember(cmd.PlayerID) {
		return nil, ErrNotMember
	}
	if cmd.PlayerID == r.Pending.AskerID {
		return nil, ErrAskerCannotAnswer
	}
	if r.answered(r.Pending.Seq, cmd.PlayerID) {
		return nil, ErrAlreadyAnswered
	}

	r.Answers = append(r.Answers, QuestionAnswer{
		RoundID:      r.ID,
		QuestionSeq:  r.Pending.Seq,
		QuestionerID: r.Pending.AskerID,
		ResponderID:  cmd.PlayerID,
		Question:     r.Pending.Text,
		Answer:       cmd.Answer,
		At:           e.now(),
	})

	evs := []events.Envelope{events.ToPlayers(s.MemberIDs(), events.QuestionAnswered{
		RoundID:     r.ID,
		ResponderID: cmd.PlayerID,
		Answer:      cmd.Answer,
	})}
	return append(evs, e.completeQuestion(s, r)...), nil
}

// completeQuestion clears the pending question and passes the turn once
// every player still in the turn sequence, other than the asker, answered.
func (e *Engine) completeQuestion(s *State, r *Round) []events.Envelope {
	if r.Pending == nil {
		return nil
	}
	for _, p := range r.Turn.Order {
		if p != r.Pending.AskerID && !r.answered(r.Pending.Seq, p) {
			return nil
		}
	}

	r.Pending = nil
	next, _ := r.Turn.Advance()
	return []events.Envelope{events.ToPlayers(s.MemberIDs(), events.AllAnswersReceived{
		RoundID:      r.ID,
		NextPlayerID: next,
	})}
}

func (e *Engine) guessName(s *State, cmd Command) ([]events.Envelope, error) {
	r, err := s.activeRound(cmd.RoundID)
	if err != nil {
		return nil, err
	}
	if current, ok := r.Turn.Current(); !ok || current != cmd.PlayerID {
		return nil, ErrWrongTurn
	}
	if r.Pending != nil {
		return nil, ErrQuestionPending
	}
	guess := strings.TrimSpace(cmd.Text)
	if guess == "" {
		return nil, ErrBlankGuess
	}
	idx := slices.IndexFunc(r.Assignments, func(a NameAssignment) bool { return a.GuesserID == cmd.PlayerID })
	if idx < 0 {
		return nil, ErrNoAssignment
	}

	guessed := events.NameGuessed{RoundID: r.ID, GuesserID: cmd.PlayerID, GuessedName: guess}

	if SameName(r.Assignments[idx].Name, guess) {
		guessed.IsCorrect = true
		r.Assignments[idx].Solved = true
		r.SolveOrder = append(r.SolveOrder, cmd.PlayerID)
		r.Turn.Remove(cmd.PlayerID)

		if r.Turn.Len() <= 1 {
			evs := []events.Envelope{events.ToPlayers(s.MemberIDs(), guessed)}
			return append(evs, e.endRound(s, r)...), nil
		}
	}

	guessed.NextPlayerID, _ = r.Turn.Advance()
	return []events.Envelope{events.ToPlayers(s.MemberIDs(), guessed)}, nil
}

// endRound finishes r. Winners are reported in solve order; the single
// player left in the turn sequence, if any, is the loser.
func (e *Engine) endRound(s *State, r *Round) []events.Envelope {
	now := e.now()
	r.EndedAt = &now
	r.Phase = PhaseComplete
	r.Pending = nil
	s.Room.Status = StatusFinished

	ended := events.GameEnded{
		RoundID:     r.ID,
		Winners:     append([]string{}, r.SolveOrder...),
		Assignments: r.assignmentViews(""),
	}
	if r.Turn.Len() == 1 {
		ended.LoserID = r.Turn.Order[0]
	}
	return []events.Envelope{
		events.ToPlayers(s.MemberIDs(), ended),
		events.ToAll(events.RoomListUpdated{}),
	}
}

func (e *Engine) resetRoom(s *State, cmd Command) ([]events.Envelope, error) {
	if s.Room.OwnerID != cmd.PlayerID {
		return nil, ErrNotOwner
	}
	if s.Room.Status != StatusFinished {
		return nil, ErrNotFinished
	}
	s.Room.Status = StatusWaiting
	return []events.Envelope{
		events.ToPlayers(s.MemberIDs(), events.RoomReset{RoomID: s.Room.ID}),
		events.ToAll(events.RoomListUpdated{}),
	}, nil
}

func (e *Engine) cleanName(raw string) (string, error) {
	name := NormalizeName(raw)
	if name == "" {
		return "", ErrBlankName
	}
	if utf8.RuneCountInString(name) > e.maxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
