package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
)

type roomRecord struct {
	ID        string         `gorm:"primaryKey;size:36"`
	Name      string         `gorm:"size:200;not null"`
	OwnerID   string         `gorm:"size:36"`
	Status    string         `gorm:"size:16;not null;index"`
	Capacity  int            `gorm:"not null"`
	Version   int            `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	Members   []memberRecord `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Rounds    []roundRecord  `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (roomRecord) TableName() string { return "rooms" }

type memberRecord struct {
	RoomID   string    `gorm:"primaryKey;size:36"`
	PlayerID string    `gorm:"primaryKey;size:36"`
	Name     string    `gorm:"size:200;not null"`
	Position int       `gorm:"not null"`
	JoinedAt time.Time `gorm:"not null"`
}

func (memberRecord) TableName() string { return "room_members" }

type roundRecord struct {
	ID             string                             `gorm:"primaryKey;size:36"`
	RoomID         string                             `gorm:"size:36;not null;index"`
	Number         int                                `gorm:"not null"`
	Phase          string                             `gorm:"size:16;not null"`
	Roster         datatypes.JSONSlice[engine.Member] `gorm:"type:jsonb"`
	TurnOrder      datatypes.JSONSlice[string]        `gorm:"type:jsonb"`
	TurnIndex      int                                `gorm:"not null"`
	QuestionSeq    int                                `gorm:"not null"`
	PendingSeq     int                                // 0 when no question is open
	PendingAskerID string                             `gorm:"size:36"`
	PendingText    string
	PendingAt      *time.Time
	SolveOrder     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ReadyAnnounced bool                        `gorm:"not null;default:false"`
	StartedAt      time.Time                   `gorm:"not null"`
	EndedAt        *time.Time
	Assignments    []assignmentRecord `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
	Answers        []answerRecord     `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
}

func (roundRecord) TableName() string { return "rounds" }

type assignmentRecord struct {
	ID            uint   `gorm:"primaryKey"`
	RoundID       string `gorm:"size:36;not null;uniqueIndex:idx_assignment_contributor"`
	ContributorID string `gorm:"size:36;not null;uniqueIndex:idx_assignment_contributor"`
	GuesserID     string `gorm:"size:36"`
	Name          string `gorm:"size:200;not null"`
	Solved        bool   `gorm:"not null;default:false"`
	Position      int    `gorm:"not null"`
}

func (assignmentRecord) TableName() string { return "name_assignments" }

type answerRecord struct {
	ID           uint      `gorm:"primaryKey"`
	RoundID      string    `gorm:"size:36;not null;uniqueIndex:idx_answer_responder"`
	QuestionSeq  int       `gorm:"not null;uniqueIndex:idx_answer_responder"`
	ResponderID  string    `gorm:"size:36;not null;uniqueIndex:idx_answer_responder"`
	QuestionerID string    `gorm:"size:36;not null"`
	Question     string    `gorm:"not null"`
	Answer       bool      `gorm:"not null"`
	At           time.Time `gorm:"not null"`
}

func (answerRecord) TableName() string { return "question_answers" }

func toRecord(s engine.State) roomRecord {
	rec := roomRecord{
		ID:        s.Room.ID,
		Name:      s.Room.Name,
		OwnerID:   s.Room.OwnerID,
		Status:    string(s.Room.Status),
		Capacity:  s.Room.Capacity,
		Version:   s.Version,
		CreatedAt: s.Room.CreatedAt,
	}
	for i, m := range s.Room.Members {
		rec.Members = append(rec.Members, memberRecord{
			RoomID:   s.Room.ID,
			PlayerID: m.ID,
			Name:     m.Name,
			Position: i,
			JoinedAt: m.JoinedAt,
		})
	}
	for _, r := range s.Rounds {
		rec.Rounds = append(rec.Rounds, toRoundRecord(r))
	}
	return rec
}

func toRoundRecord(r engine.Round) roundRecord {
	rr := roundRecord{
		ID:             r.ID,
		RoomID:         r.RoomID,
		Number:         r.Number,
		Phase:          string(r.Phase),
		Roster:         datatypes.JSONSlice[engine.Member](r.Roster),
		TurnOrder:      datatypes.JSONSlice[string](r.Turn.Order),
		TurnIndex:      r.Turn.Index,
		QuestionSeq:    r.QuestionSeq,
		SolveOrder:     datatypes.JSONSlice[string](r.SolveOrder),
		ReadyAnnounced: r.ReadyAnnounced,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
	}
	if q := r.Pending; q != nil {
		at := q.AskedAt
		rr.PendingSeq = q.Seq
		rr.PendingAskerID = q.AskerID
		rr.PendingText = q.Text
		rr.PendingAt = &at
	}
	for i, a := range r.Assignments {
		rr.Assignments = append(rr.Assignments, assignmentRecord{
			RoundID:       r.ID,
			ContributorID: a.ContributorID,
			GuesserID:     a.GuesserID,
			Name:          a.Name,
			Solved:        a.Solved,
			Position:      i,
		})
	}
	for _, qa := range r.Answers {
		rr.Answers = append(rr.Answers, answerRecord{
			RoundID:      r.ID,
			QuestionSeq:  qa.QuestionSeq,
			ResponderID:  qa.ResponderID,
			QuestionerID: qa.QuestionerID,
			Question:     qa.Question,
			Answer:       qa.Answer,
			At:           qa.At,
		})
	}
	return rr
}

// fromRecord expects children already sorted (members and assignments by
// position, rounds by number, answers by id).
func fromRecord(rec roomRecord) engine.State {
	s := engine.State{
		Room: engine.Room{
			ID:        rec.ID,
			Name:      rec.Name,
			OwnerID:   rec.OwnerID,
			Status:    engine.RoomStatus(rec.Status),
			Capacity:  rec.Capacity,
			CreatedAt: rec.CreatedAt,
		},
		Version: rec.Version,
	}
	for _, m := range rec.Members {
		s.Room.Members = append(s.Room.Members, engine.Member{ID: m.PlayerID, Name: m.Name, JoinedAt: m.JoinedAt})
	}
	for _, rr := range rec.Rounds {
		s.Rounds = append(s.Rounds, fromRoundRecord(rr))
	}
	return s
}

func fromRoundRecord(rr roundRecord) engine.Round {
	r := engine.Round{
		ID:             rr.ID,
		RoomID:         rr.RoomID,
		Number:         rr.Number,
		Phase:          engine.Phase(rr.Phase),
		Roster:         []engine.Member(rr.Roster),
		Turn:           engine.TurnSequence{Order: []string(rr.TurnOrder), Index: rr.TurnIndex},
		QuestionSeq:    rr.QuestionSeq,
		SolveOrder:     []string(rr.SolveOrder),
		ReadyAnnounced: rr.ReadyAnnounced,
		StartedAt:      rr.StartedAt,
		EndedAt:        rr.EndedAt,
	}
	if rr.PendingSeq > 0 {
		q := engine.Question{Seq: rr.PendingSeq, AskerID: rr.PendingAskerID, Text: rr.PendingText}
		if rr.PendingAt != nil {
			q.AskedAt = *rr.PendingAt
		}
		r.Pending = &q
	}
	for _, a := range rr.Assignments {
		r.Assignments = append(r.Assignments, engine.NameAssignment{
			RoundID:       rr.ID,
			GuesserID:     a.GuesserID,
			ContributorID: a.ContributorID,
			Name:          a.Name,
			Solved:        a.Solved,
		})
	}
	for _, a := range rr.Answers {
		r.Answers = append(r.Answers, engine.QuestionAnswer{
			RoundID:      rr.ID,
			QuestionSeq:  a.QuestionSeq,
			QuestionerID: a.QuestionerID,
			ResponderID:  a.ResponderID,
			Question:     a.Question,
			Answer:       a.Answer,
			At:           a.At,
		})
	}
	return r
}
