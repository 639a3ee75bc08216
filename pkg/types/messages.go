// Package types documents the websocket protocol. Every frame is a JSON
// object with a "type"; the Go definitions live in internal/types.
package types

// Client -> Server
// Login:          name: string
// CreateRoom:     name: string
// GetRooms:       {}
// JoinRoom:       room_id: string
// LeaveRoom:      {}
// SubmitName:     name: string            // the secret name you contribute
// StartGame:      {}                      // owner only, once everyone submitted
// AskQuestion:    round_id: string, question: string
// AnswerQuestion: round_id: string, answer: boolean
// GuessName:      round_id: string, guess: string
// ResetRoom:      {}                      // owner only, after GameEnded

// Server -> Client
// { "type": <event name>, "data": {...} }
//
// LoginSuccess:        identity { id, name, created_at }
// RoomCreated:         room
// RoomList:            rooms: room[]       // waiting rooms only
// RoomListUpdated:     {}                  // re-fetch with GetRooms
// JoinedRoom:          room
// PlayerJoined:        room_id, player { id, name }
// PlayerLeft:          room_id, player_id, new_owner_id?
// LeftRoom:            room_id
// PreparationStarted:  room_id, round_id, round_number
// NameSubmitted:       room_id, contributor_id
// AllPlayersReady:     room_id
// GamePlayStarted:     round_id, current_player_id, turn_order
// AssignedPlayersInfo: round_id, my_assignment ("???"), other_players[], turn_order
// QuestionAsked:       round_id, asker_id, question
// QuestionAnswered:    round_id, responder_id, answer
// AllAnswersReceived:  round_id, next_player_id
// NameGuessed:         round_id, guesser_id, is_correct, guessed_name, next_player_id?
// TurnPassed:          round_id, leaver_id, next_player_id
// GameEnded:           round_id, winners[] (solve order), loser_id?, player_assignments[]
// RoomReset:           room_id
//
// Error:
//   { "type": "Error", "error": { command, kind, message, retryable? } }
//   kind: "validation" | "not_found" | "state" | "conflict" | "internal"
