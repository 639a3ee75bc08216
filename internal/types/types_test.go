package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/name-guess-backend/internal/events"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

func TestEventMessage_UsesEventNameAsType(t *testing.T) {
	raw, err := json.Marshal(EventMessage(events.QuestionAsked{RoundID: "r1", AskerID: "p1", Question: "Am I tall?"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"QuestionAsked","data":{"round_id":"r1","asker_id":"p1","question":"Am I tall?"}}`, string(raw))
}

func TestErrorMessage_HidesInternalCause(t *testing.T) {
	msg := ErrorMessage("JoinRoom", gameerr.Internal("store save", errors.New("pq: password authentication failed")))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Error","error":{"command":"JoinRoom","kind":"internal","message":"internal error"}}`, string(raw))

	msg = ErrorMessage("JoinRoom", gameerr.Conflict("room is busy, retry"))
	assert.Equal(t, "conflict", msg.Error.Kind)
	assert.True(t, msg.Error.Retryable)
}
