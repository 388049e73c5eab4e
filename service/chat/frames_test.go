package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	raw, err := EncodeFrame(EventChatMessage, "ack-1", map[string]any{"message": "hi"})
	require.NoError(t, err)

	f, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, EventChatMessage, f.Event)
	assert.Equal(t, "ack-1", f.AckID)
	assert.Equal(t, "hi", f.Data["message"])
}

func TestFrameStructData(t *testing.T) {
	out := &Outcome{Status: StatusSuccess, MessageID: "m-1", DeliveredAt: 42}
	raw, err := AckFrame("ack-1", out)
	require.NoError(t, err)

	f, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, EventAck, f.Event)
	assert.Equal(t, StatusSuccess, f.Data["status"])
	assert.Equal(t, "m-1", f.Data["message_id"])
}

func TestParseFrameRejectsMissingEvent(t *testing.T) {
	_, err := ParseFrame([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}
