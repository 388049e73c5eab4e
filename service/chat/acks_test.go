package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lchat/module/chat/model"
)

func testAck() *Ack {
	return &Ack{
		MessageID:   "m-1",
		SenderID:    testSender,
		RecipientID: testRecipient,
		Status:      model.AckStatusDelivered,
		AckType:     model.AckTypeRecipient,
	}
}

func TestAcknowledgeLive(t *testing.T) {
	pres := newFakePresence()
	_, err := pres.SetOnline(context.Background(), testSender, "c-1")
	require.NoError(t, err)
	peer := &fakePeer{forwardOutcome: Delivered}
	off := newFakeOffline()
	tr := NewAckTracker(fakeRegistry{testSender: peer}, pres, off, 50*time.Millisecond)

	require.NoError(t, tr.Acknowledge(context.Background(), testAck()))
	assert.Zero(t, off.ackCount(), "confirmed live delivery must not queue")
	assert.Equal(t, []string{EventMessageStatus}, peer.requestLog())
}

func TestAcknowledgeUnreachableQueues(t *testing.T) {
	off := newFakeOffline()
	tr := NewAckTracker(fakeRegistry{}, newFakePresence(), off, 50*time.Millisecond)

	require.NoError(t, tr.Acknowledge(context.Background(), testAck()))
	assert.Equal(t, 1, off.ackCount())
}

func TestAcknowledgeTimeoutQueues(t *testing.T) {
	pres := newFakePresence()
	_, err := pres.SetOnline(context.Background(), testSender, "c-1")
	require.NoError(t, err)
	peer := &fakePeer{forwardOutcome: TimedOut}
	off := newFakeOffline()
	tr := NewAckTracker(fakeRegistry{testSender: peer}, pres, off, 50*time.Millisecond)

	require.NoError(t, tr.Acknowledge(context.Background(), testAck()))
	assert.Equal(t, 1, off.ackCount(), "unconfirmed ack falls back to the queue")
}

func TestAcknowledgeDuplicatesAllowed(t *testing.T) {
	off := newFakeOffline()
	tr := NewAckTracker(fakeRegistry{}, newFakePresence(), off, 50*time.Millisecond)

	require.NoError(t, tr.Acknowledge(context.Background(), testAck()))
	require.NoError(t, tr.Acknowledge(context.Background(), testAck()))
	assert.Equal(t, 2, off.ackCount())
}
