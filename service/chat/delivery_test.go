package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lchat/module/chat/model"
)

const (
	testSender    = "u-sender"
	testRecipient = "u-recipient"
)

func newDelivery(reg Registry, pres PresencePort, users UserPort, off OfflinePort) *DeliveryService {
	return NewDeliveryService(reg, pres, users, off, 50*time.Millisecond, time.Millisecond)
}

func activeRecipient(users *fakeUsers, keyVersion int64) {
	users.users[testRecipient] = &model.UserModel{UserID: testRecipient, AccountStatus: "active"}
	users.keys[testRecipient] = &model.PublicKeyModel{
		UserID:             testRecipient,
		EncryptedPublicKey: "pk-material",
		KeyVersion:         keyVersion,
	}
}

func testMessage() *ChatMessage {
	return &ChatMessage{
		SenderID:    testSender,
		RecipientID: testRecipient,
		MessageID:   "m-1",
		Body:        "ciphertext",
		Type:        "text",
		Category:    "chat",
		KeyVersion:  3,
	}
}

func TestSendDeactivatedRecipient(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	users.users[testRecipient].AccountStatus = model.AccountStatusDeactivated
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{}, newFakePresence(), users, off)

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusUserNotActive, out.Status)
	assert.Equal(t, "m-1", out.MessageID)
	assert.Zero(t, off.messageCount())
}

func TestSendMissingKey(t *testing.T) {
	users := newFakeUsers()
	users.users[testRecipient] = &model.UserModel{UserID: testRecipient, AccountStatus: "active"}
	d := newDelivery(fakeRegistry{}, newFakePresence(), users, newFakeOffline())

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusFailedOnKey, out.Status)
}

func TestSendKeyVersionMismatch(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 4)
	d := newDelivery(fakeRegistry{}, newFakePresence(), users, newFakeOffline())

	msg := testMessage() // claims version 3
	out := d.Send(context.Background(), msg)
	assert.Equal(t, StatusKeyError, out.Status)
	assert.Equal(t, "pk-material", out.PublicKey)
	assert.Equal(t, int64(4), out.KeyVersion)
}

func TestSendLiveDelivered(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	pres := newFakePresence()
	_, err := pres.SetOnline(context.Background(), testRecipient, "c-1")
	require.NoError(t, err)
	peer := &fakePeer{probeOutcome: Delivered, forwardOutcome: Delivered}
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{testRecipient: peer}, pres, users, off)

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusSuccess, out.Status)
	assert.NotZero(t, out.DeliveredAt)
	assert.Zero(t, off.messageCount(), "live delivery must not queue")
	assert.Equal(t, []string{EventCheck, EventChatMessage}, peer.requestLog(), "probe runs before the forward")
}

func TestSendProbeTimeoutFallsBackToQueue(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	pres := newFakePresence()
	_, err := pres.SetOnline(context.Background(), testRecipient, "c-1")
	require.NoError(t, err)
	peer := &fakePeer{probeOutcome: TimedOut}
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{testRecipient: peer}, pres, users, off)

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusSuccess, out.Status, "queued sends still resolve as success")
	assert.Equal(t, 1, off.messageCount())
	assert.Equal(t, []string{EventCheck}, peer.requestLog(), "no forward after a dead probe")
}

func TestSendUnreachableQueues(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{}, newFakePresence(), users, off)

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, off.messageCount())
}

func TestSendPresenceOfflineSkipsProbe(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	pres := newFakePresence()
	_, err := pres.SetOffline(context.Background(), testRecipient)
	require.NoError(t, err)
	peer := &fakePeer{probeOutcome: Delivered, forwardOutcome: Delivered}
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{testRecipient: peer}, pres, users, off)

	out := d.Send(context.Background(), testMessage())
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, off.messageCount())
	assert.Empty(t, peer.requestLog(), "background connections are never probed")
}

func TestOfflineEnqueueIdempotent(t *testing.T) {
	users := newFakeUsers()
	activeRecipient(users, 3)
	off := newFakeOffline()
	d := newDelivery(fakeRegistry{}, newFakePresence(), users, off)

	msg := testMessage()
	for i := 0; i < 3; i++ {
		out := d.Send(context.Background(), msg)
		require.Equal(t, StatusSuccess, out.Status)
	}
	assert.Equal(t, 1, off.messageCount(), "same (recipient, message) never rows twice")
}

func TestSendOutcomeTotality(t *testing.T) {
	cases := []struct {
		name  string
		setup func(u *fakeUsers)
		want  string
	}{
		{"deactivated", func(u *fakeUsers) {
			activeRecipient(u, 3)
			u.users[testRecipient].AccountStatus = model.AccountStatusDeactivated
		}, StatusUserNotActive},
		{"no key", func(u *fakeUsers) {
			u.users[testRecipient] = &model.UserModel{UserID: testRecipient, AccountStatus: "active"}
		}, StatusFailedOnKey},
		{"stale key", func(u *fakeUsers) { activeRecipient(u, 9) }, StatusKeyError},
		{"unreachable", func(u *fakeUsers) { activeRecipient(u, 3) }, StatusSuccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newFakeUsers()
			tc.setup(users)
			d := newDelivery(fakeRegistry{}, newFakePresence(), users, newFakeOffline())
			out := d.Send(context.Background(), testMessage())
			require.NotNil(t, out)
			assert.Equal(t, tc.want, out.Status)
		})
	}
}
