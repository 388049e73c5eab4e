package chat

import (
	"context"
	"time"

	"lchat/logger"
	"lchat/module/chat/model"
)

// Ack is one message status update travelling back to the original sender.
type Ack struct {
	MessageID   string
	SenderID    string // sender of the original message, the ack's target
	RecipientID string // the acking side
	Status      string // SENT, DELIVERED, READ
	AckType     string // self or recipient
}

// AckTracker propagates status updates to senders. Live delivery is a bounded
// request; anything short of a confirmed delivery lands in the durable queue,
// so an ack is never silently dropped.
type AckTracker struct {
	registry Registry
	presence PresencePort
	offline  OfflinePort
	timeout  time.Duration
}

func NewAckTracker(registry Registry, presence PresencePort, offline OfflinePort, timeout time.Duration) *AckTracker {
	return &AckTracker{registry: registry, presence: presence, offline: offline, timeout: timeout}
}

// Acknowledge delivers the ack live when the sender is reachable, otherwise
// queues it. Returns an error only when the queue write itself fails.
func (t *AckTracker) Acknowledge(ctx context.Context, a *Ack) error {
	if t.deliverLive(ctx, a) {
		return nil
	}
	return t.offline.SaveAck(ctx, &model.OfflineAckModel{
		MessageID:   a.MessageID,
		SenderID:    a.SenderID,
		RecipientID: a.RecipientID,
		Status:      a.Status,
		AckType:     a.AckType,
	})
}

func (t *AckTracker) deliverLive(ctx context.Context, a *Ack) bool {
	peer, ok := t.registry.Lookup(a.SenderID)
	if !ok {
		return false
	}
	rec, found, err := t.presence.Get(ctx, a.SenderID)
	if err != nil {
		logger.Warnf("presence read failed during ack, user=%s err=%v", a.SenderID, err)
		return false
	}
	if !found || !rec.Online {
		return false
	}
	res := peer.Request(ctx, EventMessageStatus, map[string]any{
		"message_id":   a.MessageID,
		"sender_id":    a.SenderID,
		"recipient_id": a.RecipientID,
		"status":       a.Status,
		"ack_type":     a.AckType,
	}, t.timeout)
	return res.Outcome == Delivered
}
