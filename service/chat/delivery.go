package chat

import (
	"context"
	"time"

	"lchat/logger"
	"lchat/module/chat/model"
	"lchat/tools/errs"

	"github.com/pkg/errors"
)

// ChatMessage is one end-to-end encrypted message in flight.
type ChatMessage struct {
	SenderID     string `json:"sender_id"`
	RecipientID  string `json:"recipient_id"`
	MessageID    string `json:"message_id"`
	Body         string `json:"message"`
	Type         string `json:"type"`
	Category     string `json:"category"`
	ReplyID      string `json:"reply_id"`
	KeyVersion   int64  `json:"key_version"`
	FileMetadata string `json:"file_meta_data,omitempty"`
}

// Outcome is the resolved result reported back to the sender. Every send
// produces exactly one.
type Outcome struct {
	Status      string `json:"status"`
	MessageID   string `json:"message_id,omitempty"`
	DeliveredAt int64  `json:"delivered_at,omitempty"` // unix ms
	PublicKey   string `json:"public_key,omitempty"`   // set on KEY_ERROR
	KeyVersion  int64  `json:"key_version,omitempty"`  // set on KEY_ERROR
}

// DeliveryService runs the send pipeline: recipient gates, reachability,
// liveness probe, live forward, offline fallback.
type DeliveryService struct {
	registry     Registry
	presence     PresencePort
	users        UserPort
	offline      OfflinePort
	probeTimeout time.Duration
	settleDelay  time.Duration
}

func NewDeliveryService(registry Registry, presence PresencePort, users UserPort, offline OfflinePort, probeTimeout, settleDelay time.Duration) *DeliveryService {
	return &DeliveryService{
		registry:     registry,
		presence:     presence,
		users:        users,
		offline:      offline,
		probeTimeout: probeTimeout,
		settleDelay:  settleDelay,
	}
}

// ValidateRecipient runs the ordered gates shared by message sends and
// transfer starts. Nil means the recipient can be targeted.
func (s *DeliveryService) ValidateRecipient(ctx context.Context, recipientID string, keyVersion int64) *Outcome {
	user, err := s.users.GetUser(ctx, recipientID)
	switch {
	case err == nil:
		if user.Deactivated() {
			return &Outcome{Status: StatusUserNotActive}
		}
	case errors.Is(err, &errs.ErrRecordNotFound):
		// no account row is not a delivery gate; the queue still accepts
	default:
		logger.Errorf("user lookup failed, user=%s err=%v", recipientID, err)
		return &Outcome{Status: StatusUnknownError}
	}

	key, err := s.users.GetPublicKey(ctx, recipientID)
	if err != nil {
		if errors.Is(err, &errs.ErrRecordNotFound) {
			return &Outcome{Status: StatusFailedOnKey}
		}
		logger.Errorf("key lookup failed, user=%s err=%v", recipientID, err)
		return &Outcome{Status: StatusUnknownError}
	}
	if key.KeyVersion != keyVersion {
		return &Outcome{
			Status:     StatusKeyError,
			PublicKey:  key.EncryptedPublicKey,
			KeyVersion: key.KeyVersion,
		}
	}
	return nil
}

// Send resolves every message to exactly one outcome. An unreachable or
// unresponsive recipient is not a failure: the message is queued and the
// sender still gets Success after the settle delay.
func (s *DeliveryService) Send(ctx context.Context, msg *ChatMessage) *Outcome {
	if out := s.ValidateRecipient(ctx, msg.RecipientID, msg.KeyVersion); out != nil {
		out.MessageID = msg.MessageID
		return out
	}
	if s.deliverLive(ctx, msg) {
		return &Outcome{Status: StatusSuccess, MessageID: msg.MessageID, DeliveredAt: time.Now().UnixMilli()}
	}
	return s.deliverOffline(ctx, msg)
}

// deliverLive probes the recipient before forwarding; both the probe and the
// forward must come back inside the window.
func (s *DeliveryService) deliverLive(ctx context.Context, msg *ChatMessage) bool {
	peer, ok := s.registry.Lookup(msg.RecipientID)
	if !ok {
		return false
	}
	rec, found, err := s.presence.Get(ctx, msg.RecipientID)
	if err != nil {
		logger.Warnf("presence read failed during send, user=%s err=%v", msg.RecipientID, err)
		return false
	}
	if !found || !rec.Online {
		return false
	}
	probe := peer.Request(ctx, EventCheck, map[string]any{"sender_id": msg.SenderID}, s.probeTimeout)
	if probe.Outcome != Delivered {
		logger.Infof("liveness probe %s, user=%s message=%s", probe.Outcome, msg.RecipientID, msg.MessageID)
		return false
	}
	fw := peer.Request(ctx, EventChatMessage, msg, s.probeTimeout)
	return fw.Outcome == Delivered
}

// deliverOffline queues the message and settles before reporting Success, so
// the sender-side ordering matches what a live delivery would have produced.
func (s *DeliveryService) deliverOffline(ctx context.Context, msg *ChatMessage) *Outcome {
	err := s.offline.SaveMessage(ctx, &model.OfflineMessageModel{
		RecipientID:  msg.RecipientID,
		SenderID:     msg.SenderID,
		MessageID:    msg.MessageID,
		MessageBody:  msg.Body,
		Type:         msg.Type,
		Category:     msg.Category,
		ReplyID:      msg.ReplyID,
		FileMetadata: msg.FileMetadata,
	})
	if err != nil {
		logger.Errorf("offline enqueue failed, user=%s message=%s err=%v", msg.RecipientID, msg.MessageID, err)
		return &Outcome{Status: StatusUnknownError, MessageID: msg.MessageID}
	}
	select {
	case <-time.After(s.settleDelay):
	case <-ctx.Done():
	}
	return &Outcome{Status: StatusSuccess, MessageID: msg.MessageID, DeliveredAt: time.Now().UnixMilli()}
}
