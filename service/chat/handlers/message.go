package handlers

import (
	"context"

	"lchat/logger"
	"lchat/module/chat/model"
	"lchat/service/chat"
	"lchat/tools/decode"
)

// handleChatMessage runs a text message through the delivery pipeline and
// reports the resolved outcome back through the frame's ack.
func handleChatMessage(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	msg, err := decode.Payload[chat.ChatMessage](f.Data)
	if err != nil {
		logger.Warnf("bad chatMessage payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	msg.SenderID = c.UserID()
	out := s.Delivery.Send(ctx, msg)
	reply(c, f, out)
}

type ackPayload struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"` // sender of the original message
	Status    string `json:"status"`
	AckType   string `json:"ack_type"`
}

// handleAcknowledgment propagates a delivery/read receipt to the original
// sender, queueing it when the sender is unreachable.
func handleAcknowledgment(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[ackPayload](f.Data)
	if err != nil {
		logger.Warnf("bad acknowledgment payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	a := &chat.Ack{
		MessageID:   p.MessageID,
		SenderID:    p.SenderID,
		RecipientID: c.UserID(),
		Status:      p.Status,
		AckType:     p.AckType,
	}
	if a.AckType == "" {
		a.AckType = model.AckTypeRecipient
	}
	if err := s.Acks.Acknowledge(ctx, a); err != nil {
		logger.Errorf("ack queue failed, message=%s err=%v", a.MessageID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}
