package handlers

import (
	"context"

	"lchat/logger"
	"lchat/service/chat"
	"lchat/tools/decode"
)

type subscribePayload struct {
	UserIDs []string `json:"user_ids"`
	UserID  string   `json:"user_id"` // single-user form
}

func handleSubscribeStatus(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[subscribePayload](f.Data)
	if err != nil {
		logger.Warnf("bad subscribe payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	ids := p.UserIDs
	if p.UserID != "" {
		ids = append(ids, p.UserID)
	}
	s.Presence.Subscribe(ctx, c, ids)
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}

type chatOpenPayload struct {
	RecipientID string `json:"recipient_id"`
}

// handleChatOpen answers with the peer's current presence. A user the system
// has never seen reads as offline with a null last_active.
func handleChatOpen(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[chatOpenPayload](f.Data)
	if err != nil {
		logger.Warnf("bad chatOpen payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	rec, ok, err := s.Presence.Snapshot(ctx, p.RecipientID)
	if err != nil {
		logger.Errorf("chatOpen snapshot failed, user=%s err=%v", p.RecipientID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	var lastActive any
	online := false
	if ok {
		online = rec.Online
		lastActive = rec.LastActive
	}
	// the opened peer, if connected, learns the requester is looking at the
	// chat right now; their side shows no last_active for a live viewer
	if peer, connected := s.Manager.Lookup(p.RecipientID); connected {
		_ = peer.Emit(chat.EventOnlineStatus(c.UserID()), map[string]any{
			"user_id":     c.UserID(),
			"online":      true,
			"last_active": nil,
		})
	}
	reply(c, f, map[string]any{
		"status":      chat.StatusSuccess,
		"online":      online,
		"last_active": lastActive,
	})
}

type typingPayload struct {
	RecipientID string `json:"recipient_id"`
	IsTyping    bool   `json:"is_typing"`
}

// handleTyping is fire-and-forget: no queueing, no outcome.
func handleTyping(_ context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[typingPayload](f.Data)
	if err != nil {
		return
	}
	s.ForwardTyping(c.UserID(), p.RecipientID, p.IsTyping)
}

// handleProfilePicUpdated relays a profile change to everyone watching this
// user's status.
func handleProfilePicUpdated(_ context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	data := map[string]any{"user_id": c.UserID()}
	for k, v := range f.Data {
		data[k] = v
	}
	s.Presence.BroadcastProfile(c.UserID(), data)
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}
