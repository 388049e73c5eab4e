package handlers

import (
	"context"

	"lchat/logger"
	"lchat/service/chat"
	"lchat/tools/decode"
)

type joinPayload struct {
	UserID     string `json:"user_id"`
	Background bool   `json:"background"`
}

// handleJoin binds the authenticated identity to the connection. The payload
// user_id is advisory only; the handshake token decides who this is.
func handleJoin(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[joinPayload](f.Data)
	if err != nil {
		logger.Warnf("bad join payload, conn=%s err=%v", c.ConnID, err)
		p = &joinPayload{}
	}
	userID := c.AuthID()
	if p.UserID != "" && p.UserID != userID {
		logger.Warnf("join user_id mismatch, token=%s payload=%s", userID, p.UserID)
	}
	if err := s.Presence.HandleJoin(ctx, c, userID, p.Background); err != nil {
		logger.Errorf("join failed, user=%s err=%v", userID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}

func handleHeartbeat(_ context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	c.Touch(s.Manager.Window())
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}

func reply(c *chat.WsConn, f *chat.Frame, data any) {
	if err := c.Reply(f.AckID, data); err != nil {
		logger.Warnf("reply failed, conn=%s event=%s err=%v", c.ConnID, f.Event, err)
	}
}

func replyErr(c *chat.WsConn, f *chat.Frame, status string) {
	reply(c, f, map[string]any{"status": status})
}
