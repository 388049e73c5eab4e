package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"lchat/global"
	"lchat/logger"
	"lchat/service/storage"
	"lchat/tools/errs"
)

// PresenceService owns the join/disconnect lifecycle: presence rows, status
// broadcasts, and replay of queued acks and messages on reconnect.
type PresenceService struct {
	manager  *ConnManager
	presence PresencePort
	users    UserPort
	offline  OfflinePort
	hub      *StatusHub
}

func NewPresenceService(manager *ConnManager, presence PresencePort, users UserPort, offline OfflinePort, hub *StatusHub) *PresenceService {
	return &PresenceService{manager: manager, presence: presence, users: users, offline: offline, hub: hub}
}

// statusPayload is the wire form of a presence row. Connection ids are
// routing state and stay off the wire.
func statusPayload(rec *storage.PresenceRecord) map[string]any {
	return map[string]any{
		"user_id":     rec.UserID,
		"online":      rec.Online,
		"last_active": rec.LastActive,
	}
}

// HandleJoin binds the user to the connection and, for foreground sessions,
// marks them online, broadcasts the fresh row and replays the queues.
// Background sessions bind for routing only and never touch presence.
func (s *PresenceService) HandleJoin(ctx context.Context, c *WsConn, userID string, background bool) error {
	s.manager.Bind(c, userID, background)
	if background {
		logger.Infof("background join, user=%s conn=%s", userID, c.ConnID)
		return nil
	}
	if _, err := s.presence.SetOnline(ctx, userID, c.ConnID); err != nil {
		return err
	}
	s.broadcast(ctx, userID)
	s.replayAcks(ctx, c, userID)
	s.replayMessages(ctx, c, userID)
	return nil
}

// HandleDisconnect tears the connection down. Presence goes offline only when
// this connection was foreground and has not been replaced by a rejoin.
func (s *PresenceService) HandleDisconnect(ctx context.Context, c *WsConn) {
	s.manager.Remove(c)
	s.hub.Unsubscribe(c)
	userID := c.UserID()
	if userID == "" || c.Background() {
		return
	}
	if cur, ok := s.manager.Lookup(userID); ok && cur != c {
		return
	}
	if _, err := s.presence.SetOffline(ctx, userID); err != nil {
		logger.Errorf("presence set offline failed, user=%s err=%v", userID, err)
		return
	}
	s.broadcast(ctx, userID)
}

// Subscribe registers the connection as a watcher and sends one snapshot per
// watched user: the presence row if one exists, and the profile fields the
// roster renders next to it.
func (s *PresenceService) Subscribe(ctx context.Context, c *WsConn, userIDs []string) {
	s.hub.Subscribe(c, userIDs)
	for _, id := range userIDs {
		rec, ok, err := s.presence.Get(ctx, id)
		if err != nil {
			logger.Warnf("presence snapshot failed, user=%s err=%v", id, err)
		} else if ok {
			if err := c.Emit(EventOnlineStatus(id), statusPayload(rec)); err != nil {
				logger.Warnf("snapshot emit failed, conn=%s err=%v", c.ConnID, err)
			}
		}
		s.emitProfileSnapshot(ctx, c, id)
	}
}

// emitProfileSnapshot sends the watched user's display fields so the roster
// can refresh pictures without a separate profile query.
func (s *PresenceService) emitProfileSnapshot(ctx context.Context, c *WsConn, userID string) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, &errs.ErrRecordNotFound) {
			logger.Warnf("profile snapshot failed, user=%s err=%v", userID, err)
		}
		return
	}
	err = c.Emit(EventProfileInfo, map[string]any{
		"user_id":               u.UserID,
		"profile_pic_url":       publicProfileURL(u.ProfilePicURL),
		"profile_pic_url_96x96": publicProfileURL(u.ProfilePicURL96),
		"updated_at":            u.UpdatedAt,
	})
	if err != nil {
		logger.Warnf("profile snapshot emit failed, conn=%s err=%v", c.ConnID, err)
	}
}

// publicProfileURL maps a stored relative picture path to its public URL.
func publicProfileURL(rel string) string {
	if rel == "" || strings.HasPrefix(rel, "http") {
		return rel
	}
	return strings.TrimRight(global.Conf.ProfileBaseURL, "/") + "/" + strings.TrimLeft(rel, "/")
}

// Snapshot reads the current presence row for one user.
func (s *PresenceService) Snapshot(ctx context.Context, userID string) (*storage.PresenceRecord, bool, error) {
	return s.presence.Get(ctx, userID)
}

// BroadcastProfile pushes a profile change to everyone watching the user.
func (s *PresenceService) BroadcastProfile(userID string, data map[string]any) {
	s.hub.BroadcastToWatchers(userID, EventProfileInfo, data)
}

// broadcast re-reads the row and publishes it; the hub bridge delivers to
// watchers on every node, this one included.
func (s *PresenceService) broadcast(ctx context.Context, userID string) {
	rec, ok, err := s.presence.Get(ctx, userID)
	if err != nil || !ok {
		if err != nil {
			logger.Errorf("presence re-read failed, user=%s err=%v", userID, err)
		}
		return
	}
	if err := s.presence.PublishStatus(ctx, rec); err != nil {
		logger.Errorf("status publish failed, user=%s err=%v", userID, err)
	}
}

// replayAcks drains queued status updates, SENT before DELIVERED before the
// rest. A failing row is logged and skipped; replay never aborts the join.
func (s *PresenceService) replayAcks(ctx context.Context, c *WsConn, userID string) {
	acks, err := s.offline.ListAcks(ctx, userID)
	if err != nil {
		logger.Errorf("list offline acks failed, user=%s err=%v", userID, err)
		return
	}
	for i := range acks {
		a := &acks[i]
		err := c.Emit(EventMessageStatus, map[string]any{
			"message_id":   a.MessageID,
			"sender_id":    a.SenderID,
			"recipient_id": a.RecipientID,
			"status":       a.Status,
			"ack_type":     a.AckType,
		})
		if err != nil {
			logger.Warnf("ack replay emit failed, user=%s message=%s err=%v", userID, a.MessageID, err)
			continue
		}
		if err := s.offline.DeleteAcks(ctx, a.SenderID, a.MessageID); err != nil {
			logger.Warnf("ack replay delete failed, user=%s message=%s err=%v", userID, a.MessageID, err)
		}
	}
}

// replayMessages drains the offline message queue in insertion order. A row
// is deleted only after its emit succeeded.
func (s *PresenceService) replayMessages(ctx context.Context, c *WsConn, userID string) {
	msgs, err := s.offline.ListMessages(ctx, userID)
	if err != nil {
		logger.Errorf("list offline messages failed, user=%s err=%v", userID, err)
		return
	}
	for i := range msgs {
		m := &msgs[i]
		err := c.Emit(EventOfflineMessages, map[string]any{
			"sender_id":      m.SenderID,
			"message_id":     m.MessageID,
			"message":        m.MessageBody,
			"type":           m.Type,
			"category":       m.Category,
			"reply_id":       m.ReplyID,
			"file_meta_data": m.FileMetadata,
			"created_at":     m.CreatedAt,
		})
		if err != nil {
			logger.Warnf("offline replay emit failed, user=%s message=%s err=%v", userID, m.MessageID, err)
			continue
		}
		if err := s.offline.DeleteMessage(ctx, m.RecipientID, m.MessageID); err != nil {
			logger.Warnf("offline replay delete failed, user=%s message=%s err=%v", userID, m.MessageID, err)
		}
	}
}
