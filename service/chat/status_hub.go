package chat

import (
	"context"
	"encoding/json"
	"sync"

	"lchat/logger"
	"lchat/service/storage"
)

// StatusHub tracks which connections watch which users' presence. Delivery
// runs off the redis status channel only: a node publishes its own presence
// changes and the bridge fans them out to local watchers, so one path serves
// both local and cross-node updates.
type StatusHub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*WsConn  // watched user -> conn id -> conn
	byConn map[string]map[string]struct{} // conn id -> watched users
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		subs:   make(map[string]map[string]*WsConn),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds the connection as a watcher of each listed user.
func (h *StatusHub) Subscribe(c *WsConn, userIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watched := h.byConn[c.ConnID]
	if watched == nil {
		watched = make(map[string]struct{})
		h.byConn[c.ConnID] = watched
	}
	for _, id := range userIDs {
		group := h.subs[id]
		if group == nil {
			group = make(map[string]*WsConn)
			h.subs[id] = group
		}
		group[c.ConnID] = c
		watched[id] = struct{}{}
	}
}

// Unsubscribe drops every watch the connection holds. Called on teardown.
func (h *StatusHub) Unsubscribe(c *WsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.byConn[c.ConnID] {
		if group := h.subs[id]; group != nil {
			delete(group, c.ConnID)
			if len(group) == 0 {
				delete(h.subs, id)
			}
		}
	}
	delete(h.byConn, c.ConnID)
}

// BroadcastToWatchers emits event/data to every connection watching userID.
func (h *StatusHub) BroadcastToWatchers(userID, event string, data any) {
	h.mu.RLock()
	conns := make([]*WsConn, 0, len(h.subs[userID]))
	for _, c := range h.subs[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if err := c.Emit(event, data); err != nil {
			logger.Warnf("status broadcast failed, conn=%s err=%v", c.ConnID, err)
		}
	}
}

// RunBridge consumes the redis status channel and fans records out locally.
func (h *StatusHub) RunBridge(ctx context.Context, store *storage.PresenceStore) {
	sub := store.SubscribeStatus(ctx)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rec storage.PresenceRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				logger.Warnf("bad status payload: %v", err)
				continue
			}
			h.BroadcastToWatchers(rec.UserID, EventOnlineStatus(rec.UserID), statusPayload(&rec))
		}
	}
}
