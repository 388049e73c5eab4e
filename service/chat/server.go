package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"lchat/global"
	"lchat/logger"
	"lchat/module/chat/model"
	"lchat/service/media"
	"lchat/tools/errs"
	"lchat/tools/safe"
	"lchat/tools/security"
)

// chunks arrive base64-encoded inside JSON frames
const maxFrameSize = 4 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8 << 10,
	WriteBufferSize: 8 << 10,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandlerFunc processes one inbound frame.
type HandlerFunc func(ctx context.Context, s *Server, c *WsConn, f *Frame)

// Server hosts the websocket endpoint and routes frames to handlers.
type Server struct {
	Manager  *ConnManager
	Pending  *PendingReplies
	Presence *PresenceService
	Delivery *DeliveryService
	Acks     *AckTracker
	Hub      *StatusHub
	Users    UserPort
	Offline  OfflinePort
	Files    *media.Manager
	Thumbs   *media.Manager

	handlers map[string]HandlerFunc
}

func NewServer(manager *ConnManager, pending *PendingReplies, presence *PresenceService,
	delivery *DeliveryService, acks *AckTracker, hub *StatusHub,
	users UserPort, offline OfflinePort, files, thumbs *media.Manager) *Server {
	return &Server{
		Manager:  manager,
		Pending:  pending,
		Presence: presence,
		Delivery: delivery,
		Acks:     acks,
		Hub:      hub,
		Users:    users,
		Offline:  offline,
		Files:    files,
		Thumbs:   thumbs,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers a handler for one client event.
func (s *Server) Handle(event string, h HandlerFunc) {
	s.handlers[event] = h
}

// HandleWS is the gin route for GET /chat: authenticate, upgrade, pump.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	// older clients send error=REFRESH_TOKEN_EXPIRED, newer ones error=1&cause=...
	if c.Query("cause") == "REFRESH_TOKEN_EXPIRED" || c.Query("error") == "REFRESH_TOKEN_EXPIRED" {
		s.handleExpiredRefresh(c)
		return
	}

	userID, err := security.VerifyAccessToken(token, global.Conf.AccessTokenSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authMessage(err)})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("upgrade failed: %v", err)
		return
	}
	conn := s.Manager.Add(ws)
	conn.SetAuthID(userID)
	logger.Infof("connected, user=%s conn=%s", userID, conn.ConnID)
	s.readLoop(conn, ws)
}

// handleExpiredRefresh serves the client that cannot authenticate anymore but
// still carries an undelivered status update: queue the update, then turn the
// handshake away with the refresh error.
func (s *Server) handleExpiredRefresh(c *gin.Context) {
	if raw := c.Query("pending_ack"); raw != "" {
		var a model.OfflineAckModel
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			logger.Warnf("bad pending_ack payload: %v", err)
		} else if a.MessageID != "" && a.SenderID != "" {
			if err := s.Offline.SaveAck(c.Request.Context(), &a); err != nil {
				logger.Errorf("pending_ack save failed: %v", err)
			}
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": errs.ErrRefreshTokenExpired.Msg})
}

// inboundQueueSize bounds frames waiting on a connection's dispatch worker.
// A full queue backpressures the read loop.
const inboundQueueSize = 64

type inbound struct {
	h HandlerFunc
	f *Frame
}

func (s *Server) readLoop(conn *WsConn, ws *websocket.Conn) {
	ws.SetReadLimit(maxFrameSize)
	// frames on one connection run in arrival order, so a chunk upload can
	// never observe its successor's write. Acks are resolved inline below,
	// which keeps a handler blocked on a probe from deadlocking its reply.
	work := make(chan inbound, inboundQueueSize)
	safe.Go("dispatch-"+conn.ConnID, func() {
		s.dispatchLoop(conn, work)
	})
	defer func() {
		close(work)
		conn.Close()
		s.Presence.HandleDisconnect(context.Background(), conn)
		logger.Infof("disconnected, user=%s conn=%s", conn.UserID(), conn.ConnID)
	}()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			logger.Warnf("bad frame, conn=%s err=%v", conn.ConnID, err)
			continue
		}
		if frame.Event == EventAck {
			s.Pending.Resolve(frame.AckID, frame.Data)
			continue
		}
		h, ok := s.handlers[frame.Event]
		if !ok {
			logger.Warnf("unknown event %q, conn=%s", frame.Event, conn.ConnID)
			continue
		}
		work <- inbound{h: h, f: frame}
	}
}

// dispatchLoop drains one connection's frames in order. A panicking handler
// is recovered so the worker keeps serving the connection.
func (s *Server) dispatchLoop(c *WsConn, work <-chan inbound) {
	for in := range work {
		safe.Run("handler-"+in.f.Event, func() {
			in.h(context.Background(), s, c, in.f)
		})
	}
}

// ForwardTyping relays a typing indicator to the recipient, if connected.
// Fire and forget: no queueing, no outcome.
func (s *Server) ForwardTyping(senderID, recipientID string, isTyping bool) {
	peer, ok := s.Manager.Lookup(recipientID)
	if !ok {
		return
	}
	_ = peer.Emit(EventTyping, map[string]any{
		"sender_id":    senderID,
		"recipient_id": recipientID,
		"is_typing":    isTyping,
	})
}

// CleanupMedia removes relayed artifacts once the client has reported on
// them. The gateway is a relay, not long-term storage: by the time a status
// report arrives the recipient either holds the bytes or gave up on them, so
// deletion does not depend on the reported status.
func (s *Server) CleanupMedia(downloadURL, thumbnailURL string) {
	if downloadURL != "" {
		s.Files.RemoveByURL(downloadURL)
	}
	if thumbnailURL != "" {
		s.Thumbs.RemoveByURL(thumbnailURL)
	}
}

// ReportTransferError logs a client-side transfer failure and echoes it on
// the completion channel the uploader already watches.
func (s *Server) ReportTransferError(c *WsConn, fileID, messageID, reason string) {
	logger.Warnf("file transfer failed on client, file=%s message=%s reason=%s", fileID, messageID, reason)
	_ = c.Emit(EventFileTransferCompleted(fileID), map[string]any{
		"status":     StatusUnknownError,
		"file_id":    fileID,
		"message_id": messageID,
	})
}

func authMessage(err error) string {
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return errs.ErrInvalidToken.Msg
}
