package handlers

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"

	"lchat/logger"
	"lchat/service/chat"
	"lchat/service/media"
	"lchat/tools/decode"
	"lchat/tools/errs"
)

func handleStartFileTransfer(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	startTransfer(ctx, s, c, f, s.Files, chat.EventFileTransferCompleted, chat.StatusFileAlreadyComplete)
}

func handleStartThumbnailTransfer(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	startTransfer(ctx, s, c, f, s.Thumbs, chat.EventThumbnailTransferCompleted, chat.StatusThumbnailAlreadyComplete)
}

// startTransfer opens or resumes a session after the same recipient gates a
// plain message send runs. The reply carries the chunk count already on disk
// so the client knows where to resume.
func startTransfer(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame,
	mgr *media.Manager, completedEvent func(string) string, alreadyComplete string) {
	meta, err := decode.Payload[media.Meta](f.Data)
	if err != nil {
		logger.Warnf("bad transfer start payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	meta.SenderID = c.UserID()
	if gate := s.Delivery.ValidateRecipient(ctx, meta.RecipientID, meta.KeyVersion); gate != nil {
		gate.MessageID = meta.MessageID
		reply(c, f, gate)
		return
	}
	st, err := mgr.Start(*meta)
	if err != nil {
		logger.Errorf("transfer start failed, file=%s err=%v", meta.FileID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	if st.AlreadyComplete {
		emit(c, completedEvent(meta.FileID), map[string]any{
			"status":     alreadyComplete,
			"file_id":    meta.FileID,
			"message_id": meta.MessageID,
		})
	}
	reply(c, f, map[string]any{
		"status":          chat.StatusSuccess,
		"received_chunks": st.ReceivedChunks,
	})
}

type chunkPayload struct {
	FileID     string `json:"file_id"`
	ChunkIndex int    `json:"chunk_index"`
	ByteOffset int64  `json:"byte_offset"`
	Data       string `json:"data"` // base64
}

func handleSendFileChunk(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	writeChunk(ctx, s, c, f, s.Files, chat.EventChunkAck, chat.EventFileTransferCompleted, chat.StatusFileTransferCompleted)
}

func handleSendThumbnailChunk(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	writeChunk(ctx, s, c, f, s.Thumbs, chat.EventThumbnailChunkAck, chat.EventThumbnailTransferCompleted, chat.StatusThumbnailCompleted)
}

func writeChunk(_ context.Context, _ *chat.Server, c *chat.WsConn, f *chat.Frame,
	mgr *media.Manager, ackEvent func(string, int) string, completedEvent func(string) string, completed string) {
	p, err := decode.Payload[chunkPayload](f.Data)
	if err != nil {
		logger.Warnf("bad chunk payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	blob, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		logger.Warnf("bad chunk encoding, file=%s index=%d err=%v", p.FileID, p.ChunkIndex, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	res, err := mgr.WriteChunk(p.FileID, p.ByteOffset, blob)
	if err != nil {
		if errors.Is(err, &errs.ErrTransferNotFound) {
			replyErr(c, f, chat.StatusTransferNotFound)
			return
		}
		logger.Errorf("chunk write failed, file=%s index=%d err=%v", p.FileID, p.ChunkIndex, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	ack := map[string]any{
		"status":          chat.StatusSuccess,
		"message_id":      res.Meta.MessageID,
		"file_size":       res.UpdatedSize,
		"received_chunks": res.ReceivedChunks,
	}
	emit(c, ackEvent(p.FileID, p.ChunkIndex), ack)
	reply(c, f, ack)
	if res.Complete {
		emit(c, completedEvent(p.FileID), map[string]any{
			"status":     completed,
			"file_id":    p.FileID,
			"message_id": res.Meta.MessageID,
		})
	}
}

type transferErrorPayload struct {
	FileID    string `json:"file_id"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// handleFileTransferError is the client reporting it gave up on an upload.
func handleFileTransferError(_ context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[transferErrorPayload](f.Data)
	if err != nil {
		logger.Warnf("bad transfer error payload, conn=%s err=%v", c.ConnID, err)
		return
	}
	s.ReportTransferError(c, p.FileID, p.MessageID, p.Error)
}

func emit(c *chat.WsConn, event string, data any) {
	if err := c.Emit(event, data); err != nil {
		logger.Warnf("emit failed, conn=%s event=%s err=%v", c.ConnID, event, err)
	}
}
