package handlers

import (
	"context"
	"encoding/json"

	"lchat/logger"
	"lchat/module/chat/model"
	"lchat/service/chat"
	"lchat/tools/decode"
)

type sendMediaPayload struct {
	RecipientID   string `json:"recipient_id"`
	MessageID     string `json:"message_id"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	ReplyID       string `json:"reply_id"`
	KeyVersion    int64  `json:"key_version"`
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name"`
	ContentType   string `json:"content_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TotalDuration int    `json:"total_duration"`
}

// handleSendMedia finalizes a completed file transfer into a chat message.
// The file metadata is built from what is actually on disk, not from client
// claims.
func handleSendMedia(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	sendMedia(ctx, s, c, f, false)
}

// handleSendVisualMedia is the image/video variant: the metadata additionally
// carries dimensions, duration and the thumbnail.
func handleSendVisualMedia(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	sendMedia(ctx, s, c, f, true)
}

func sendMedia(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame, visual bool) {
	p, err := decode.Payload[sendMediaPayload](f.Data)
	if err != nil {
		logger.Warnf("bad sendMedia payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	size, err := s.Files.Stat(p.RecipientID, p.FileID, p.FileName)
	if err != nil {
		logger.Warnf("media not on disk, file=%s err=%v", p.FileID, err)
		replyErr(c, f, chat.StatusTransferNotFound)
		return
	}
	meta := map[string]any{
		"file_id":      p.FileID,
		"file_name":    p.FileName,
		"content_type": p.ContentType,
		"file_size":    size,
		"download_url": s.Files.URL(p.RecipientID, p.FileID, p.FileName),
	}
	if visual {
		meta["width"] = p.Width
		meta["height"] = p.Height
		meta["total_duration"] = p.TotalDuration
		if tsize, err := s.Thumbs.Stat(p.RecipientID, p.FileID, p.FileName); err == nil {
			meta["thumbnail_size"] = tsize
			meta["thumbnail_url"] = s.Thumbs.URL(p.RecipientID, p.FileID, p.FileName)
		}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		replyErr(c, f, chat.StatusUnknownError)
		return
	}

	msg := &chat.ChatMessage{
		SenderID:     c.UserID(),
		RecipientID:  p.RecipientID,
		MessageID:    p.MessageID,
		Body:         p.Message,
		Type:         p.Type,
		Category:     p.Category,
		ReplyID:      p.ReplyID,
		KeyVersion:   p.KeyVersion,
		FileMetadata: string(metaJSON),
	}
	out := s.Delivery.Send(ctx, msg)
	if out.Status == chat.StatusSuccess {
		err := s.Acks.Acknowledge(ctx, &chat.Ack{
			MessageID:   p.MessageID,
			SenderID:    c.UserID(),
			RecipientID: p.RecipientID,
			Status:      model.AckStatusSent,
			AckType:     model.AckTypeSelf,
		})
		if err != nil {
			logger.Errorf("self ack failed, message=%s err=%v", p.MessageID, err)
		}
	}
	reply(c, f, out)
}

type mediaStatusPayload struct {
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// handleMediaStatus is the client's verdict on a finished upload. Either way
// the relay is done with the artifacts, so they come off disk.
func handleMediaStatus(_ context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[mediaStatusPayload](f.Data)
	if err != nil {
		logger.Warnf("bad mediaStatus payload, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	logger.Infof("media status %q, conn=%s", p.Status, c.ConnID)
	s.CleanupMedia(p.DownloadURL, p.ThumbnailURL)
	reply(c, f, map[string]any{"status": chat.StatusSuccess})
}
