package jobs

import (
	"context"

	"lchat/logger"
	"lchat/module/chat/model"
	"lchat/service/push"
)

// OfflineMessageJob pushes queued chat messages to recipients' devices.
// Unlike the notification queue, rows here are the durable delivery record:
// a row is deleted only after its push went out, and recipients without a
// registered token keep their rows for connection replay.
type OfflineMessageJob struct {
	queue  MessageQueue
	tokens TokenSource
	pusher Pusher
	secret string
}

func NewOfflineMessageJob(queue MessageQueue, tokens TokenSource, pusher Pusher, secret string) *OfflineMessageJob {
	return &OfflineMessageJob{queue: queue, tokens: tokens, pusher: pusher, secret: secret}
}

func (j *OfflineMessageJob) Cycle(ctx context.Context) error {
	msgs, err := j.queue.ListAllMessages(ctx)
	if err != nil {
		return err
	}
	for i := range msgs {
		m := &msgs[i]
		if !j.dispatch(ctx, m) {
			continue
		}
		if err := j.queue.DeleteMessage(ctx, m.RecipientID, m.MessageID); err != nil {
			logger.Warnf("offline message delete failed, recipient=%s message=%s err=%v", m.RecipientID, m.MessageID, err)
		}
	}
	return nil
}

func (j *OfflineMessageJob) dispatch(ctx context.Context, m *model.OfflineMessageModel) bool {
	enc, err := j.tokens.GetFCMToken(ctx, m.RecipientID)
	if err != nil {
		// no token registered; the row stays for socket replay
		return false
	}
	token, err := push.DecodeToken(enc, j.secret)
	if err != nil {
		logger.Warnf("push token decode failed, user=%s err=%v", m.RecipientID, err)
		return false
	}
	body := map[string]any{
		"sender_id":      m.SenderID,
		"message_id":     m.MessageID,
		"message":        m.MessageBody,
		"type":           m.Type,
		"category":       m.Category,
		"reply_id":       m.ReplyID,
		"file_meta_data": m.FileMetadata,
		"created_at":     m.CreatedAt,
	}
	title := "You got messages from " + m.SenderID
	if err := j.pusher.Send(ctx, token, "chat_message", title, body, m.MessageID); err != nil {
		logger.Warnf("offline message push failed, recipient=%s message=%s err=%v", m.RecipientID, m.MessageID, err)
		return false
	}
	return true
}
