package jobs

import (
	"context"
	"time"

	"lchat/logger"
	"lchat/service/push"
)

// GeneralNotificationJob drains the generic notification queue. Rows are
// deleted once a dispatch was attempted, success or not; a notification this
// class is not worth retrying, and rows older than the window age out unsent.
type GeneralNotificationJob struct {
	queue  NotificationQueue
	tokens TokenSource
	pusher Pusher
	secret string
	window time.Duration
}

func NewGeneralNotificationJob(queue NotificationQueue, tokens TokenSource, pusher Pusher, secret string, window time.Duration) *GeneralNotificationJob {
	return &GeneralNotificationJob{queue: queue, tokens: tokens, pusher: pusher, secret: secret, window: window}
}

func (j *GeneralNotificationJob) Cycle(ctx context.Context) error {
	rows, err := j.queue.ListRecentPending(ctx, j.window)
	if err != nil {
		return err
	}
	for i := range rows {
		n := &rows[i]
		j.dispatch(ctx, n.UserID, n.Type, n.Title, n.Message)
		if err := j.queue.Delete(ctx, n.ID); err != nil {
			logger.Warnf("notification delete failed, id=%s err=%v", n.ID, err)
		}
	}
	return nil
}

func (j *GeneralNotificationJob) dispatch(ctx context.Context, userID, msgType, title, message string) {
	enc, err := j.tokens.GetFCMToken(ctx, userID)
	if err != nil {
		logger.Infof("no push token, user=%s err=%v", userID, err)
		return
	}
	token, err := push.DecodeToken(enc, j.secret)
	if err != nil {
		logger.Warnf("push token decode failed, user=%s err=%v", userID, err)
		return
	}
	body := map[string]any{"message": message, "type": msgType}
	if err := j.pusher.Send(ctx, token, msgType, title, body, "-1"); err != nil {
		logger.Warnf("notification push failed, user=%s err=%v", userID, err)
	}
}
