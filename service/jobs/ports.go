package jobs

import (
	"context"
	"time"

	"lchat/module/chat/model"
)

// Pusher sends one data push, splitting oversized payloads internally.
type Pusher interface {
	Send(ctx context.Context, deviceToken, msgType, title string, body any, messageID string) error
}

// TokenSource resolves a user's stored (encrypted) push token.
type TokenSource interface {
	GetFCMToken(ctx context.Context, userID string) (string, error)
}

// NotificationQueue is the generic notification backlog.
type NotificationQueue interface {
	ListRecentPending(ctx context.Context, window time.Duration) ([]model.NotificationModel, error)
	Delete(ctx context.Context, id string) error
}

// MessageQueue exposes the offline message rows the push worker drains.
type MessageQueue interface {
	ListAllMessages(ctx context.Context) ([]model.OfflineMessageModel, error)
	DeleteMessage(ctx context.Context, recipientID, messageID string) error
}
