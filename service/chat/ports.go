package chat

import (
	"context"
	"time"

	"lchat/module/chat/model"
	"lchat/service/storage"
)

// Peer is one live client connection as the services see it.
type Peer interface {
	Emit(event string, data any) error
	Request(ctx context.Context, event string, data any, timeout time.Duration) ProbeResult
}

// Registry routes a user id to its live connection.
type Registry interface {
	Lookup(userID string) (Peer, bool)
}

// ManagerRegistry adapts the ConnManager to the Registry port.
type ManagerRegistry struct{ M *ConnManager }

func (r ManagerRegistry) Lookup(userID string) (Peer, bool) {
	c, ok := r.M.Lookup(userID)
	if !ok {
		return nil, false
	}
	return c, true
}

// PresencePort is the persisted presence row store.
type PresencePort interface {
	SetOnline(ctx context.Context, userID, connID string) (*storage.PresenceRecord, error)
	SetOffline(ctx context.Context, userID string) (*storage.PresenceRecord, error)
	Get(ctx context.Context, userID string) (*storage.PresenceRecord, bool, error)
	PublishStatus(ctx context.Context, rec *storage.PresenceRecord) error
}

// UserPort reads account and key rows.
type UserPort interface {
	GetUser(ctx context.Context, userID string) (*model.UserModel, error)
	GetPublicKey(ctx context.Context, userID string) (*model.PublicKeyModel, error)
}

// OfflinePort is the durable message and ack queue.
type OfflinePort interface {
	SaveMessage(ctx context.Context, m *model.OfflineMessageModel) error
	ListMessages(ctx context.Context, recipientID string) ([]model.OfflineMessageModel, error)
	DeleteMessage(ctx context.Context, recipientID, messageID string) error
	SaveAck(ctx context.Context, a *model.OfflineAckModel) error
	ListAcks(ctx context.Context, senderID string) ([]model.OfflineAckModel, error)
	DeleteAcks(ctx context.Context, senderID, messageID string) error
}
