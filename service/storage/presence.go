package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"lchat/service/storage/redisx"
)

// PresenceRecord is the persisted per-user presence row.
// Invariant kept by the presence service: Online implies ConnID refers to a
// connection the registry currently holds; disconnect clears both.
type PresenceRecord struct {
	UserID     string `json:"user_id"`
	ConnID     string `json:"conn_id"`
	Online     bool   `json:"online"`
	LastActive int64  `json:"last_active"` // unix ms
}

// presence key: chat:info:<user>
func presenceKey(user string) string { return "chat:info:" + user }

// StatusChannel carries presence broadcasts between gateway nodes.
const StatusChannel = "chat:status"

type PresenceStore struct{}

func NewPresenceStore() *PresenceStore { return &PresenceStore{} }

// SetOnline upserts the row with online=true and a fresh last_active.
func (s *PresenceStore) SetOnline(ctx context.Context, userID, connID string) (*PresenceRecord, error) {
	now := time.Now().UnixMilli()
	rec := &PresenceRecord{UserID: userID, ConnID: connID, Online: true, LastActive: now}
	if err := redisx.Get().HSet(ctx, presenceKey(userID), map[string]any{
		"conn_id":     connID,
		"online":      1,
		"last_active": now,
	}).Err(); err != nil {
		return nil, errors.Wrap(err, "presence set online")
	}
	return rec, nil
}

// SetOffline clears the connection reference and stamps last_active.
func (s *PresenceStore) SetOffline(ctx context.Context, userID string) (*PresenceRecord, error) {
	now := time.Now().UnixMilli()
	rec := &PresenceRecord{UserID: userID, ConnID: "", Online: false, LastActive: now}
	if err := redisx.Get().HSet(ctx, presenceKey(userID), map[string]any{
		"conn_id":     "",
		"online":      0,
		"last_active": now,
	}).Err(); err != nil {
		return nil, errors.Wrap(err, "presence set offline")
	}
	return rec, nil
}

// Get re-reads the row. Returns ok=false when the user has never connected.
func (s *PresenceStore) Get(ctx context.Context, userID string) (*PresenceRecord, bool, error) {
	vals, err := redisx.Get().HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "presence get")
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	rec := &PresenceRecord{UserID: userID, ConnID: vals["conn_id"]}
	rec.Online = vals["online"] == "1"
	if v := vals["last_active"]; v != "" {
		if _, err := fmt.Sscanf(v, "%d", &rec.LastActive); err != nil {
			return nil, false, errors.Wrapf(err, "presence last_active %q", v)
		}
	}
	return rec, true, nil
}

// PublishStatus fans the updated row out to the status channel so peers on
// other nodes see it too.
func (s *PresenceStore) PublishStatus(ctx context.Context, rec *PresenceRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "presence marshal")
	}
	return redisx.Get().Publish(ctx, StatusChannel, payload).Err()
}

// SubscribeStatus opens the status channel subscription.
func (s *PresenceStore) SubscribeStatus(ctx context.Context) *redis.PubSub {
	return redisx.Get().Subscribe(ctx, StatusChannel)
}
