package storage

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lchat/module/chat/model"
	"lchat/service/mgo"
)

// OfflineStore owns the two durable queues the protocol layer and the push
// workers hand rows through: offline_messages (deduped by natural key) and
// offline_acks (duplicates allowed).
type OfflineStore struct{}

func NewOfflineStore() *OfflineStore { return &OfflineStore{} }

// SaveMessage enqueues one message for an unreachable recipient. Upsert on
// (recipient_id, message_id): retried sends while the recipient stays offline
// never produce a second row, and created_at keeps the first insertion time so
// replay order is stable.
func (s *OfflineStore) SaveMessage(ctx context.Context, m *model.OfflineMessageModel) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	filter := bson.M{"recipient_id": m.RecipientID, "message_id": m.MessageID}
	update := bson.M{
		"$set": bson.M{
			"sender_id":      m.SenderID,
			"message_body":   m.MessageBody,
			"type":           m.Type,
			"category":       m.Category,
			"reply_id":       m.ReplyID,
			"file_meta_data": m.FileMetadata,
		},
		"$setOnInsert": bson.M{
			"recipient_id": m.RecipientID,
			"message_id":   m.MessageID,
			"created_at":   m.CreatedAt,
		},
	}
	_, err := mgo.Coll(model.OfflineMessageTableName).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return errors.Wrap(err, "save offline message")
}

// ListMessages returns a recipient's queue in insertion order.
func (s *OfflineStore) ListMessages(ctx context.Context, recipientID string) ([]model.OfflineMessageModel, error) {
	cur, err := mgo.Coll(model.OfflineMessageTableName).Find(ctx,
		bson.M{"recipient_id": recipientID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list offline messages")
	}
	var out []model.OfflineMessageModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode offline messages")
	}
	return out, nil
}

// ListAllMessages returns every queued message oldest first, for the push worker.
func (s *OfflineStore) ListAllMessages(ctx context.Context) ([]model.OfflineMessageModel, error) {
	cur, err := mgo.Coll(model.OfflineMessageTableName).Find(ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list all offline messages")
	}
	var out []model.OfflineMessageModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode offline messages")
	}
	return out, nil
}

// DeleteMessage removes one queue row by natural key.
func (s *OfflineStore) DeleteMessage(ctx context.Context, recipientID, messageID string) error {
	_, err := mgo.Coll(model.OfflineMessageTableName).
		DeleteOne(ctx, bson.M{"recipient_id": recipientID, "message_id": messageID})
	return errors.Wrap(err, "delete offline message")
}

// SaveAck enqueues a status update for an unreachable sender. Plain insert:
// duplicate acks are allowed by the protocol.
func (s *OfflineStore) SaveAck(ctx context.Context, a *model.OfflineAckModel) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	_, err := mgo.Coll(model.OfflineAckTableName).InsertOne(ctx, a)
	return errors.Wrap(err, "save offline ack")
}

// ListAcks returns the pending acks targeting sender, SENT first, then
// DELIVERED, then the rest; creation order within each class.
func (s *OfflineStore) ListAcks(ctx context.Context, senderID string) ([]model.OfflineAckModel, error) {
	cur, err := mgo.Coll(model.OfflineAckTableName).Find(ctx,
		bson.M{"sender_id": senderID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list offline acks")
	}
	var out []model.OfflineAckModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode offline acks")
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ackRank(out[i].Status) < ackRank(out[j].Status)
	})
	return out, nil
}

func ackRank(status string) int {
	switch status {
	case model.AckStatusSent:
		return 1
	case model.AckStatusDelivered:
		return 2
	default:
		return 3
	}
}

// DeleteAcks removes every queued ack for (sender_id, message_id); replay
// deletes by that pair, which also clears duplicates in one pass.
func (s *OfflineStore) DeleteAcks(ctx context.Context, senderID, messageID string) error {
	_, err := mgo.Coll(model.OfflineAckTableName).
		DeleteMany(ctx, bson.M{"sender_id": senderID, "message_id": messageID})
	return errors.Wrap(err, "delete offline acks")
}
