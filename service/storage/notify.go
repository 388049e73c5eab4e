package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lchat/module/chat/model"
	"lchat/service/mgo"
)

// NotificationStore backs the generic push queue.
type NotificationStore struct{}

func NewNotificationStore() *NotificationStore { return &NotificationStore{} }

// ListRecentPending returns undispatched rows created inside the window,
// oldest first. Older rows are left to age out; pushing a welcome
// notification hours late is worse than not pushing it.
func (s *NotificationStore) ListRecentPending(ctx context.Context, window time.Duration) ([]model.NotificationModel, error) {
	since := time.Now().Add(-window).UnixMilli()
	cur, err := mgo.Coll(model.NotificationTableName).Find(ctx,
		bson.M{"flag": false, "created_at": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list pending notifications")
	}
	var out []model.NotificationModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return out, nil
}

// Delete removes a notification row by id.
func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// ids written by other services may be plain strings
		_, derr := mgo.Coll(model.NotificationTableName).DeleteOne(ctx, bson.M{"_id": id})
		return errors.Wrap(derr, "delete notification")
	}
	_, err = mgo.Coll(model.NotificationTableName).DeleteOne(ctx, bson.M{"_id": oid})
	return errors.Wrap(err, "delete notification")
}
