package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"lchat/module/chat/model"
	"lchat/service/mgo"
	"lchat/tools/errs"
)

// UserStore reads the account, key and push-token rows owned by the account
// service. Everything here is read-only.
type UserStore struct{}

func NewUserStore() *UserStore { return &UserStore{} }

func (s *UserStore) GetUser(ctx context.Context, userID string) (*model.UserModel, error) {
	var u model.UserModel
	err := mgo.Coll(model.UserTableName).FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &errs.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (s *UserStore) GetPublicKey(ctx context.Context, userID string) (*model.PublicKeyModel, error) {
	var k model.PublicKeyModel
	err := mgo.Coll(model.PublicKeyTableName).FindOne(ctx, bson.M{"user_id": userID}).Decode(&k)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &errs.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get public key")
	}
	return &k, nil
}

// GetFCMToken returns the user's encrypted push registration token, or
// ErrRecordNotFound when none is registered.
func (s *UserStore) GetFCMToken(ctx context.Context, userID string) (string, error) {
	var t model.FCMTokenModel
	err := mgo.Coll(model.FCMTokenTableName).FindOne(ctx, bson.M{"user_id": userID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", &errs.ErrRecordNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "get fcm token")
	}
	return t.FCMToken, nil
}
