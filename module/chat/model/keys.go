package model

const PublicKeyTableName = "e2ee_public_keys"

// PublicKeyModel is the latest end-to-end key material for a user. key_version
// is a monotonic counter; a sender claiming an older version gets KEY_ERROR
// with this row so it can re-encrypt. Read-only for this service.
type PublicKeyModel struct {
	UserID             string `bson:"user_id"`
	EncryptedPublicKey string `bson:"encrypted_public_key"`
	KeyVersion         int64  `bson:"key_version"`
}

func (PublicKeyModel) TableName() string { return PublicKeyTableName }
