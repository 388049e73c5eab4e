package model

const (
	OfflineMessageTableName = "offline_messages"
	OfflineAckTableName     = "offline_acks"
)

// Ack status values. Replay order on reconnect is SENT, then DELIVERED,
// then everything else.
const (
	AckStatusSent      = "SENT"
	AckStatusDelivered = "DELIVERED"
)

// Ack origin: "self" is a status echo back to the author (e.g. message
// reached storage), "recipient" is a receipt originated by the other side.
const (
	AckTypeSelf      = "self"
	AckTypeRecipient = "recipient"
)

// OfflineMessageModel is one queued message for an unreachable recipient.
// (recipient_id, message_id) is the natural key; writes are upserts so a
// retried send never produces a second row.
type OfflineMessageModel struct {
	RecipientID  string `bson:"recipient_id" json:"recipient_id"`
	SenderID     string `bson:"sender_id" json:"sender_id"`
	MessageID    string `bson:"message_id" json:"message_id"`
	MessageBody  string `bson:"message_body" json:"message_body"` // opaque ciphertext
	Type         string `bson:"type" json:"type"`
	Category     string `bson:"category" json:"category"`
	ReplyID      string `bson:"reply_id" json:"reply_id"`
	FileMetadata string `bson:"file_meta_data,omitempty" json:"file_meta_data,omitempty"` // JSON string, media sends only
	CreatedAt    int64  `bson:"created_at" json:"created_at"`                             // unix ms, drives replay + push order
}

func (OfflineMessageModel) TableName() string { return OfflineMessageTableName }

// OfflineAckModel is a queued delivery/read status for an unreachable sender.
// Duplicates are allowed; only the offline message queue dedupes.
type OfflineAckModel struct {
	MessageID   string `bson:"message_id" json:"message_id"`
	SenderID    string `bson:"sender_id" json:"sender_id"` // the ack's target
	RecipientID string `bson:"recipient_id" json:"recipient_id"`
	Status      string `bson:"status" json:"status"`     // SENT | DELIVERED
	AckType     string `bson:"ack_type" json:"ack_type"` // self | recipient
	CreatedAt   int64  `bson:"created_at" json:"created_at"`
}

func (OfflineAckModel) TableName() string { return OfflineAckTableName }
