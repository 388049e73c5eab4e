package model

const NotificationTableName = "notifications"

// NotificationModel is one generic (non-chat) push waiting for dispatch.
// Rows are deleted on dispatch attempt regardless of outcome so a malformed
// row cannot be redelivered forever.
type NotificationModel struct {
	ID        string `bson:"_id,omitempty"`
	UserID    string `bson:"user_id"`
	Title     string `bson:"title"`
	Message   string `bson:"message"`
	Type      string `bson:"type"`
	Flag      bool   `bson:"flag"`       // true once a dispatch was attempted
	CreatedAt int64  `bson:"created_at"` // unix ms
}

func (NotificationModel) TableName() string { return NotificationTableName }
