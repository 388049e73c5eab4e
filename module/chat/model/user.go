package model

const (
	UserTableName     = "users"
	FCMTokenTableName = "fcm_tokens"
)

const AccountStatusDeactivated = "deactivated"

// UserModel mirrors the profile row the protocol layer reads. The account
// service owns writes; this process only ever queries it.
type UserModel struct {
	UserID            string  `bson:"user_id"`
	FirstName         string  `bson:"first_name"`
	LastName          string  `bson:"last_name"`
	About             string  `bson:"about"`
	Email             string  `bson:"email"`
	IsEmailVerified   bool    `bson:"is_email_verified"`
	AccountStatus     string  `bson:"account_status"` // "active" | "deactivated"
	AccountType       string  `bson:"account_type"`
	ProfilePicURL     string  `bson:"profile_pic_url"`       // relative, prefix with ProfileBaseURL
	ProfilePicURL96   string  `bson:"profile_pic_url_96x96"` // relative
	Latitude          float64 `bson:"latitude"`
	Longitude         float64 `bson:"longitude"`
	Geo               string  `bson:"geo"`
	LocationType      string  `bson:"location_type"`
	LocationUpdatedAt int64   `bson:"location_updated_at"` // unix ms
	CreatedAt         int64   `bson:"created_at"`          // unix ms
	UpdatedAt         int64   `bson:"updated_at"`          // unix ms
}

func (UserModel) TableName() string { return UserTableName }

func (u *UserModel) Deactivated() bool {
	return u.AccountStatus == AccountStatusDeactivated
}

// FCMTokenModel stores the encrypted push registration token per user
// (AES-CBC, hex iv:ciphertext; see service/push).
type FCMTokenModel struct {
	UserID   string `bson:"user_id"`
	FCMToken string `bson:"fcm_token"`
}

func (FCMTokenModel) TableName() string { return FCMTokenTableName }
