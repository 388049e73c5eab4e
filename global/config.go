package global

import (
	"os"
	"strconv"
	"time"
)

// AppConfig carries everything the gateway reads at startup. All values come
// from the environment with workable local defaults, same as the rest of our
// services.
type AppConfig struct {
	NodeID   string
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	// media storage + public URL mapping
	MediaRootPath  string
	MediaBaseURL   string
	ProfileBaseURL string

	AccessTokenSecret string
	FCMTokenSecret    string
	FCMSendURL        string
	FCMTokenURL       string
	FCMServiceAccount string // path to the service account json

	// protocol tunables
	ProbeTimeout       time.Duration // liveness probe / ack propagation window
	HeartbeatWindow    time.Duration // idle connections past this are force closed
	OfflineSettleDelay time.Duration // simulated latency before offline-queued sends resolve
	PollInterval       time.Duration // notification worker cycle
}

var Conf AppConfig

// Load reads the environment once. Call before anything else in main.
func Load() {
	Conf = AppConfig{
		NodeID:   envStr("CHAT_NODE_ID", "chat_gw-1"),
		HTTPAddr: envStr("CHAT_HTTP_ADDR", ":3080"),

		RedisAddr:     envStr("CHAT_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("CHAT_REDIS_PASSWORD"),
		RedisDB:       envInt("CHAT_REDIS_DB", 0),

		MongoURI: envStr("CHAT_MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:  envStr("CHAT_MONGO_DB", "chat"),

		MediaRootPath:  envStr("CHAT_MEDIA_ROOT", "/var/lib/chat/media"),
		MediaBaseURL:   envStr("CHAT_MEDIA_BASE_URL", "https://media.lts360.com"),
		ProfileBaseURL: envStr("CHAT_PROFILE_BASE_URL", "https://static.lts360.com"),

		AccessTokenSecret: envStr("CHAT_ACCESS_TOKEN_SECRET", "dev-secret"),
		FCMTokenSecret:    envStr("CHAT_FCM_TOKEN_SECRET", "dev-fcm-secret"),
		FCMSendURL:        envStr("CHAT_FCM_SEND_URL", "https://fcm.googleapis.com/v1/projects/lts360/messages:send"),
		FCMTokenURL:       envStr("CHAT_FCM_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		FCMServiceAccount: envStr("CHAT_FCM_SERVICE_ACCOUNT", "service_account.json"),

		ProbeTimeout:       envDur("CHAT_PROBE_TIMEOUT", 5*time.Second),
		HeartbeatWindow:    envDur("CHAT_HEARTBEAT_WINDOW", 10*time.Second),
		OfflineSettleDelay: envDur("CHAT_OFFLINE_SETTLE_DELAY", 500*time.Millisecond),
		PollInterval:       envDur("CHAT_POLL_INTERVAL", 2*time.Second),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
