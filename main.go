package main

import (
	"context"
	"hash/fnv"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lchat/global"
	"lchat/logger"
	"lchat/service/chat"
	"lchat/service/chat/handlers"
	"lchat/service/jobs"
	"lchat/service/media"
	"lchat/service/mgo"
	"lchat/service/push"
	"lchat/service/storage"
	"lchat/service/storage/redisx"
	"lchat/tools/ids"
	"lchat/tools/safe"
)

func main() {
	global.Load()
	ids.SetNodeID(nodeID(global.Conf.NodeID))

	if err := redisx.Init(redisx.Config{
		Addr:     global.Conf.RedisAddr,
		Password: global.Conf.RedisPassword,
		DB:       global.Conf.RedisDB,
	}); err != nil {
		logger.Errorf("redis init failed: %v", err)
		return
	}
	defer redisx.Close()

	if err := mgo.Init(mgo.Config{
		URI:      global.Conf.MongoURI,
		Database: global.Conf.MongoDB,
	}); err != nil {
		logger.Errorf("mongo init failed: %v", err)
		return
	}
	defer mgo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	presenceStore := storage.NewPresenceStore()
	offlineStore := storage.NewOfflineStore()
	userStore := storage.NewUserStore()
	notifyStore := storage.NewNotificationStore()

	files := media.NewFileManager(global.Conf.MediaRootPath, global.Conf.MediaBaseURL)
	thumbs := media.NewThumbnailManager(global.Conf.MediaRootPath, global.Conf.MediaBaseURL, files)

	pending := chat.NewPendingReplies()
	manager := chat.NewConnManager(pending, global.Conf.HeartbeatWindow)
	registry := chat.ManagerRegistry{M: manager}
	hub := chat.NewStatusHub()

	presence := chat.NewPresenceService(manager, presenceStore, userStore, offlineStore, hub)
	delivery := chat.NewDeliveryService(registry, presenceStore, userStore, offlineStore,
		global.Conf.ProbeTimeout, global.Conf.OfflineSettleDelay)
	acks := chat.NewAckTracker(registry, presenceStore, offlineStore, global.Conf.ProbeTimeout)

	server := chat.NewServer(manager, pending, presence, delivery, acks, hub,
		userStore, offlineStore, files, thumbs)
	handlers.Register(server)

	safe.Go("conn-sweeper", func() { manager.RunSweeper(ctx) })
	safe.Go("status-bridge", func() { hub.RunBridge(ctx, presenceStore) })

	startPushWorkers(ctx, userStore, offlineStore, notifyStore)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/chat", server.HandleWS)

	logger.Infof("gateway listening, addr=%s node=%s", global.Conf.HTTPAddr, global.Conf.NodeID)
	if err := r.Run(global.Conf.HTTPAddr); err != nil {
		logger.Errorf("http server stopped: %v", err)
	}
}

// startPushWorkers wires the FCM poll jobs. A missing or unreadable service
// account disables push entirely; the socket path does not depend on it.
func startPushWorkers(ctx context.Context, users *storage.UserStore, offline *storage.OfflineStore, notify *storage.NotificationStore) {
	sa, err := push.LoadServiceAccount(global.Conf.FCMServiceAccount)
	if err != nil {
		logger.Warnf("push disabled: %v", err)
		return
	}
	client, err := push.NewClient(sa, global.Conf.FCMSendURL, global.Conf.FCMTokenURL)
	if err != nil {
		logger.Warnf("push disabled: %v", err)
		return
	}

	notifyJob := jobs.NewGeneralNotificationJob(notify, users, client, global.Conf.FCMTokenSecret, 5*time.Minute)
	messageJob := jobs.NewOfflineMessageJob(offline, users, client, global.Conf.FCMTokenSecret)

	notifyWorker := jobs.NewWorker("general-notifications", global.Conf.PollInterval, notifyJob.Cycle)
	messageWorker := jobs.NewWorker("offline-messages", global.Conf.PollInterval, messageJob.Cycle)

	safe.Go("worker-general-notifications", func() { notifyWorker.Run(ctx) })
	safe.Go("worker-offline-messages", func() { messageWorker.Run(ctx) })
}

// nodeID folds the configured node name into the snowflake node space.
func nodeID(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32() % 1024)
}
