package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cfg "SGateway/global/config"
	"SGateway/logger"
	"SGateway/service/gateway"
	"SGateway/service/notify"
	"SGateway/service/storage"
	"SGateway/service/verify"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg.ConfigAll()
	app := cfg.Global

	var store storage.PresenceStore = storage.NopPresence{}
	if err := storage.InitRedis(storage.Config{
		Addr:     app.RedisAddr,
		Password: app.RedisPassword,
		DB:       app.RedisDB,
	}); err != nil {
		logger.Warnf("[boot] redis unavailable, presence writes disabled: %v", err)
	} else {
		store = storage.NewRedisPresence(app.NodeID, app.PresenceTTL)
	}

	var emitter notify.Emitter = notify.NopEmitter{}
	if len(app.NatsServers) > 0 {
		e, err := notify.NewNatsEmitter(notify.NatsConfig{
			Servers: app.NatsServers,
			Name:    app.NodeID,
		})
		if err != nil {
			logger.Warnf("[boot] nats unavailable, collaborator events disabled: %v", err)
		} else {
			emitter = e
		}
	}

	verifier := verify.NewJWTVerifier(verify.DefaultOptions(cfg.GetJwtSecret()))

	srv := gateway.NewServer(gateway.Conf{
		NodeID:        app.NodeID,
		AuthTimeout:   app.AuthTimeout,
		SendQueueSize: app.SendQueueSize,
		FanoutWorkers: app.FanoutWorkers,
		FanoutQueue:   app.FanoutQueue,
		MaxPerUser:    app.MaxPerUser,
		WriteWait:     app.WriteWait,
		PongWait:      app.PongWait,
	}, verifier, store, emitter)
	defer srv.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	srv.RegisterRoutes(r)

	go func() {
		addr := fmt.Sprintf(":%d", app.Port)
		logger.Infof("[boot] gateway %s listening on %s", app.NodeID, addr)
		if err := r.Run(addr); err != nil {
			logger.Errorf("[boot] http server exited: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("[boot] shutting down")
}
