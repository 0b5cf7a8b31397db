package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"PChat/global"
	"PChat/global/config"
	"PChat/logger"
	mid "PChat/middleware"
	midsec "PChat/middleware/security"
	"PChat/module/message"
	"PChat/module/user"
	userservice "PChat/module/user/service"
	"PChat/service/chat"
	"PChat/service/storage"
	"PChat/tools/safe"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxImageRef bounds inline data-uri images.
const maxImageRef = 8 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		return
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.AppConfig) error {
	global.ConfigIds(cfg)

	stores, closeStores, err := global.ConfigStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	mirror, closeRedis, err := global.ConfigRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	producer, closeNats, err := global.ConfigNats(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNats()

	jwtOpts := security.DefaultOptions(cfg.GetJwtSecret())
	jwtOpts.TTL = cfg.JWTTTL

	var events userservice.EventPublisher
	if producer != nil {
		events = producer
	}
	users := userservice.NewUserService(stores.Users, jwtOpts, events)

	var sink chat.PresenceSink
	if mirror != nil {
		sink = mirror
	}
	rt := chat.NewServer(users, sink, chat.Options{
		SendQueue:    cfg.WS.SendQueue,
		PingInterval: cfg.WS.PingInterval,
		PongWait:     cfg.WS.PongWait,
		WriteWait:    cfg.WS.WriteWait,
		CheckOrigin: func(r *http.Request) bool {
			return mid.OriginAllowed(cfg.ClientURLs, r.Header.Get("Origin"))
		},
	})
	safe.Go("presence-mirror", func() { rt.Run(ctx) })

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	mgr := mid.NewManager()
	mgr.Add(mid.Recovery(), mid.AccessLog(), mid.Origin(cfg.ClientURLs))
	engine.Use(mgr.Use())

	images := storage.PassthroughImages{MaxLen: maxImageRef}
	router := mid.NewRouter(engine, midsec.Middleware(users, nil))
	user.NewHandler(users, images, user.CookieConfig{Secure: cfg.CookieSecure}).RegisterRoutes(router)
	message.NewHandler(stores.Messages, users, images, rt.Relay()).RegisterRoutes(router)
	router.GET("/api/presence", rt.HandlePresence, mid.RouteOpt{IsAuth: true})
	engine.GET("/ws", rt.HandleWS)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt.Shutdown()
	return srv.Shutdown(shutdownCtx)
}
