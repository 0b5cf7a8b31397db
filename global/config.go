package global

import (
	"context"
	"encoding/json"
	"time"

	"PChat/data/database/mgo/mongoutil"
	"PChat/data/database/pg"
	"PChat/global/config"
	"PChat/logger"
	msgstore "PChat/module/message/store"
	userservice "PChat/module/user/service"
	userstore "PChat/module/user/store"
	"PChat/service/natsx"
	"PChat/service/storage"
	redisx "PChat/service/storage/redis"
	"PChat/tools/errs"
	"PChat/tools/ids"

	"go.uber.org/zap"
)

// Closer releases whatever a Config* function opened.
type Closer func()

func noop() {}

func ConfigIds(cfg config.AppConfig) {
	ids.SetNodeID(cfg.NodeID)
}

type Stores struct {
	Users    userstore.Store
	Messages msgstore.Store
}

// ConfigStores opens the backend selected by STORE_DRIVER.
func ConfigStores(ctx context.Context, cfg config.AppConfig) (*Stores, Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		logger.Warn("using in-memory stores, data is lost on restart")
		return &Stores{Users: userstore.NewMemory(), Messages: msgstore.NewMemory()}, noop, nil

	case config.StoreMongo:
		db, err := mongoutil.Connect(ctx, &mongoutil.Config{
			Uri:         cfg.MongoURI,
			Database:    cfg.MongoDatabase,
			Username:    cfg.MongoUser,
			Password:    cfg.MongoPassword,
			MaxPoolSize: cfg.MongoPoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		closer := func() { _ = db.Client().Disconnect(context.Background()) }
		users, err := userstore.NewMongo(ctx, db)
		if err != nil {
			closer()
			return nil, nil, err
		}
		msgs, err := msgstore.NewMongo(ctx, db)
		if err != nil {
			closer()
			return nil, nil, err
		}
		logger.Info("mongo stores ready", zap.String("database", cfg.MongoDatabase))
		return &Stores{Users: users, Messages: msgs}, closer, nil

	case config.StorePostgres:
		pool, err := pg.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres stores ready")
		return &Stores{Users: userstore.NewPostgres(pool), Messages: msgstore.NewPostgres(pool)}, pool.Close, nil

	default:
		return nil, nil, errs.ErrArgs.WrapMsg("unknown store driver", "driver", cfg.StoreDriver)
	}
}

// ConfigRedis returns the presence mirror, or nil when REDIS_ADDR is empty.
func ConfigRedis(ctx context.Context, cfg config.AppConfig) (*storage.PresenceMirror, Closer, error) {
	if cfg.RedisAddr == "" {
		return nil, noop, nil
	}
	rdb, err := redisx.NewClient(ctx, redisx.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	node := cfg.NatsName
	if node == "" {
		node = "chat-server"
	}
	return storage.NewPresenceMirror(rdb, node, 2*cfg.WS.PongWait), func() { _ = rdb.Close() }, nil
}

// ConfigNats connects the account event bus, or returns nil when NATS_URL is
// empty. The in-process subscriber stands in for the welcome mail sender.
func ConfigNats(ctx context.Context, cfg config.AppConfig) (*natsx.Producer, Closer, error) {
	if cfg.NatsURL == "" {
		return nil, noop, nil
	}
	client, err := natsx.Connect(natsx.Config{Servers: []string{cfg.NatsURL}, Name: cfg.NatsName})
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = client.Close() }
	route := natsx.Route{Biz: userservice.BizUserSignup, Subject: "chat.user.signup", Mode: natsx.Core, Queue: "welcome-mail"}
	if err := client.RegisterRoute(route); err != nil {
		closer()
		return nil, nil, err
	}
	consumer := natsx.NewConsumer(client, natsx.IdemMiddleware(natsx.NewMemIdem(ctx, time.Hour), 0))
	if err := consumer.Subscribe(userservice.BizUserSignup, welcomeMail(logger.Named("welcome"))); err != nil {
		closer()
		return nil, nil, err
	}
	logger.Info("nats account events enabled", zap.String("url", cfg.NatsURL))
	return natsx.NewProducer(client), closer, nil
}

func welcomeMail(log *zap.Logger) natsx.Handler {
	return func(_ context.Context, msg natsx.Message) error {
		var ev userservice.SignupEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return errs.WrapMsg(err, "decode signup event")
		}
		log.Info("welcome mail queued", zap.String("user", ev.UserID), zap.String("email", ev.Email))
		return nil
	}
}
