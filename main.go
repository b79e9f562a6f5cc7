package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-sync/internal/auth"
	"chat-sync/internal/avatar"
	"chat-sync/internal/chat"
	"chat-sync/internal/chatlist"
	"chat-sync/internal/config"
	"chat-sync/internal/db"
	"chat-sync/internal/docstore"
	"chat-sync/internal/friends"
	"chat-sync/internal/groups"
	"chat-sync/internal/handlers"
	"chat-sync/internal/logger"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/repositories"
	"chat-sync/internal/storage"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		panic(err)
	}
	defer logger.Sync()
	if !cfg.DotEnvLoaded {
		logger.Log.Debug("no .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Log.Fatal("failed to init tracing", zap.Error(err))
	}

	var (
		store   docstore.Store
		objects storage.ObjectStore
	)
	switch cfg.DocstoreDriver {
	case "memory":
		store = docstore.NewMemoryStore()
		objects = storage.NewMemoryStore(cfg.PublicBaseURL)
	default:
		database, err := db.Connect(cfg.DatabaseDSN)
		if err != nil {
			logger.Log.Fatal("failed to connect to db", zap.Error(err))
		}
		defer database.Close()
		pg := docstore.NewPostgresStore(database)
		if err := pg.Listen(ctx, cfg.DatabaseDSN); err != nil {
			logger.Log.Fatal("failed to listen for document changes", zap.Error(err))
		}
		store = pg
		objects = storage.NewBlobStore(database, cfg.PublicBaseURL)
	}
	logger.Log.Info("docstore ready", zap.String("driver", cfg.DocstoreDriver))

	var cache avatar.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Log.Warn("redis unavailable, avatar cache disabled", zap.Error(err))
		} else {
			cache = avatar.NewRedisCache(rdb)
		}
	}

	publisher := rabbitmq.Dial(rabbitmq.Options{
		URL:            cfg.AMQPURL,
		Exchange:       cfg.AMQPExchange,
		ConfirmTimeout: cfg.AMQPConfirmWait,
	})
	defer publisher.Close()
	mode, reason := rabbitmq.Mode(publisher)
	logger.Log.Info("event publisher ready", zap.String("mode", mode), zap.String("noop_reason", reason))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.logs", cfg.ServiceName, cfg.Environment)

	chatRepo := repositories.NewChatRepo(store)
	messageRepo := repositories.NewMessageRepo(store)
	summaryRepo := repositories.NewSummaryRepo(store)
	contactRepo := repositories.NewContactRepo(store)
	groupRepo := repositories.NewGroupRepo(store)
	userRepo := repositories.NewUserRepo(store)
	requestRepo := repositories.NewFriendRequestRepo(store)
	sessionRepo := repositories.NewSessionRepo(store)

	avatars := avatar.NewResolver(objects, cache, cfg.AvatarCacheTTL, cfg.AvatarPlaceholder)
	authService := auth.NewService(userRepo, sessionRepo, summaryRepo, cfg.JWTSecret, cfg.TokenTTL)
	aggregator := chatlist.NewAggregator(contactRepo, summaryRepo, userRepo, chatRepo, avatars)
	sender := chat.NewSender(chatRepo, messageRepo, summaryRepo, userRepo, objects, avatars)
	channel := chat.NewChannel(messageRepo)
	workflow := friends.NewWorkflow(requestRepo, userRepo, contactRepo, chatRepo)
	groupService := groups.NewService(groupRepo, userRepo, summaryRepo)
	sendLimiter := middleware.NewLimiterPool(cfg.SendRPS, cfg.SendBurst)

	hub := ws.NewHub()
	unfollow := hub.Follow(authService.Events())
	defer unfollow()

	authHandler := handlers.NewAuthHandler(authService, audit)
	userHandler := handlers.NewUserHandler(userRepo, avatars)
	chatHandler := handlers.NewChatHandler(aggregator, chatRepo, contactRepo, messageRepo, sender, cfg.MaxImageBytes)
	groupHandler := handlers.NewGroupHandler(groupService, audit)
	friendHandler := handlers.NewFriendHandler(workflow, audit)
	mediaHandler := handlers.NewMediaHandler(objects)
	chatListWS := ws.NewChatListWebSocketHandler(hub, aggregator)
	conversationWS := ws.NewConversationWebSocketHandler(hub, chatRepo, channel, sender, sendLimiter)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/media/*path", mediaHandler.Get)
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authMiddleware := middleware.AuthMiddleware(authService)
	api := router.Group("/", authMiddleware)
	api.POST("/auth/logout", authHandler.Logout)

	api.GET("/users/me", userHandler.Me)
	api.PATCH("/users/me", userHandler.UpdateMe)
	api.GET("/users/search", userHandler.Search)
	api.GET("/avatars/resolve", userHandler.ResolveAvatar)

	api.GET("/chats", chatHandler.ListChats)
	api.POST("/chats/start", chatHandler.StartChat)
	api.GET("/conversations/:id/messages", chatHandler.GetMessages)
	api.POST("/conversations/:id/messages", middleware.RateLimit(sendLimiter), chatHandler.PostMessage)

	api.POST("/groups", groupHandler.CreateGroup)
	api.GET("/groups", groupHandler.ListGroups)

	api.GET("/friends/requests", friendHandler.ListRequests)
	api.POST("/friends/requests", friendHandler.SendRequest)
	api.POST("/friends/requests/:id/accept", friendHandler.AcceptRequest)
	api.DELETE("/friends/requests/:id", friendHandler.RejectRequest)

	api.GET("/ws/chats", chatListWS.Handle)
	api.GET("/ws/conversations/:id", conversationWS.Handle)

	handlers.RegisterDebugRoutes(router, handlers.DebugOptions{Enabled: cfg.DebugRoutes, Audit: audit, Feeds: hub})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Log.Warn("tracing shutdown", zap.Error(err))
	}
}
