// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/handler"
	"hexona-gpts-go/internal/middleware"
	"hexona-gpts-go/internal/ratelimit"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/internal/worker"
	"hexona-gpts-go/pkg/database"
	"hexona-gpts-go/pkg/embedding"
	"hexona-gpts-go/pkg/es"
	"hexona-gpts-go/pkg/extract"
	"hexona-gpts-go/pkg/kafka"
	"hexona-gpts-go/pkg/llm"
	"hexona-gpts-go/pkg/log"
	"hexona-gpts-go/pkg/storage"
	"hexona-gpts-go/pkg/tasks"
	"hexona-gpts-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	memoryRepo := repository.NewMemoryRepository(database.DB)
	profileRepo := repository.NewProfileRepository(database.DB)
	usageRepo := repository.NewUsageRepository(database.DB)
	gptConfigRepo := repository.NewGptConfigRepository(database.DB)
	knowledgeRepo := repository.NewKnowledgeRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	extractClient := extract.NewClient(cfg.Extract)
	dispatcher := llm.NewDispatcher(cfg.Providers)
	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisStore(database.RDB),
		cfg.Chat.RateLimit,
		time.Duration(cfg.Chat.RateWindowMinutes)*time.Minute,
	)

	userService := service.NewUserService(userRepo, jwtManager)
	profileService := service.NewProfileService(profileRepo)
	knowledgeService := service.NewKnowledgeService(knowledgeRepo, embeddingClient, cfg.Elasticsearch.IndexName)
	contextService := service.NewContextService(profileRepo, memoryRepo, conversationRepo, messageRepo, knowledgeService)
	historyService := service.NewHistoryService(conversationRepo, messageRepo)
	memoryService := service.NewMemoryService(conversationRepo, messageRepo, memoryRepo, dispatcher)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)
	adminService := service.NewAdminService(userRepo, gptConfigRepo, usageRepo)
	attachmentService := service.NewAttachmentService(extractClient)

	// 6. 后台任务管线：配置了 Kafka 则走消息队列，否则进程内执行
	processor := worker.NewProcessor(memoryService, userRepo)
	var queue tasks.Queue
	if cfg.Kafka.Brokers != "" {
		queue = kafka.NewProducer(cfg.Kafka)
		go kafka.StartConsumer(cfg.Kafka, processor)
	} else {
		log.Info("未配置 Kafka，后台任务将在进程内执行")
		queue = tasks.NewInProcessQueue(processor)
	}

	chatService := service.NewChatService(
		contextService, historyService,
		conversationRepo, messageRepo, gptConfigRepo, usageRepo,
		dispatcher, limiter, queue,
	)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	authed := middleware.AuthMiddleware(jwtManager, userRepo)
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", handler.NewUserHandler(userService).Register)
			auth.POST("/login", handler.NewUserHandler(userService).Login)
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
			auth.GET("/me", authed, handler.NewUserHandler(userService).Me)
		}

		chat := apiV1.Group("/chat")
		chat.Use(authed)
		{
			chat.POST("", handler.NewChatHandler(chatService).Stream)
		}

		conversations := apiV1.Group("/conversations")
		conversations.Use(authed)
		{
			convHandler := handler.NewConversationHandler(conversationService, memoryService)
			conversations.GET("", convHandler.List)
			conversations.GET("/:id", convHandler.Get)
			conversations.DELETE("/:id", convHandler.Delete)
			conversations.POST("/summarize", convHandler.Summarize)
		}

		profile := apiV1.Group("/profile")
		profile.Use(authed)
		{
			profileHandler := handler.NewProfileHandler(profileService)
			profile.GET("", profileHandler.GetAgencyProfile)
			profile.PUT("", profileHandler.SaveAgencyProfile)
		}

		clients := apiV1.Group("/clients")
		clients.Use(authed)
		{
			profileHandler := handler.NewProfileHandler(profileService)
			clients.GET("", profileHandler.ListClients)
			clients.POST("", profileHandler.CreateClient)
			clients.PUT("/:id", profileHandler.UpdateClient)
			clients.DELETE("/:id", profileHandler.DeleteClient)
		}

		attachments := apiV1.Group("/attachments")
		attachments.Use(authed)
		{
			attachments.POST("/upload", handler.NewAttachmentHandler(attachmentService).Upload)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(authed, middleware.AdminAuthMiddleware())
		{
			adminHandler := handler.NewAdminHandler(adminService, knowledgeService)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PATCH("/users/:id", adminHandler.UpdateUser)
			admin.GET("/gpts", adminHandler.ListGpts)
			admin.GET("/gpts/:slug", adminHandler.GetGpt)
			admin.PUT("/gpts/:slug", adminHandler.UpdateGpt)
			admin.GET("/gpts/:slug/knowledge", adminHandler.ListKnowledge)
			admin.POST("/gpts/:slug/knowledge", adminHandler.UploadKnowledge)
			admin.DELETE("/gpts/:slug/knowledge/:docId", adminHandler.DeleteKnowledge)
			admin.GET("/analytics", adminHandler.Analytics)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 等待进程内后台任务收尾
	if q, ok := queue.(*tasks.InProcessQueue); ok {
		q.Wait()
	}
	log.Info("服务已退出")
}
