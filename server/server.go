package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/minio/minio-go/v7"

	"BeatFlow/cache"
	"BeatFlow/config"
	"BeatFlow/core/agent"
	"BeatFlow/core/audio"
	"BeatFlow/core/auth"
	"BeatFlow/db"
	"BeatFlow/logger"
	"BeatFlow/model"
	"BeatFlow/repository"
	"BeatFlow/storage"
)

// Start initializes and starts the HTTP server.
func Start() {
	logger.InitLogger(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: "logs/beatflow.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	cfg := config.Load()

	auth.Configure(cfg.JWTSecret, cfg.JWTExpireHour)

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis")

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if err := db.AutoMigrateModels(&model.Project{}, &model.Purchase{}, &model.Favorite{}); err != nil {
		logger.Fatal("Failed to migrate models", logger.ErrorField(err))
	}

	audioProcessor := audio.NewFFmpegProcessor(cfg.FFmpegPath)
	userRepo := repository.NewMySQLUserRepository(db.DB)
	beatRepo := repository.NewMySQLBeatRepository(db.DB)
	projectRepo := repository.NewProjectRepository(db.GormDB)
	purchaseRepo := repository.NewPurchaseRepository(db.GormDB)
	favoriteRepo := repository.NewFavoriteRepository(db.GormDB)
	workspaceCache := cache.NewWorkspaceCache()
	mixAdvisor := agent.NewMixAgent(800 * time.Millisecond)

	// 初始化处理器
	apiHandler := NewAPIHandler(userRepo, beatRepo, projectRepo, purchaseRepo,
		favoriteRepo, audioProcessor, workspaceCache, mixAdvisor, cfg)

	// 导入目录监听
	rootCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	importWatcher := NewImportWatcher(cfg)
	if err := importWatcher.Start(rootCtx); err != nil {
		logger.Warn("导入目录监听启动失败", logger.ErrorField(err))
	}

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/profile", apiHandler.AuthMiddleware(apiHandler.ProfileHandler)).Methods(http.MethodGet)

	// 市场相关的API端点
	router.HandleFunc("/api/beats", apiHandler.ListBeatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/beats", apiHandler.AuthMiddleware(apiHandler.UploadBeatHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/beats/charts", apiHandler.ChartsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/mine", apiHandler.AuthMiddleware(apiHandler.ProducerBeatsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/{id}", apiHandler.GetBeatHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/{id}", apiHandler.AuthMiddleware(apiHandler.DeactivateBeatHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/beats/{id}/play", apiHandler.RecordPlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/beats/{id}/purchase", apiHandler.AuthMiddleware(apiHandler.PurchaseBeatHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/beats/{id}/favorite", apiHandler.AuthMiddleware(apiHandler.AddFavoriteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/beats/{id}/favorite", apiHandler.AuthMiddleware(apiHandler.RemoveFavoriteHandler)).Methods(http.MethodDelete)

	router.HandleFunc("/api/purchases", apiHandler.AuthMiddleware(apiHandler.ListPurchasesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/favorites", apiHandler.AuthMiddleware(apiHandler.ListFavoritesHandler)).Methods(http.MethodGet)

	// 播放队列相关的API端点
	router.HandleFunc("/api/queue", apiHandler.AuthMiddleware(apiHandler.GetQueueHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/queue", apiHandler.AuthMiddleware(apiHandler.SaveQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/queue", apiHandler.AuthMiddleware(apiHandler.ClearQueueHandler)).Methods(http.MethodDelete)

	// 工作区项目相关的API端点
	router.HandleFunc("/api/projects", apiHandler.AuthMiddleware(apiHandler.CreateProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects", apiHandler.AuthMiddleware(apiHandler.ListProjectsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}", apiHandler.AuthMiddleware(apiHandler.GetProjectHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateProjectHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteProjectHandler)).Methods(http.MethodDelete)

	router.HandleFunc("/api/workspace/imports", apiHandler.AuthMiddleware(apiHandler.ListImportsHandler(importWatcher))).Methods(http.MethodGet)
	router.HandleFunc("/api/workspace/mix-suggestions", apiHandler.AuthMiddleware(apiHandler.MixSuggestionsHandler)).Methods(http.MethodPost)

	// 实时桥接
	router.HandleFunc("/ws/player", apiHandler.PlayerSocketHandler)
	router.HandleFunc("/ws/workspace/{project_id}", apiHandler.WorkspaceSocketHandler)

	// 添加MinIO文件服务路由
	router.PathPrefix("/static/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objectPath := strings.TrimPrefix(r.URL.Path, "/static/")
		client := storage.GetMinioClient()
		if client == nil {
			http.Error(w, "MinIO client not available", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		object, err := client.GetObject(ctx, cfg.MinioBucket, objectPath, minio.GetObjectOptions{})
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		defer object.Close()

		var contentType string
		if strings.HasPrefix(objectPath, "covers/") || strings.HasPrefix(objectPath, "avatars/") {
			contentType = "image/jpeg"
		} else if strings.HasPrefix(objectPath, "audio/") || strings.HasPrefix(objectPath, "imports/") {
			contentType = "audio/mpeg"
		} else {
			contentType = "application/octet-stream"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "public, max-age=31536000") // 缓存一年

		if _, err := io.Copy(w, object); err != nil {
			logger.Warn("Error serving file from MinIO", logger.ErrorField(err))
		}
	})

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")
	stopWatcher()

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}
