package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VoxNote/cache"
	"VoxNote/config"
	"VoxNote/core/audio"
	"VoxNote/core/auth"
	"VoxNote/core/openai"
	"VoxNote/core/pipeline"
	"VoxNote/core/summarize"
	"VoxNote/core/transcribe"
	"VoxNote/db"
	"VoxNote/logger"
	"VoxNote/repository"
	"VoxNote/storage"

	"github.com/gorilla/mux"
)

// NewRouter 注册所有路由
func NewRouter(apiHandler *APIHandler) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Run-ID")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// 笔记相关的API端点
	router.HandleFunc("/note/", apiHandler.AuthMiddleware(apiHandler.CreateNoteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/note/", apiHandler.AuthMiddleware(apiHandler.ListNotesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/note/runs/{id}", apiHandler.AuthMiddleware(apiHandler.GetRunHandler)).Methods(http.MethodGet)
	router.HandleFunc("/note/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.GetNoteHandler)).Methods(http.MethodGet)
	router.HandleFunc("/note/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.UpdateNoteHandler)).Methods(http.MethodPut)
	router.HandleFunc("/note/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.DeleteNoteHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/note/{id:[0-9]+}/pin", apiHandler.AuthMiddleware(apiHandler.TogglePinHandler)).Methods(http.MethodPost)
	router.HandleFunc("/note/{id:[0-9]+}/archive", apiHandler.AuthMiddleware(apiHandler.ToggleArchiveHandler)).Methods(http.MethodPost)

	// 文件夹相关的API端点
	router.HandleFunc("/folder/", apiHandler.AuthMiddleware(apiHandler.CreateFolderHandler)).Methods(http.MethodPost)
	router.HandleFunc("/folder/", apiHandler.AuthMiddleware(apiHandler.ListFoldersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/folder/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.GetFolderHandler)).Methods(http.MethodGet)
	router.HandleFunc("/folder/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.RenameFolderHandler)).Methods(http.MethodPut)
	router.HandleFunc("/folder/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.DeleteFolderHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/folder/{id:[0-9]+}/notes/", apiHandler.AuthMiddleware(apiHandler.ListFolderNotesHandler)).Methods(http.MethodGet)

	// 预检请求由 CORS 中间件直接应答，这里只负责让路由命中
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return router
}

// Start 连接依赖、组装流水线并启动 HTTP 服务，收到退出信号后优雅关闭。
func Start(cfg *config.Config) error {
	if err := db.ConnectGormDB(cfg); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrate(db.GormDB); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer cache.CloseRedis()

	minioClient, err := storage.NewMinioClient(storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}
	bucketCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = storage.EnsureBucket(bucketCtx, minioClient, cfg.MinioBucket, cfg.MinioRegion)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to prepare bucket: %w", err)
	}

	aiClient := openai.NewClient(&openai.Config{
		APIBaseURL:      cfg.OpenAIBaseURL,
		APIKey:          cfg.OpenAIAPIKey,
		TranscribeModel: cfg.OpenAITranscribeModel,
		ChatModel:       cfg.OpenAISummaryModel,
		Timeout:         cfg.OpenAITimeout,
	})
	ffmpeg := audio.NewFFmpegProcessor(cfg.FFmpegPath)
	if err := ffmpeg.Available(); err != nil {
		logger.Warn("[Server] ffmpeg 不可用，长音频将无法分片转写", logger.ErrorField(err))
	}

	tracker := cache.NewRunTracker(cache.RedisClient, cfg.RunStatusTTL)
	notePipeline := pipeline.New(pipeline.Deps{
		Prober: audio.NewProbe(cfg.MaxAudioDurationSeconds, cfg.ScratchDir, ffmpeg),
		Transcriber: transcribe.NewTranscriber(transcribe.Config{
			ChunkThresholdSeconds: cfg.ChunkThresholdSeconds,
			ChunkLengthSeconds:    cfg.ChunkLengthSeconds,
			LineIntervalSeconds:   cfg.TranscriptIntervalSeconds,
			ScratchDir:            cfg.ScratchDir,
		}, aiClient, ffmpeg),
		Summarizer: summarize.NewSummarizer(summarize.Config{
			MaxChars:    cfg.SummaryMaxChars,
			MaxTokens:   cfg.SummaryMaxTokens,
			Temperature: cfg.SummaryTemperature,
		}, aiClient),
		Store:    storage.NewObjectStore(minioClient, cfg.MinioBucket, cfg.RecordingURLExpiry),
		Notes:    repository.NewGormNoteStore(db.GormDB),
		Recorder: tracker,
	}, cfg.RecordingFolder)

	dispatcher := pipeline.NewDispatcher(notePipeline, cfg.PipelineWorkers, cfg.PipelineQueueSize)
	defer dispatcher.Stop()

	apiHandler := NewAPIHandler(
		repository.NewGormUserRepository(db.GormDB),
		repository.NewGormFolderRepository(db.GormDB),
		repository.NewGormNoteRepository(db.GormDB),
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		dispatcher,
		tracker,
		cfg,
	)

	// 转写长音频可能持续数分钟，写超时需覆盖整个流水线
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(apiHandler),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: cfg.OpenAITimeout*2 + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] HTTP 服务启动", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("[Server] 收到退出信号，正在关闭", logger.String("signal", sig.String()))
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("[Server] HTTP 服务已关闭")
	return nil
}
