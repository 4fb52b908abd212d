package server

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"AutoMixFM/cache"
	"AutoMixFM/config"
	"AutoMixFM/core/audio"
	"AutoMixFM/core/library"
	"AutoMixFM/core/mix"
	"AutoMixFM/core/playlist"
	"AutoMixFM/db"
	"AutoMixFM/logger"
	"AutoMixFM/repository"
	"AutoMixFM/storage"
)

// Start initializes every backing service and runs the HTTP server
// until interrupted.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})
	defer logger.Sync()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  10 * time.Minute, // uploads can be large
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	ensureDirExists(cfg.UploadDir)
	ensureDirExists(cfg.MixOutputDir)

	processor, err := audio.NewFFmpegProcessor(cfg.FFmpegPath)
	if err != nil {
		logger.Fatal("failed to create audio processor", logger.ErrorField(err))
	}
	defer processor.Cleanup()

	analyzer := audio.NewFFmpegAnalyzer(cfg.FFmpegPath)
	trackRepo := repository.NewGormTrackRepository()
	mixRepo := repository.NewMySQLMixRepository()
	stateCache := cache.NewMixStateCache()
	playlistCache := cache.NewPlaylistCache()

	lib := library.New(analyzer, trackRepo)
	if err := lib.Restore(context.Background()); err != nil {
		logger.Warn("failed to restore track pool", logger.ErrorField(err))
	}

	sequencer := playlist.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	assembler := mix.NewAssembler(processor, cfg.MixOutputDir, cfg.AudioBitrate)

	runner := mix.NewRunner(assembler, stateCache, mixRepo)
	runner.SetUploader(storage.UploadMixFile)
	if state, err := stateCache.LoadMixState(context.Background()); err != nil {
		logger.Warn("failed to load persisted mix state", logger.ErrorField(err))
	} else if state != nil {
		runner.Restore(*state)
	}

	// Background ingestion from the drop folder, if configured.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.WatchDir != "" {
		watcher := library.NewWatcher(lib, cfg.WatchDir)
		go func() {
			if err := watcher.Run(watchCtx); err != nil && err != context.Canceled {
				logger.Error("drop folder watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	apiHandler := NewAPIHandler(lib, sequencer, runner, playlistCache, mixRepo, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/upload", apiHandler.UploadHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/upload-xml", apiHandler.UploadXMLHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/files", apiHandler.GetFilesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/generate-playlist", apiHandler.GeneratePlaylistHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/generate-mix", apiHandler.GenerateMixHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/mix-status", apiHandler.MixStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/mix-history", apiHandler.MixHistoryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/download-mix/{filename}", apiHandler.DownloadMixHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/clear-files", apiHandler.ClearFilesHandler).Methods(http.MethodPost)
	router.HandleFunc("/ws/mix-progress", apiHandler.MixProgressWSHandler)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("failed to create directory",
				logger.String("path", path),
				logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("failed to check directory",
			logger.String("path", path),
			logger.ErrorField(err))
	}
}
