package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/ai"
	"github.com/litdeck/litdeck/internal/config"
	"github.com/litdeck/litdeck/internal/db"
	"github.com/litdeck/litdeck/internal/filestore"
	"github.com/litdeck/litdeck/internal/handler"
	"github.com/litdeck/litdeck/internal/job"
	"github.com/litdeck/litdeck/internal/middleware"
	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/review"
	"github.com/litdeck/litdeck/internal/schedule"
	"github.com/litdeck/litdeck/internal/service"
	"github.com/litdeck/litdeck/internal/srs"
	"github.com/litdeck/litdeck/internal/worker"
)

const reviewPruneSpec = "30 3 * * *"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "litdeck",
		Short: "litdeck study capture backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run litdeck server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(database)
	noteRepo := repo.NewNoteRepo(database)
	jobRepo := repo.NewCaptureJobRepo(database)
	stateRepo := repo.NewReviewStateRepo(database)
	embeddingRepo := repo.NewNoteEmbeddingRepo(database)

	manager, err := buildAIManager(cfg.AI)
	if err != nil {
		return err
	}

	sched := srs.NewScheduler(srs.Config{
		LearningStepsSeconds: cfg.Review.LearningStepsSeconds,
		EasyBonus:            cfg.Review.EasyBonus,
		InitialEaseFactor:    cfg.Review.InitialEaseFactor,
		MinEaseFactor:        cfg.Review.MinEaseFactor,
		MaxEaseFactor:        cfg.Review.MaxEaseFactor,
		MaxIntervalDays:      cfg.Review.MaxIntervalDays,
	}, nil)

	var reviewStore *review.Store
	syncer := review.NewAsyncSyncer(
		service.NoteReviewMirror(noteRepo),
		func(key model.ReviewKey, mtime int64) {
			reviewStore.Ack(key, mtime)
		},
	)
	reviewStore = review.NewStore(stateRepo, sched, syncer, nil)

	var archive filestore.Store
	if cfg.FileStore.Data != nil {
		archive, err = filestore.New(cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
	}

	genWorker := worker.NewGenerationWorker(jobRepo, noteRepo, manager, worker.Config{
		BuildTimeout: time.Duration(cfg.AI.Timeout) * time.Second,
	}, nil)

	chunker := ai.NewChunker()
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	captureService := service.NewCaptureService(jobRepo, archive, genWorker, service.CaptureConfig{
		JobTTLSeconds:   cfg.Capture.JobTTLSeconds,
		MaxContentChars: cfg.Capture.MaxContentChars,
	})
	noteService := service.NewNoteService(noteRepo, embeddingRepo, manager, chunker)
	reviewService := service.NewReviewService(noteRepo, reviewStore)

	deps := handler.RouterDeps{
		Auth:             handler.NewAuthHandler(authService),
		Capture:          handler.NewCaptureHandler(captureService),
		Notes:            handler.NewNoteHandler(noteService),
		Reviews:          handler.NewReviewHandler(reviewService),
		JWTSecret:        []byte(cfg.JWTSecret),
		RateLimitSeconds: cfg.RateLimitSeconds,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genWorker.Start(ctx)

	cron := schedule.NewCronScheduler()
	if err := cron.AddJob(job.NewCaptureCleanupJob(jobRepo), cfg.Capture.CleanupSpec); err != nil {
		return err
	}
	if err := cron.AddJob(job.NewPendingSweepJob(jobRepo, genWorker, time.Minute), cfg.Capture.SweepSpec); err != nil {
		return err
	}
	if err := cron.AddJob(job.NewReviewPruneJob(stateRepo, noteRepo, reviewStore), reviewPruneSpec); err != nil {
		return err
	}
	cron.Start(ctx)

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	cron.Stop()
	genWorker.Stop()
	syncer.Close()
	return nil
}

func buildAIManager(cfg config.AIConfig) (*ai.Manager, error) {
	primary, err := ai.NewProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	entries := []ai.GeneratorEntry{{
		Name:      cfg.Provider + "/" + cfg.Model,
		Generator: ai.NewGenerator(primary, cfg.Model),
	}}
	for _, fallback := range cfg.Fallbacks {
		provider, err := ai.NewProvider(fallback.Provider, fallback.Data)
		if err != nil {
			return nil, fmt.Errorf("init fallback ai provider %s: %w", fallback.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      fallback.Provider + "/" + fallback.Model,
			Generator: ai.NewGenerator(provider, fallback.Model),
		})
	}
	generator := ai.NewGroupGenerator(entries)

	var embedder ai.IEmbedder
	if cfg.EmbedProvider != "" {
		embedProvider, err := ai.NewEmbedProvider(cfg.EmbedProvider, cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider: %w", err)
		}
		embedder = ai.NewGroupEmbedder([]ai.EmbedderEntry{{
			Name:     cfg.EmbedModel,
			Embedder: ai.NewEmbedder(embedProvider, cfg.EmbedModel),
		}})
	}

	return ai.NewManager(generator, generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.Timeout,
		MaxInputChars: cfg.MaxInputChars,
	}), nil
}
