package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/cache"
	"github.com/JGenereux/ai-interviewer/internal/config"
	"github.com/JGenereux/ai-interviewer/internal/execution"
	"github.com/JGenereux/ai-interviewer/internal/feedback"
	"github.com/JGenereux/ai-interviewer/internal/handlers"
	"github.com/JGenereux/ai-interviewer/internal/jobs"
	"github.com/JGenereux/ai-interviewer/internal/ledger"
	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/llm"
	_ "github.com/JGenereux/ai-interviewer/internal/llm/gemini"
	"github.com/JGenereux/ai-interviewer/internal/prompts"
	"github.com/JGenereux/ai-interviewer/internal/questions"
	"github.com/JGenereux/ai-interviewer/internal/realtime"
	"github.com/JGenereux/ai-interviewer/internal/repositories"
	"github.com/JGenereux/ai-interviewer/internal/routers"
	"github.com/JGenereux/ai-interviewer/internal/tools"
	"github.com/JGenereux/ai-interviewer/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// initDatabase opens PostgreSQL and migrates the interview schema.
func initDatabase(cfg *config.Config) (*repositories.Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := repositories.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func main() {
	bootLogger, _ := zap.NewProduction()

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := utils.NewLogger(utils.LogConfig{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	logger.Info("Configuration loaded", zap.String("provider", cfg.Provider), zap.String("env", cfg.Env))

	store, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	appCache := cache.New(rdb, logger.Named("cache"))
	if err := appCache.Ping(context.Background()); err != nil {
		// reads fall through to the store while redis is down
		logger.Warn("Redis unavailable at startup, running uncached", zap.Error(err))
	}

	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	provider, err := llm.NewProvider(cfg.Provider, llm.Config{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.GeminiModel,
		MaxImageBytes: cfg.MaxWhiteboardBytes,
	})
	if err != nil {
		logger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}

	lifecycleCfg := lifecycle.Config{
		MinTokensRequired: cfg.MinTokensRequired,
		Rate:              ledger.Rate{Tokens: cfg.TokensPerMinute, Per: time.Minute},
		AbandonAfter:      cfg.AbandonAfter,
		SweepBatchSize:    cfg.SweepBatchSize,
		XPPerMinute:       cfg.XPPerMinute,
		MaxXPPerInterview: cfg.MaxXPPerInterview,
	}
	piston := execution.NewPistonClient(cfg.PistonURL, cfg.PistonMinInterval, logger.Named("piston"))
	manager := lifecycle.NewManager(store, appCache, lifecycleCfg, logger.Named("lifecycle"),
		lifecycle.WithCodeRunner(piston))

	// the question bank is optional: without it technical sessions cannot fetch problems
	var (
		questionService *questions.Service
		questionRepo    *questions.MongoRepo
	)
	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 10*time.Second)
	questionRepo, err = questions.NewMongoRepo(mongoCtx, questions.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.QuestionsDB,
		Collection: cfg.QuestionsCollection,
	})
	cancelMongo()
	if err != nil {
		logger.Error("Failed to connect to question bank, question tools disabled", zap.Error(err))
	} else {
		questionService = questions.NewService(questionRepo, store, appCache, cfg.QuestionCacheTTL, logger.Named("questions"))
	}

	synthesizer := feedback.NewSynthesizer(provider, promptManager, logger.Named("feedback"))
	var lookup tools.QuestionLookup
	if questionService != nil {
		lookup = questionService
	}
	feedbackService := tools.NewFeedbackService(manager, lookup, synthesizer, logger.Named("feedback"))
	hinter := tools.NewHinter(provider, promptManager)
	vision := tools.NewVision(provider, promptManager, cfg.MaxWhiteboardBytes)

	sessionTools := []agents.Tool{
		tools.NewGetUserCode(manager),
		tools.NewGetWhiteboardImage(vision),
		tools.NewProvideHint(hinter),
		tools.NewEndInterview(),
		tools.NewGetFeedback(feedbackService, cfg.FeedbackTimeout, logger.Named("feedback")),
	}
	var getQuestion *tools.GetQuestion
	if questionService != nil {
		getQuestion = tools.NewGetQuestion(questionService, manager)
		sessionTools = append(sessionTools, getQuestion)
	}
	registry, err := agents.NewRegistry(sessionTools...)
	if err != nil {
		logger.Fatal("Failed to build tool registry", zap.Error(err))
	}

	sessionLogger := logger.Named("session")
	bridge := realtime.NewBridge(manager, func(sc agents.SessionConfig) (*agents.Session, error) {
		built, err := agents.BuildAgents(sc, promptManager)
		if err != nil {
			return nil, err
		}
		return agents.NewSession(sc, built, registry, sessionLogger.With(zap.String("interview_id", sc.InterviewID)))
	}, nil, logger.Named("realtime"))

	checks := map[string]handlers.Check{
		"database": store.Ping,
		"cache":    appCache.Ping,
		"provider": func(context.Context) error {
			if provider == nil {
				return fmt.Errorf("AI provider not initialized")
			}
			return nil
		},
	}
	if questionRepo != nil {
		checks["questions"] = questionRepo.Ping
	}

	router := routers.New(routers.Handlers{
		Interview: handlers.NewInterviewHandler(manager, handlers.InterviewDeps{
			Questions: getQuestion,
			Hinter:    hinter,
			Vision:    vision,
			Feedback:  feedbackService,
			Bridge:    bridge,
		}, logger.Named("http")),
		User:     handlers.NewUserHandler(store, appCache, cfg.UserCacheTTL, cfg.LeaderboardCacheTTL, logger.Named("http")),
		Health:   handlers.NewHealthHandler(checks),
		Internal: handlers.NewInternalHandler(manager, logger.Named("internal")),
	}, routers.Options{
		JWTSecret:      cfg.JWTSecret,
		InternalKey:    cfg.InternalKey,
		AllowedOrigins: cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         logger,
	})

	sweepJob := jobs.NewAbandonSweepJob(manager, jobs.SweepConfig{
		Schedule: cfg.SweepSchedule,
		Enabled:  cfg.SweepEnabled,
	}, logger.Named("jobs"))
	if err := sweepJob.Start(); err != nil {
		logger.Fatal("Failed to start abandon sweep", zap.Error(err))
	}

	serverAddr := ":" + cfg.Port
	// WriteTimeout stays unset: websocket sessions outlive any request deadline.
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")
	sweepJob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if questionRepo != nil {
		if err := questionRepo.Close(ctx); err != nil {
			logger.Warn("question bank disconnect failed", zap.Error(err))
		}
	}
	logger.Info("Interview service exited")
}
