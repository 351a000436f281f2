package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mentalmaze-quiz-service/internal/app"
	"mentalmaze-quiz-service/internal/config"
	"mentalmaze-quiz-service/internal/domain"
	"mentalmaze-quiz-service/internal/genai"
	"mentalmaze-quiz-service/internal/infra/memory"
	pgstore "mentalmaze-quiz-service/internal/infra/postgres"
	redisinfra "mentalmaze-quiz-service/internal/infra/redis"
	"mentalmaze-quiz-service/internal/perf"
	transport "mentalmaze-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz coordination server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ttls := app.CacheTTLs{
		Leaderboard:  config.TTLDuration(cfg.Cache.LeaderboardTTL, 30*time.Second),
		Quiz:         config.TTLDuration(cfg.Cache.QuizTTL, 10*time.Minute),
		Participants: config.TTLDuration(cfg.Cache.ParticipantsTTL, time.Minute),
		ActiveList:   config.TTLDuration(cfg.Cache.ActiveListTTL, time.Minute),
	}

	var cache app.Cache = memory.NewCache()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = redisinfra.NewCache(redisClient)
	}

	var (
		answers app.AnswerStore
		quizzes app.QuizStore
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		answers = pgstore.NewAnswerStore(pool)
		quizzes = pgstore.NewQuizStore(pool)
	} else {
		answers = memory.NewAnswerStore()
		quizzes = memory.NewQuizStoreWith(sampleQuizzes())
	}

	obs := perf.New(config.TTLDuration(cfg.Perf.SlowThreshold, 500*time.Millisecond))
	hub := app.NewHub()
	board := app.NewLeaderboardEngine(answers, cache, obs, ttls.Leaderboard)
	coordinator := app.NewCoordinator(answers, quizzes, cache, board, hub, obs, ttls)
	generator := genai.NewClient(cfg)
	lifecycle := app.NewLifecycle(quizzes, cache, generator, board, hub, obs, ttls)

	wsHandler := transport.NewWSHandler(coordinator, board, hub)
	restHandler := transport.NewRESTHandler(lifecycle, board, obs)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/quizzes/active", restHandler.ActiveQuizzes)
	mux.HandleFunc("/leaderboard", restHandler.Leaderboard)
	mux.HandleFunc("/stats", restHandler.Stats)
	mux.Handle("/metrics", obs.Handler())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz coordination service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory catalog for cache-less demo runs.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			Topic:  "Arithmetic",
			Status: domain.StatusActive,
			Questions: []domain.Question{
				{
					Index:  0,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{Label: "A", Text: "3"},
						{Label: "B", Text: "4"},
						{Label: "C", Text: "5"},
						{Label: "D", Text: "22"},
					},
					Correct: "B",
				},
			},
		},
	}
}
