package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"mentalmaze-quiz-service/internal/app"
	"mentalmaze-quiz-service/internal/domain"
	infrapg "mentalmaze-quiz-service/internal/infra/postgres"
	pgmigrations "mentalmaze-quiz-service/internal/infra/postgres/migrations"
	infraredis "mentalmaze-quiz-service/internal/infra/redis"
	"mentalmaze-quiz-service/internal/perf"
)

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizzes := infrapg.NewQuizStore(pool)
	answers := infrapg.NewAnswerStore(pool)
	cache := infraredis.NewCache(redisClient)
	obs := perf.New(time.Second)
	hub := app.NewHub()
	board := app.NewLeaderboardEngine(answers, cache, obs, time.Minute)
	coordinator := app.NewCoordinator(answers, quizzes, cache, board, hub, obs, app.DefaultTTLs())

	if err := quizzes.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	result, err := coordinator.Submit(ctx, "alice", "quiz-1", 0, "B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Outcome != domain.OutcomeAccepted || !result.Correct {
		t.Fatalf("expected accepted correct answer, got %+v", result)
	}

	// The exact same triple is rejected no matter how it is retried.
	result, err = coordinator.Submit(ctx, "alice", "quiz-1", 0, "A")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if result.Outcome != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %+v", result)
	}

	// Racing submissions for one triple admit exactly one winner in Postgres.
	const workers = 16
	var wg sync.WaitGroup
	outcomes := make(chan domain.Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := coordinator.Submit(ctx, "bob", "quiz-1", 0, "B")
			if err != nil {
				t.Errorf("racing submit: %v", err)
				return
			}
			outcomes <- r.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	accepted := 0
	for outcome := range outcomes {
		if outcome == domain.OutcomeAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted racing submission, got %d", accepted)
	}

	stored, err := answers.QuizAnswers(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("load answers: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted answers, got %d", len(stored))
	}

	lb, err := board.Rank(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %+v", lb.Entries)
	}
	for _, entry := range lb.Entries {
		if entry.CorrectCount != 1 {
			t.Fatalf("expected one correct answer per player, got %+v", entry)
		}
	}

	participants, err := coordinator.Participants(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 2 || participants[0].PlayerID != "alice" {
		t.Fatalf("unexpected participants %+v", participants)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:     "quiz-1",
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
					{Label: "D", Text: "6"},
				},
				Correct: "B",
			},
		},
		Rewards:   []int64{100},
		CreatedAt: time.Now().UTC(),
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
