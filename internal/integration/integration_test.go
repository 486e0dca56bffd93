package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

	"elevate-assessment-service/internal/advisor"
	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/domain"
	pgstore "elevate-assessment-service/internal/infra/postgres"
	pgmigrations "elevate-assessment-service/internal/infra/postgres/migrations"
	infraredis "elevate-assessment-service/internal/infra/redis"
)

func TestFinalizeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := pgstore.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	rules := infraredis.NewRuleCache(redisClient, store, 5*time.Minute)

	service := app.NewService(store, rules, advisor.NewStaticClient(), 5*time.Second)

	a, err := service.Assign(ctx, "client-1", "qn-1", "stage-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	events, cancel := service.Feed().Subscribe()
	defer cancel()

	// Save a draft, then overwrite one answer and submit.
	err = service.SaveAnswers(ctx, a.ID, "client-1", []domain.AnswerItem{
		{QuestionID: "q1", OptionIDs: []string{"q1o1"}},
	}, false)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	err = service.SaveAnswers(ctx, a.ID, "client-1", []domain.AnswerItem{
		{QuestionID: "q1", OptionIDs: []string{"q1o3"}},
		{QuestionID: "q2", OptionIDs: []string{"q2o2"}},
	}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := store.GetAssignment(ctx, a.ID)
	if err != nil {
		t.Fatalf("reload assignment: %v", err)
	}
	if got.Status != domain.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", got.Status)
	}
	// q1o3 (40) replaces the draft's q1o1 (5); plus q2o2 (20).
	if got.Score == nil || *got.Score != 60 {
		t.Fatalf("expected score 60, got %v", got.Score)
	}
	if got.ResolvedStage != "Scale" {
		t.Fatalf("expected Scale, got %q", got.ResolvedStage)
	}
	if got.AISuggestedStage == "" || got.StageSummary == "" {
		t.Fatalf("expected advisory fields persisted, got %+v", got)
	}

	select {
	case ev := <-events:
		if ev.AssignmentID != a.ID || ev.Score != 60 || ev.ResolvedStage != "Scale" {
			t.Fatalf("unexpected submission event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a submission event")
	}

	// SUBMITTED is terminal.
	err = service.SaveAnswers(ctx, a.ID, "client-1", []domain.AnswerItem{
		{QuestionID: "q1", OptionIDs: []string{"q1o1"}},
	}, true)
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string) {
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

	stmts := []string{
		`INSERT INTO questionnaires (id, name, version) VALUES ('qn-1', 'Business Maturity', 'v1')`,
		`INSERT INTO questions (id, questionnaire_id, text, type, order_index) VALUES
			('q1', 'qn-1', 'What is your annual revenue?', 'MCQ', 1),
			('q2', 'qn-1', 'How large is your team?', 'MCQ', 2)`,
		`INSERT INTO question_options (id, question_id, label, order_index, weight) VALUES
			('q1o1', 'q1', 'Under $100k', 1, 5),
			('q1o2', 'q1', '$100k - $1M', 2, 20),
			('q1o3', 'q1', 'Over $1M', 3, 40),
			('q2o1', 'q2', 'Just me', 1, 5),
			('q2o2', 'q2', '2-10 people', 2, 20),
			('q2o3', 'q2', 'More than 10', 3, 40)`,
		`INSERT INTO stage_rules (id, questionnaire_id, min_score, max_score, target_stage, priority) VALUES
			('r1', NULL, 0, 25, 'StartUp', 1),
			('r2', NULL, 25.000001, 50, 'Grow', 2),
			('r3', NULL, 50.000001, 75, 'Scale', 3),
			('r4', NULL, 75.000001, 100, 'Endurance', 4)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "assess", "POSTGRES_PASSWORD": "assesspass", "POSTGRES_DB": "assessdb"},
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
	dsn := fmt.Sprintf("postgres://assess:assesspass@%s:%s/assessdb?sslmode=disable", host, port.Port())
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
