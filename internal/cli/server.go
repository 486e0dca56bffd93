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

	"elevate-assessment-service/internal/advisor"
	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/config"
	"elevate-assessment-service/internal/domain"
	"elevate-assessment-service/internal/infra/memory"
	pgstore "elevate-assessment-service/internal/infra/postgres"
	redisrules "elevate-assessment-service/internal/infra/redis"
	transport "elevate-assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
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

	var store app.Store
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewStore(pool)
	} else {
		store = seededMemoryStore()
	}

	rulesTTL := config.Duration(cfg.Rules.TTL, 10*time.Minute)
	var rules app.StageRuleRepository
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rules = redisrules.NewRuleCache(redisClient, store, rulesTTL)
	} else {
		rules = memory.NewRuleCache(store, rulesTTL)
	}

	var adv advisor.Client
	if cfg.Advisor.APIKey != "" {
		model := cfg.Advisor.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		adv = advisor.NewOpenAIClient(cfg.Advisor.BaseURL, cfg.Advisor.APIKey, model)
	} else {
		adv = advisor.NewStaticClient()
	}
	advisorTimeout := config.Duration(cfg.Advisor.Timeout, 30*time.Second)

	service := app.NewService(store, rules, adv, advisorTimeout)
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service.Feed())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/submissions", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
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

// seededMemoryStore provides a minimal demo catalog; production runs use Postgres.
func seededMemoryStore() *memory.Store {
	store := memory.NewStore()
	store.SeedQuestionnaire(
		domain.Questionnaire{ID: "qn-1", Name: "Business Maturity", Version: "v1"},
		[]domain.Question{
			{ID: "q1", QuestionnaireID: "qn-1", Text: "What is your annual revenue?", Type: domain.QuestionMCQ, OrderIndex: 1},
			{ID: "q2", QuestionnaireID: "qn-1", Text: "How large is your team?", Type: domain.QuestionMCQ, OrderIndex: 2},
			{ID: "q3", QuestionnaireID: "qn-1", Text: "Describe your growth goals.", Type: domain.QuestionText, OrderIndex: 3},
		},
		[]domain.Option{
			{ID: "q1o1", QuestionID: "q1", Label: "Under $100k", OrderIndex: 1, Weight: 5},
			{ID: "q1o2", QuestionID: "q1", Label: "$100k - $1M", OrderIndex: 2, Weight: 20},
			{ID: "q1o3", QuestionID: "q1", Label: "Over $1M", OrderIndex: 3, Weight: 40},
			{ID: "q2o1", QuestionID: "q2", Label: "Just me", OrderIndex: 1, Weight: 5},
			{ID: "q2o2", QuestionID: "q2", Label: "2-10 people", OrderIndex: 2, Weight: 20},
			{ID: "q2o3", QuestionID: "q2", Label: "More than 10", OrderIndex: 3, Weight: 40},
		},
	)
	store.SeedRules([]domain.StageRule{
		{ID: "r1", MinScore: 0, MaxScore: 25, TargetStage: "StartUp", Priority: 1},
		{ID: "r2", MinScore: 25.000001, MaxScore: 50, TargetStage: "Grow", Priority: 2},
		{ID: "r3", MinScore: 50.000001, MaxScore: 75, TargetStage: "Scale", Priority: 3},
		{ID: "r4", MinScore: 75.000001, MaxScore: 100, TargetStage: "Endurance", Priority: 4},
	})
	_ = store.CreateAssignment(context.Background(), domain.Assignment{
		ID:              "assignment-1",
		ClientID:        "client-1",
		QuestionnaireID: "qn-1",
		StageID:         "stage-1",
		Status:          domain.StatusAssigned,
	})
	return store
}
