package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quizclash-service/internal/app"
	"quizclash-service/internal/config"
	"quizclash-service/internal/domain"
	"quizclash-service/internal/hub"
	"quizclash-service/internal/infra/memory"
	natsbus "quizclash-service/internal/infra/nats"
	pgloader "quizclash-service/internal/infra/postgres"
	redisstore "quizclash-service/internal/infra/redis"
	transport "quizclash-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	if logLevel == "" && cfg.Log.Level != "" {
		setupLogging(cfg.Log.Level, logPretty || cfg.Log.Pretty)
	}

	settings, err := cfg.GameSettings()
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := RunMigrations(ctx, cfg.Postgres.URL); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			ContextTimeoutEnabled: true,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgloader.NewQuestionSetLoader(pool)
	}

	setTTL := config.DurationOr(cfg.Questions.TTL, 10*time.Minute)
	var questionSets app.QuestionSetRepository
	if redisClient != nil {
		questionSets = redisstore.NewQuestionSetRepository(redisClient, loader, setTTL)
	} else {
		questionSets = memory.NewQuestionSetRepository(loader, setTTL)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var store app.SessionRepository
	if redisClient != nil {
		claimTTL := config.DurationOr(cfg.Redis.TTL, settings.IdleTimeout+settings.SweepInterval)
		redisSessions := redisstore.NewSessionStore(redisClient, claimTTL)
		go redisSessions.KeepAlive(runCtx, claimTTL/2)
		store = redisSessions
	} else {
		store = memory.NewSessionStore()
	}

	rooms := hub.New()
	opts := []app.Option{}

	var bus *natsbus.Bus
	if cfg.NATS.URL != "" {
		subject := cfg.NATS.Subject
		if subject == "" {
			subject = "quizclash"
		}
		bus, err = natsbus.Connect(cfg.NATS.URL, subject)
		if err != nil {
			return err
		}
		defer bus.Close()
		opts = append(opts, app.WithNotifier(bus), app.WithCleaner(bus))
	}

	service := app.NewGameService(store, questionSets, rooms, settings, opts...)
	defer service.Close()

	if bus != nil {
		unsubscribe, err := bus.ListenGeneration(runCtx, service)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}
	go service.RunJanitor(runCtx)

	router := transport.NewRouter(
		transport.NewGameHandler(service),
		transport.NewWSHandler(service, rooms),
		cfg.Server.AllowedOrigins,
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Bool("redis", redisClient != nil).Bool("postgres", pool != nil).
			Bool("nats", bus != nil).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			stopRun()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case <-runCtx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets seeds the in-memory loader when no database is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"sample": {
			ID:    "sample",
			Title: "Warm-up",
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectAnswer: "4", Context: "Addition."},
				{Text: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectAnswer: "Mars", Context: "Iron oxide colours its surface."},
				{Text: "What is the capital of France?", Options: []string{"Lyon", "Marseille", "Paris", "Nice"}, CorrectAnswer: "Paris"},
				{Text: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectAnswer: "7"},
				{Text: "Which gas do plants absorb?", Options: []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"}, CorrectAnswer: "Carbon dioxide", Context: "Photosynthesis."},
			},
		},
	}
}
