package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"game-session-service/internal/app"
	"game-session-service/internal/config"
	"game-session-service/internal/domain"
	"game-session-service/internal/infra/memory"
	natsinfra "game-session-service/internal/infra/nats"
	pginfra "game-session-service/internal/infra/postgres"
	redisinfra "game-session-service/internal/infra/redis"
	transport "game-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game session server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	deps := app.Deps{
		Registry: memory.NewReplayRegistry(),
		Quizzes:  quizRepo,
	}
	if redisClient != nil {
		deps.Sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		deps.Answers = redisinfra.NewAnswerStore(redisClient, redisTTL)
		deps.Timers = redisinfra.NewTimerStore(redisClient, redisTTL)
		deps.Ranking = redisinfra.NewRankingStore(redisClient, redisTTL)
	} else {
		deps.Sessions = memory.NewSessionStore()
		deps.Answers = memory.NewAnswerStore()
		deps.Timers = memory.NewTimerStore()
		deps.Ranking = memory.NewRankingStore()
	}
	if bunDB != nil {
		deps.Participants = pginfra.NewParticipantStore(bunDB)
		deps.Archive = pginfra.NewSessionArchive(bunDB)
	} else {
		deps.Participants = memory.NewParticipantStore()
	}

	hub := transport.NewHub()
	deps.Broadcaster = hub

	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		// Publish through NATS; every instance's bridge relays back into its hub.
		deps.Broadcaster = natsinfra.NewBroadcaster(conn)
		drain, err := natsinfra.Bridge(conn, hub)
		if err != nil {
			return err
		}
		defer drain()
	}

	if cfg.Scoring.BasePool == 0 {
		cfg.Scoring.BasePool = 1000
		cfg.Scoring.DecayAlpha = 0.3
		cfg.Scoring.JoinBonus = 10
	}

	serviceCfg := app.Config{
		Scoring: app.ScoringConfig{
			BasePool:   cfg.Scoring.BasePool,
			DecayAlpha: cfg.Scoring.DecayAlpha,
		},
		Replay: app.ReplayConfig{
			RevealDelay:         config.TTLDuration(cfg.Replay.RevealDelay, 2*time.Second),
			FallbackTimeLimitMs: cfg.Replay.FallbackTimeLimitMs,
		},
		Reveal:    app.RevealPolicy{SelfScore: cfg.Reveal.SelfScore},
		JoinBonus: cfg.Scoring.JoinBonus,
	}
	service := app.NewGameService(serviceCfg, deps)
	wsHandler := transport.NewWSHandler(service, hub)
	sessionHandler := transport.NewSessionHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/sessions", sessionHandler.CreateSession)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting game session service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds a minimal quiz for configless local runs.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					UID:            "q1",
					Kind:           domain.QuestionSingleChoice,
					Prompt:         "What is 2 + 2?",
					Options:        []string{"3", "4", "5"},
					CorrectOptions: []bool{false, true, false},
					TimeLimitMs:    30000,
				},
				{
					UID:            "q2",
					Kind:           domain.QuestionMultiChoice,
					Prompt:         "Which of these are prime?",
					Options:        []string{"2", "4", "5", "9"},
					CorrectOptions: []bool{true, false, true, false},
					TimeLimitMs:    30000,
				},
			},
		},
	}
}
