package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"family-quiz-service/internal/app"
	"family-quiz-service/internal/bank"
	"family-quiz-service/internal/config"
	"family-quiz-service/internal/infra/memory"
	pgloader "family-quiz-service/internal/infra/postgres"
	redisstore "family-quiz-service/internal/infra/redis"
	transport "family-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
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
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var loader bank.Loader = bank.NewStaticLoader(bank.DefaultPrompts())
	if pool != nil {
		loader = pgloader.NewPromptLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var prompts bank.Loader
	if redisClient != nil {
		prompts = redisstore.NewPromptCache(redisClient, loader, bankTTL)
	} else {
		prompts = memory.NewPromptCache(loader, bankTTL)
	}
	questions := bank.NewBuilder(prompts, cfg.Game.QuestionCount)

	var store app.RoomStore
	if redisClient != nil {
		store = redisstore.NewDocStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 6*time.Hour))
		log.Printf("rooms stored in redis at %s", cfg.Redis.Addr)
	} else {
		store = memory.NewDocStore()
		log.Printf("rooms stored in memory")
	}

	gameCfg := app.Config{
		RoundDuration: config.TTLDuration(cfg.Game.RoundDuration, app.DefaultRoundDuration),
		TickInterval:  config.TTLDuration(cfg.Game.TickInterval, app.DefaultTickInterval),
		RevealHold:    config.TTLDuration(cfg.Game.RevealHold, 0),
	}

	router := transport.NewRouter(store,
		transport.NewWSHandler(store, questions, gameCfg),
		transport.NewRoomsHandler(app.NewDirectory(store), cfg.Server.PublicURL),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
