package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-blackjack-bot/internal/bot"
	"telegram-blackjack-bot/internal/config"
	"telegram-blackjack-bot/internal/cooldown"
	"telegram-blackjack-bot/internal/game/blackjack"
	"telegram-blackjack-bot/internal/handler"
	"telegram-blackjack-bot/internal/health"
	"telegram-blackjack-bot/internal/pkg/db"
	"telegram-blackjack-bot/internal/pkg/lock"
	"telegram-blackjack-bot/internal/repository"
	"telegram-blackjack-bot/internal/service"
)

type options struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "blackjack-bot",
		Short: "Telegram group blackjack bot",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if opts.debug {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config", "Directory holding config.yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), opts)
		},
	})

	return rootCmd
}

func connect(ctx context.Context, opts *options) (*config.Config, *db.Pool, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info().Msg("Configuration loaded successfully")

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, pool, nil
}

func migrate(ctx context.Context, opts *options) error {
	_, pool, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Migrate(ctx, pool.Pool)
}

// blackjackSettings turns the config section into controller settings.
func blackjackSettings(cfg config.BlackjackConfig) blackjack.Settings {
	s := blackjack.DefaultSettings()
	s.Game.SignupDuration = cfg.SignupDuration()
	s.Game.MinPlayers = cfg.MinPlayers
	s.Game.MaxPlayers = cfg.MaxPlayers
	if len(cfg.Chips) > 0 {
		s.Game.Chips = cfg.Chips
	}
	s.ExtendBy = cfg.ExtendDuration()
	s.BetTimeout = cfg.BetTimeout()
	s.TurnTimeout = cfg.TurnTimeout()
	s.Pace = cfg.AnimationPace()
	return s
}

func newCooldowns(ctx context.Context, cfg config.RedisConfig) (cooldown.Store, func(), error) {
	if cfg.URL == "" {
		return cooldown.NewMemoryStore(nil), func() {}, nil
	}
	store, err := cooldown.NewRedisStore(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("Using Redis for cooldowns")
	return store, func() { _ = store.Close() }, nil
}

func run(parent context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, pool, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool.Pool); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	locks := lock.New()
	store := repository.NewStore(pool.Pool)
	accountService := service.NewAccountService(store, locks, cfg.Daily.Reward, cfg.Daily.Cooldown())
	economy := service.NewEconomyService(store, locks)
	registry := blackjack.NewRegistry()
	slaveService := service.NewSlaveService(store, locks, registry)

	cooldowns, closeCooldowns, err := newCooldowns(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeCooldowns()

	teleBot, err := bot.NewTelebot(cfg)
	if err != nil {
		return err
	}

	controller := blackjack.NewController(
		registry,
		handler.NewMessenger(teleBot),
		economy,
		blackjack.MinBalancePolicy{Economy: economy, Min: cfg.Blackjack.MinJoinBalance},
		blackjackSettings(cfg.Blackjack),
		blackjack.RealSleeper{},
	)

	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:         cfg,
		AccountHandler: handler.NewAccountHandler(accountService),
		AdminHandler:   handler.NewAdminHandler(accountService),
		SlaveHandler:   handler.NewSlaveHandler(slaveService),
		BlackjackHandler: handler.NewBlackjackHandler(controller, cooldowns, handler.BlackjackSettings{
			StartCooldown: cfg.Blackjack.StartCooldown(),
		}),
	})

	g, ctx := errgroup.WithContext(ctx)
	if cfg.HTTP.Addr != "" {
		srv := health.NewServer(cfg.HTTP.Addr, health.NewRouter(pool, registry))
		g.Go(func() error { return srv.Run(ctx) })
	}
	g.Go(func() error {
		telegramBot.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		telegramBot.Stop()
		controller.Close()
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Bot stopped gracefully")
	return err
}
