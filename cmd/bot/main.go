package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/group-guard-bot/internal/adapters/discord"
	"github.com/jose-valero/group-guard-bot/internal/adapters/onebot"
	"github.com/jose-valero/group-guard-bot/internal/app/service"
	"github.com/jose-valero/group-guard-bot/internal/infra/config"
	"github.com/jose-valero/group-guard-bot/internal/infra/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// DB (sólo si algo la usa)
	var db *sql.DB
	if cfg.UsesPostgres() {
		var err error
		db, err = storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(db); err != nil {
			return err
		}
		log.Info("✅ DB lista y migrada")
	}

	var inbox *storage.Inbox
	if cfg.OneBotMode == "inbox" {
		pool, err := storage.OpenPool(ctx, cfg.DatabaseURL, 2)
		if err != nil {
			return err
		}
		defer pool.Close()
		inbox = storage.NewInbox(pool, log)
	}

	var store service.Store
	switch cfg.StoreDriver {
	case "postgres":
		store = storage.NewPostgresStore(db, "")
	default:
		store = storage.NewFileStore(cfg.StateFile)
	}

	var sinks []service.AuditSink
	if db != nil {
		sinks = append(sinks, storage.NewAuditRepo(db))
	}
	if cfg.AuditEnabled() {
		s, err := discord.Open(cfg.DiscordToken)
		if err != nil {
			return err
		}
		sinks = append(sinks, discord.NewMirror(s, cfg.DiscordAuditChannelID, log))
		log.Info("✅ espejo de auditoría en Discord", "channel", cfg.DiscordAuditChannelID)
	}

	// gateway; el router se arma después porque necesita el servicio
	var router *onebot.Router
	dispatch := func(b []byte) bool { return router.Dispatch(b) }

	gwOpts := []onebot.Option{
		onebot.WithAccessToken(cfg.AccessToken),
		onebot.WithCallTimeout(cfg.CallTimeout),
		onebot.WithLogger(log),
	}
	var ws *onebot.WSConn
	var client *onebot.Client
	if cfg.OneBotMode == "ws" {
		ws = onebot.NewWS(cfg.OneBotWSURL, func(b []byte) { dispatch(b) }, gwOpts...)
		client = onebot.New(ws)
	} else {
		client = onebot.New(onebot.NewHTTPTransport(cfg.OneBotHTTPURL, gwOpts...))
	}

	svc := service.NewMembershipService(client, store,
		service.WithLogger(log),
		service.WithRequestMaxAge(cfg.RequestMaxAge),
		service.WithSchedules(cfg.SweepSchedule, cfg.FlushSchedule),
		service.WithSuperusers(cfg.Superusers...),
		service.WithAuditSinks(sinks...),
	)
	router = onebot.NewRouter(svc,
		onebot.WithRouterLogger(log),
		onebot.WithCommandCooldown(cfg.CommandCooldown),
	)

	if err := svc.Init(ctx); err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })

	switch cfg.OneBotMode {
	case "ws":
		g.Go(func() error { return ws.Run(gctx) })
	case "http":
		srv := onebot.NewServer(cfg.Secret, dispatch, log)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.HTTPAddr) })
	case "inbox":
		g.Go(func() error { return inbox.Run(gctx, dispatch) })
	}
	log.Info("✅ bot listo", "mode", cfg.OneBotMode, "store", cfg.StoreDriver, "audit_sinks", len(sinks))

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := svc.Shutdown(shutdownCtx); serr != nil {
		log.Error("final flush failed", "err", serr)
	}
	log.Info("bye")
	return err
}
