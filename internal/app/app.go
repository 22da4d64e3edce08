package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rdavydov/node-laundry/internal/api"
	"github.com/rdavydov/node-laundry/internal/config"
	"github.com/rdavydov/node-laundry/internal/domain"
	"github.com/rdavydov/node-laundry/internal/messenger"
	"github.com/rdavydov/node-laundry/internal/reservation"
	"github.com/rdavydov/node-laundry/internal/scheduler"
	"github.com/rdavydov/node-laundry/internal/store"
	"github.com/rdavydov/node-laundry/internal/telegram"
)

type App struct {
	cfg       config.Config
	log       *zap.Logger
	bot       *tgbotapi.BotAPI
	loc       *time.Location
	httpSrv   *http.Server
	repo      store.Repo
	publisher *messenger.Publisher
	sched     *scheduler.Scheduler
	router    *telegram.Router
	limiter   *api.RateLimiter
	tokens    *api.TokenProvider // nil when JWT_SECRET is empty
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := domain.ValidateTZ(cfg.DefaultTZ)
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	a := &App{cfg: cfg, log: log, bot: bot, loc: loc, httpSrv: srv}
	if cfg.JWTSecret != "" {
		a.tokens = api.NewTokenProvider(cfg.JWTSecret, cfg.JWTExpiry)
	}
	return a, nil
}

// tokenIssuer keeps a nil provider from becoming a non-nil interface.
func (a *App) tokenIssuer() telegram.TokenIssuer {
	if a.tokens == nil {
		return nil
	}
	return a.tokens
}

// reminderMessenger delivers through Telegram and, when configured, also
// publishes reminder events to AMQP.
func (a *App) reminderMessenger() (scheduler.Messenger, error) {
	tg := telegram.NewNotifier(a.bot)
	if a.cfg.AMQPURL == "" {
		return tg, nil
	}
	pub, err := messenger.NewPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	a.publisher = pub
	a.log.Info("amqp publisher ready", zap.String("exchange", a.cfg.AMQPExchange))
	return messenger.Fanout{tg, pub}, nil
}

func (a *App) handler(mgr *reservation.Manager) http.Handler {
	deps := api.Deps{
		AllowedOrigins: a.cfg.AllowedOrigins,
		Log:            a.log,
	}
	if a.tokens == nil {
		a.log.Warn("JWT_SECRET is empty, reservation API disabled")
		return api.NewRouter(deps)
	}
	a.limiter = api.NewRateLimiter(rate.Limit(a.cfg.RateLimitRPS), a.cfg.RateLimitBurst)
	deps.Handler = api.NewHandler(mgr, a.sched)
	deps.Tokens = a.tokens
	deps.Limiter = a.limiter
	return api.NewRouter(deps)
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting laundry bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.loc.String()),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath, a.log)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	msgr, err := a.reminderMessenger()
	if err != nil {
		a.log.Error("messenger init failed", zap.Error(err))
		_ = a.repo.Close()
		return err
	}

	a.sched = scheduler.New(a.repo, msgr, a.log, a.cfg.NotifyTimeout)
	if err := a.sched.Rehydrate(ctx); err != nil {
		// Bookings still work; reminders for existing rows are lost until the next start.
		a.log.Error("rehydrate failed", zap.Error(err))
	}

	mgr := reservation.NewManager(a.repo, a.sched, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, mgr, a.tokenIssuer(), a.loc, a.cfg.PendingTTL)
	a.httpSrv.Handler = a.handler(mgr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()
	if a.limiter != nil {
		go a.limiter.Cleanup(ctx, 5*time.Minute, 10*time.Minute)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case <-sweep.C:
			if n := a.router.SweepPending(); n > 0 {
				a.log.Debug("expired prompts dropped", zap.Int("count", n))
			}

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) shutdown() {
	a.bot.StopReceivingUpdates()

	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	if a.sched != nil {
		a.sched.Stop()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("amqp close error", zap.Error(err))
		}
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
