package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/sokomart/marketplace-api/internal/gateway"
	"github.com/sokomart/marketplace-api/internal/notifier"
	"github.com/sokomart/marketplace-api/internal/orders"
	"github.com/sokomart/marketplace-api/internal/payments"
	"github.com/sokomart/marketplace-api/internal/repository"
	appvalidator "github.com/sokomart/marketplace-api/internal/validator"
	"github.com/sokomart/marketplace-api/internal/vcs"
)

var (
	version = vcs.Version()
)

type Application struct {
	config         Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	orderRepo   domain.OrderRepository
	paymentRepo domain.PaymentRepository

	gateways     *gateway.Registry
	orchestrator *payments.Orchestrator
	synchronizer *orders.Synchronizer
	dispatcher   *notifier.Dispatcher

	background sync.WaitGroup
}

type Config struct {
	Port int
	Env  string
	DB   struct {
		Dsn          string
		MaxOpenConns int
		MaxIdleTime  time.Duration
	}
	Redis struct {
		Url          string
		MaxOpenConns int
		MaxIdleConns int
		MaxIdleTime  time.Duration
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		Sender   string
	}
	Stripe struct {
		SecretKey     string
		WebhookSecret string
		SuccessUrl    string
		FailureUrl    string
	}
	Rail struct {
		Name          string
		BaseUrl       string
		SecretKey     string
		WebhookSecret string
	}
	Payments struct {
		ServiceFeeRate   float64
		EscrowWindow     time.Duration
		ProcessingWindow time.Duration
		SweepInterval    time.Duration
		Sandbox          bool
	}
	RateLimitEnabled bool
	AdminToken       string
	OtelCollectorUrl string
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.DB.Dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.Url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.SMTP.Host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.SMTP.Port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.SMTP.Username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.SMTP.Password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.SMTP.Sender, "smtp-sender", "SokoMart <no-reply@sokomart.africa>", "SMTP sender")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")
	flag.StringVar(&cfg.Stripe.WebhookSecret, "stripe-webhook-secret", "", "Stripe webhook secret")
	flag.StringVar(&cfg.Stripe.SuccessUrl, "stripe-success-url", "https://example.com/success.html", "Stripe payment success page")
	flag.StringVar(&cfg.Stripe.FailureUrl, "stripe-failure-url", "https://example.com/failure.html", "Stripe payment failure page")

	flag.StringVar(&cfg.Rail.Name, "rail-name", "flutterwave", "Mobile money rail name")
	flag.StringVar(&cfg.Rail.BaseUrl, "rail-base-url", "", "Mobile money rail base URL")
	flag.StringVar(&cfg.Rail.SecretKey, "rail-secret-key", "", "Mobile money rail secret key")
	flag.StringVar(&cfg.Rail.WebhookSecret, "rail-webhook-secret", "", "Mobile money rail webhook secret")

	flag.Float64Var(&cfg.Payments.ServiceFeeRate, "service-fee-rate", 0.025, "Platform service fee rate")
	flag.DurationVar(&cfg.Payments.EscrowWindow, "escrow-window", 7*24*time.Hour, "Escrow auto-release window")
	flag.DurationVar(&cfg.Payments.ProcessingWindow, "processing-window", 24*time.Hour, "Window before a processing payment is flagged stale")
	flag.DurationVar(&cfg.Payments.SweepInterval, "escrow-sweep-interval", time.Hour, "Interval between escrow auto-release sweeps")
	flag.BoolVar(&cfg.Payments.Sandbox, "sandbox-gateway", false, "Route all charges through the in-memory sandbox gateway")

	flag.BoolVar(&cfg.RateLimitEnabled, "rate-limit-enabled", true, "Enable per-IP rate limiting")
	flag.StringVar(&cfg.AdminToken, "admin-token", "", "Bearer token for admin endpoints")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	stripe.Key = cfg.Stripe.SecretKey

	logger := slog.New(NewMultiHandler(
		slog.NewTextHandler(os.Stdout, nil),
		otelslog.NewHandler("marketplace-api"),
	))

	app, err := NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	return app.run()
}

// NewApplication wires the repositories, gateways and background workers off
// the given configuration. The caller owns the returned Application and must
// Close it.
func NewApplication(cfg Config, logger *slog.Logger) (*Application, error) {
	db, err := NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	orderRepo := repository.NewPostgresOrderRepository(db)
	paymentRepo := repository.NewPostgresPaymentRepository(db)

	dispatcher := notifier.NewDispatcher(newNotifier(cfg, logger), logger)

	synchronizer := orders.NewSynchronizer(orderRepo, dispatcher, logger)

	gateways := newGatewayRegistry(cfg)

	orchestrator := payments.NewOrchestrator(
		payments.Config{
			ServiceFeeRate:   decimal.NewFromFloat(cfg.Payments.ServiceFeeRate),
			EscrowWindow:     cfg.Payments.EscrowWindow,
			ProcessingWindow: cfg.Payments.ProcessingWindow,
		},
		paymentRepo,
		gateways,
		synchronizer,
		dispatcher,
		payments.NewPaymentLocker(redisClient),
		logger,
	)

	app := NewApp(
		cfg,
		logger,
		db,
		redisClient,
		appvalidator.NewValidator(),
		NewSessionManager(redisClient),
		orderRepo,
		paymentRepo,
		gateways,
		orchestrator,
		synchronizer,
		dispatcher,
	)

	return app, nil
}

// NewApp assembles an Application from already-constructed dependencies.
// Integration tests use it to swap in sandbox gateways and mock notifiers.
func NewApp(
	cfg Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	redisClient redis.UniversalClient,
	validator *validator.Validate,
	sessionManager *scs.SessionManager,
	orderRepo domain.OrderRepository,
	paymentRepo domain.PaymentRepository,
	gateways *gateway.Registry,
	orchestrator *payments.Orchestrator,
	synchronizer *orders.Synchronizer,
	dispatcher *notifier.Dispatcher,
) *Application {
	return &Application{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      validator,
		sessionManager: sessionManager,
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		gateways:       gateways,
		orchestrator:   orchestrator,
		synchronizer:   synchronizer,
		dispatcher:     dispatcher,
	}
}

// Close waits for background workers, then drains the notification
// dispatcher and releases the connection pools. The sweeper must be stopped
// before the dispatcher queue closes or a mid-sweep Publish would panic.
func (app *Application) Close() {
	app.background.Wait()
	app.dispatcher.Close()
	if app.redis != nil {
		app.redis.Close()
	}
	if app.db != nil {
		app.db.Close()
	}
}

func newGatewayRegistry(cfg Config) *gateway.Registry {
	registry := gateway.NewRegistry()

	if cfg.Payments.Sandbox {
		sandbox := gateway.NewSandboxProvider()
		registry.Register(domain.CategoryCard, sandbox)
		registry.Register(domain.CategoryMobileMoney, sandbox)
		registry.Register(domain.CategoryWallet, sandbox)
		registry.Register(domain.CategoryCash, gateway.NewCashProvider())

		return registry
	}

	rail := gateway.NewMobileMoneyProvider(cfg.Rail.Name, cfg.Rail.BaseUrl, cfg.Rail.SecretKey, cfg.Rail.WebhookSecret)

	registry.Register(domain.CategoryCard, gateway.NewStripeProvider(cfg.Stripe.WebhookSecret, cfg.Stripe.SuccessUrl, cfg.Stripe.FailureUrl))
	registry.Register(domain.CategoryMobileMoney, rail)
	registry.Register(domain.CategoryWallet, rail)
	registry.Register(domain.CategoryCash, gateway.NewCashProvider())

	return registry
}

func newNotifier(cfg Config, logger *slog.Logger) notifier.Notifier {
	if cfg.SMTP.Username == "" {
		logger.Info("SMTP credentials not set, notifications are recorded in memory only")
		return notifier.NewMockNotifier()
	}

	return notifier.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender)
}

func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.Url,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.Dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	app.background.Add(1)
	go func() {
		defer app.background.Done()
		app.runEscrowSweeper(sweepCtx)
	}()

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		stopSweep()
		app.background.Wait()
		return err
	}

	err = <-shutdownError
	app.background.Wait()
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

// runEscrowSweeper periodically releases held escrows past their deadline.
func (app *Application) runEscrowSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.Payments.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := app.orchestrator.ReleaseDueEscrows(ctx)
			if err != nil {
				app.logger.Error("escrow sweep failed", "error", err)
				continue
			}
			if released > 0 {
				app.logger.Info("escrow sweep released payments", "count", released)
			}
		}
	}
}
