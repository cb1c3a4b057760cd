package integration_test

import (
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sokomart/marketplace-api/internal/app"
	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/sokomart/marketplace-api/internal/gateway"
	"github.com/sokomart/marketplace-api/internal/notifier"
	"github.com/sokomart/marketplace-api/internal/orders"
	"github.com/sokomart/marketplace-api/internal/payments"
	"github.com/sokomart/marketplace-api/internal/repository"
	appvalidator "github.com/sokomart/marketplace-api/internal/validator"
)

type TestApp struct {
	App      *app.Application
	DB       *pgxpool.Pool
	Notifier *notifier.MockNotifier
	Sandbox  *gateway.SandboxProvider
}

// newTestApp wires a full application against the test containers, with the
// sandbox gateway standing in for the real rails and an in-memory notifier
// recording what would have been sent.
func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	validator := appvalidator.NewValidator()

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	sessionManager := app.NewSessionManager(redisClient)

	orderRepo := repository.NewPostgresOrderRepository(db)
	paymentRepo := repository.NewPostgresPaymentRepository(db)

	mockNotifier := notifier.NewMockNotifier()
	dispatcher := notifier.NewDispatcher(mockNotifier, logger)

	synchronizer := orders.NewSynchronizer(orderRepo, dispatcher, logger)

	sandbox := gateway.NewSandboxProvider()
	gateways := gateway.NewRegistry()
	gateways.Register(domain.CategoryCard, sandbox)
	gateways.Register(domain.CategoryMobileMoney, sandbox)
	gateways.Register(domain.CategoryWallet, sandbox)
	gateways.Register(domain.CategoryCash, gateway.NewCashProvider())

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

	application := app.NewApp(
		cfg,
		logger,
		db,
		redisClient,
		validator,
		sessionManager,
		orderRepo,
		paymentRepo,
		gateways,
		orchestrator,
		synchronizer,
		dispatcher,
	)

	return &TestApp{
		App:      application,
		DB:       db,
		Notifier: mockNotifier,
		Sandbox:  sandbox,
	}, nil
}
