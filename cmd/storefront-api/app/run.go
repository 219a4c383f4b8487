package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/adapter/cache"
	httpadapter "github.com/aq2208/storefront-api/internal/adapter/http"
	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/adapter/kafka"
	"github.com/aq2208/storefront-api/internal/adapter/payment"
	"github.com/aq2208/storefront-api/internal/adapter/queue"
	"github.com/aq2208/storefront-api/internal/adapter/repo"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/aq2208/storefront-api/internal/usecase"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Server *http.Server
	Log    *slog.Logger

	relay    *usecase.RelayOutbox
	every    time.Duration
	rabbit   *queue.Router
	payments *kafka.Consumer
}

// InitWithConfig wires every dependency. cleanup closes what was opened,
// in reverse order.
func InitWithConfig(ctx context.Context, cfg configs.Config) (a *App, cleanup func(), err error) {
	logger := logging.Init(logging.Options{
		Service:  cfg.App.Name,
		FilePath: cfg.App.LogFile,
		Level:    cfg.App.LogLevel,
	})

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { _ = db.Close() })
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, nil, fmt.Errorf("mysql: %w", err)
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	// init rabbitmq: one channel publishes with confirms, one consumes
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: %w", err)
	}
	closers = append(closers, func() { _ = conn.Close() })
	pubCh, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := queue.Declare(pubCh, cfg.Rabbit.Exchange); err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(pubCh, cfg.Rabbit.Exchange)
	if err != nil {
		return nil, nil, err
	}
	subCh, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	// kafka consumer group for replayed payment events
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka: %w", err)
	}
	closers = append(closers, func() { _ = grp.Close() })

	// security
	users, err := security.NewUsers(cfg.Security.Users)
	if err != nil {
		return nil, nil, err
	}
	tokens := security.NewTokens(security.TokenConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   cfg.Security.Issuer,
		Audience: cfg.Security.Audience,
		TTL:      cfg.Security.TTL,
	})
	webhookSig, err := security.NewRSAVerifierFromPEM(cfg.Payment.WebhookPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("webhook key: %w", err)
	}

	gateway, err := payment.New(payment.Options{
		BaseURL: cfg.Payment.BaseURL,
		Key:     cfg.Payment.SecretKey,
		Timeout: cfg.Payment.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	// infra
	orders := repo.NewMySQLOrderRepo(db)
	products := repo.NewMySQLProductRepo(db)
	outbox := repo.NewMySQLOutboxRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)

	// use cases
	createUC := usecase.NewCreateCheckoutIntent(products, orders, idem, outbox, gateway, cfg.Payment.Currency)
	updateUC := usecase.NewUpdateOrderStatus(orders, statusCache, outbox)
	getUC := usecase.NewGetOrder(orders, statusCache)
	reconcileUC := usecase.NewReconcilePayment(orders, statusCache, outbox)
	commitUC := usecase.NewCommitStock(orders, products, idem)
	catalogUC := usecase.NewCatalog(products)

	// background workers
	rabbit := queue.NewRouter(subCh, queue.WithPrefetch(cfg.Rabbit.Prefetch))
	rabbit.Register(queue.OrderStatusChangedQueue, queue.NewStockCommitHandler(commitUC))
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.PaymentsTopic}, kafka.NewPaymentEventHandler(reconcileUC))

	// handlers + router
	timeout := cfg.HTTP.RequestTimeout
	router := httpadapter.NewRouter(httpadapter.Handlers{
		Orders:   httpadapter.NewOrderHandler(updateUC, getUC, timeout),
		Checkout: httpadapter.NewCheckoutHandler(createUC, timeout),
		Catalog:  httpadapter.NewCatalogHandler(catalogUC, usecase.NewCatalogAdmin(products), timeout),
		Tokens:   httpadapter.NewTokenHandler(users, tokens),
		Webhooks: httpadapter.NewWebhookHandler(reconcileUC, timeout),
	}, middleware.NewAuthz(tokens), webhookSig, logging.New("http"))

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		Server:   srv,
		Log:      logger,
		relay:    usecase.NewRelayOutbox(outbox, producer, 100),
		every:    cfg.Rabbit.RelayEvery,
		rabbit:   rabbit,
		payments: consumer,
	}, closeAll, nil
}

// Run starts the workers and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.rabbit.Start(ctx); err != nil {
		return fmt.Errorf("start rabbit consumers: %w", err)
	}
	go a.relay.Run(ctx, a.every)

	errCh := make(chan error, 2)
	go func() {
		if err := a.payments.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}
