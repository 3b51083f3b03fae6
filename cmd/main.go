package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/postgres"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/redis"
	"github.com/YelzhanWeb/waiter-orders/internal/app/kitchen"
	"github.com/YelzhanWeb/waiter-orders/internal/app/order"
	"github.com/YelzhanWeb/waiter-orders/internal/app/routing"
	"github.com/YelzhanWeb/waiter-orders/internal/app/tablesync"
	"github.com/YelzhanWeb/waiter-orders/internal/app/tracking"
	"github.com/YelzhanWeb/waiter-orders/internal/config"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/waiter-orders/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/waiter-orders/internal/adapter/http"
)

const (
	modeOrderService    = "order-service"
	modeKitchenWorker   = "kitchen-worker"
	modePaymentListener = "payment-listener"
	modeNotifications   = "notification-subscriber"
	modeMigrate         = "migrate"
)

func main() {
	mode := flag.String("mode", "", "Service mode: order-service, kitchen-worker, payment-listener, notification-subscriber, migrate")
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	prefetch := flag.Int("prefetch", 0, "RabbitMQ prefetch count (overrides config)")
	store := flag.String("store", "postgres", "Order store for order-service: postgres or memory")
	seedPath := flag.String("seed", "seed.yaml", "Floor and menu seed for --store=memory")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}
	if *prefetch > 0 {
		cfg.RabbitMQ.Prefetch = *prefetch
	}

	memoryStore := *store == "memory"
	if memoryStore && *mode != modeOrderService {
		log.Fatalf("--store=memory is only supported by %s", modeOrderService)
	}
	needDB := *mode != modeNotifications && !memoryStore
	needBroker := *mode != modeMigrate && !memoryStore
	if err := cfg.Validate(needDB, needBroker); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lgr := logger.New(*mode)

	var db postgres.DB
	if needDB {
		db, err = postgres.Connect(ctx, cfg.Database, lgr)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()

		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})
	}

	if memoryStore {
		mem, err := memory.LoadSeedFile(*seedPath)
		if err != nil {
			log.Fatalf("Failed to load seed: %v", err)
		}
		lgr.Info("memory_store_loaded", "Using in-memory store without a broker", "startup", map[string]interface{}{
			"seed": *seedPath,
		})
		serveHTTP(ctx, cfg, buildMemoryServices(cfg, mem, lgr), lgr)
		return
	}

	if *mode == modeMigrate {
		if err := postgres.RunMigrations(ctx, db, lgr); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		lgr.Info("migrations_done", "Database schema is up to date", "startup", nil)
		return
	}

	mqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, lgr)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	switch *mode {
	case modeOrderService:
		svcs := buildServices(ctx, cfg, db, rabbitmq.NewPublisher(mqConn), lgr)
		defer svcs.close()
		serveHTTP(ctx, cfg, svcs, lgr)

	case modeKitchenWorker:
		runListener(ctx, cfg, db, mqConn, lgr, "Kitchen Worker", func(c interfaces.MessageConsumer, svc interfaces.OrderService) error {
			return c.ConsumeItemStatus(ctx, amqpAdapter.NewItemStatusHandler(svc, lgr).HandleItemStatus)
		})

	case modePaymentListener:
		runListener(ctx, cfg, db, mqConn, lgr, "Payment Listener", func(c interfaces.MessageConsumer, svc interfaces.OrderService) error {
			return c.ConsumePayments(ctx, amqpAdapter.NewPaymentHandler(svc, lgr).HandlePayment)
		})

	case modeNotifications:
		runNotificationSubscriber(ctx, cfg, mqConn, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

type services struct {
	orders   *order.Service
	tracking *tracking.Service
	close    func()
}

// buildServices wires the order core on top of PostgreSQL and the configured routing cache.
func buildServices(ctx context.Context, cfg *config.Config, db postgres.DB, publisher interfaces.MessagePublisher, lgr logger.Logger) services {
	timeout := cfg.Store.Timeout
	orderRepo := postgres.NewOrderRepository(db, timeout)
	tableRepo := postgres.NewTableRepository(db, timeout)
	stationRepo := postgres.NewStationRepository(db, timeout)

	closeFn := func() {}
	var cache routing.Cache
	switch cfg.Routing.CacheBackend {
	case config.CacheBackendRedis:
		rc := redis.NewCache(cfg.Redis)
		if err := rc.Ping(ctx); err != nil {
			lgr.Error("redis_unreachable", "Redis is unreachable, routing will scan stations until it recovers", "startup", map[string]interface{}{
				"addr": cfg.Redis.Addr,
			}, err)
		}
		cache = rc
		closeFn = func() { _ = rc.Close() }
	default:
		cache = routing.NewMemoryCache(nil)
	}

	resolver := routing.NewResolver(stationRepo, cache, cfg.Routing.CacheTTL, lgr)
	synchronizer := tablesync.NewSynchronizer(tableRepo, orderRepo, lgr)
	projector := kitchen.NewProjector(orderRepo, tableRepo, nil, lgr)

	orderService := order.NewService(order.Params{
		Orders:    orderRepo,
		Tables:    tableRepo,
		Catalog:   postgres.NewCatalogRepository(db, timeout),
		Access:    postgres.NewAccessRepository(db, timeout),
		Router:    resolver,
		TableSync: synchronizer,
		Queue:     projector,
		Publisher: publisher,
		Logger:    lgr,
	})

	return services{
		orders:   orderService,
		tracking: tracking.NewService(orderRepo, tableRepo, stationRepo, lgr),
		close:    closeFn,
	}
}

// buildMemoryServices wires the order core on a seeded in-process store.
// Events are dropped since there is no broker.
func buildMemoryServices(cfg *config.Config, mem *memory.Store, lgr logger.Logger) services {
	resolver := routing.NewResolver(mem.Stations(), routing.NewMemoryCache(nil), cfg.Routing.CacheTTL, lgr)
	orderService := order.NewService(order.Params{
		Orders:    mem.Orders(),
		Tables:    mem.Tables(),
		Catalog:   mem.Catalog(),
		Access:    mem.Access(),
		Router:    resolver,
		TableSync: tablesync.NewSynchronizer(mem.Tables(), mem.Orders(), lgr),
		Queue:     kitchen.NewProjector(mem.Orders(), mem.Tables(), nil, lgr),
		Publisher: interfaces.NopPublisher{},
		Logger:    lgr,
	})
	return services{
		orders:   orderService,
		tracking: tracking.NewService(mem.Orders(), mem.Tables(), mem.Stations(), lgr),
		close:    func() {},
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, svcs services, lgr logger.Logger) {
	router := httpAdapter.NewRouter(
		httpAdapter.NewOrderHandler(svcs.orders, lgr),
		httpAdapter.NewKitchenHandler(svcs.orders, svcs.tracking, lgr),
		httpAdapter.NewTrackingHandler(svcs.tracking, lgr),
		lgr,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Order Service started on port %d", cfg.HTTP.Port), "startup", map[string]interface{}{
		"port":          cfg.HTTP.Port,
		"cache_backend": cfg.Routing.CacheBackend,
		"cache_ttl":     cfg.Routing.CacheTTL.String(),
	})

	go func() {
		<-ctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down Order Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

// runListener runs one queue consumer against the order core until shutdown.
func runListener(ctx context.Context, cfg *config.Config, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, name string,
	consume func(interfaces.MessageConsumer, interfaces.OrderService) error) {
	svcs := buildServices(ctx, cfg, db, rabbitmq.NewPublisher(mqConn), lgr)
	defer svcs.close()

	consumer := rabbitmq.NewConsumer(mqConn, cfg.RabbitMQ.Prefetch, lgr)

	lgr.Info("service_started", fmt.Sprintf("%s started", name), "startup", map[string]interface{}{
		"prefetch": cfg.RabbitMQ.Prefetch,
	})

	if err := consume(consumer, svcs.orders); err != nil && ctx.Err() == nil {
		lgr.Error("consumer_error", fmt.Sprintf("%s stopped consuming", name), "runtime", nil, err)
	}
	lgr.Info("graceful_shutdown", fmt.Sprintf("Shutting down %s", name), "shutdown", nil)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, mqConn rabbitmq.Connection, lgr logger.Logger) {
	consumer := rabbitmq.NewConsumer(mqConn, cfg.RabbitMQ.Prefetch, lgr)
	handler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)

	if err := consumer.ConsumeNotifications(ctx, handler.HandleNotification); err != nil && ctx.Err() == nil {
		lgr.Error("consumer_error", "Error consuming notifications", "runtime", nil, err)
	}
	lgr.Info("graceful_shutdown", "Shutting down Notification Subscriber", "shutdown", nil)
}
