// Package main provides the unified bond tracker service:
// - Monitor (continuous): ledger WebSocket stream, event classification, balance reconciliation
// - Coupons (scheduled): due-date checks and proportional coupon distribution
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"xrpl-bond-tracker/internal/coupon"
	"xrpl-bond-tracker/internal/monitor"
	"xrpl-bond-tracker/internal/notify"
	"xrpl-bond-tracker/internal/observability"
	"xrpl-bond-tracker/internal/storage"
	chstore "xrpl-bond-tracker/internal/storage/clickhouse"
	"xrpl-bond-tracker/internal/storage/memory"
	"xrpl-bond-tracker/internal/storage/migrations"
	pgstore "xrpl-bond-tracker/internal/storage/postgres"
	"xrpl-bond-tracker/internal/xrpl"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	wsEndpoint     string
	postgresDSN    string
	clickhouseDSN  string
	useMemory      bool
	issuerAddress  string
	couponInterval time.Duration

	// Stores
	stores *allStores

	// Components
	monitor   *monitor.Monitor
	scheduler *coupon.Scheduler
	logger    *log.Logger

	// State
	mu      sync.Mutex
	started time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	instrumentStore storage.InstrumentStore
	holderStore     storage.HolderStore
	transferStore   storage.TransferStore
	archiveStore    storage.TransferArchive // nil when ClickHouse is not configured
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("XRPL_WS_ENDPOINT"), "XRPL WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional transfer archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	issuerAddress := flag.String("issuer-address", os.Getenv("ISSUER_ADDRESS"), "Issuer wallet classic address for coupon payments")
	issuerSeed := flag.String("issuer-seed", os.Getenv("ISSUER_SEED"), "Issuer wallet seed for coupon payments")
	webhookURL := flag.String("webhook-url", os.Getenv("WEBHOOK_URL"), "Webhook URL for holder notifications")
	couponInterval := flag.Duration("coupon-interval", 1*time.Hour, "Coupon due-date check interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Shared per-instrument locking between the reconciler and the coupon engine
	locks := storage.NewInstrumentLock()

	// Notifications
	var notifier notify.Notifier
	if *webhookURL != "" {
		notifier = notify.NewWebhookNotifier(notify.WebhookOptions{
			URL:    *webhookURL,
			Logger: log.New(os.Stdout, "[notify] ", log.LstdFlags),
		})
	} else {
		notifier = notify.NewLogNotifier(log.New(os.Stdout, "[notify] ", log.LstdFlags))
	}

	// Ledger monitor
	reconciler := monitor.NewReconciler(monitor.ReconcilerOptions{
		Instruments: stores.instrumentStore,
		Holders:     stores.holderStore,
		Transfers:   stores.transferStore,
		Archive:     stores.archiveStore,
		Locks:       locks,
		Notifier:    notifier,
		Logger:      log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	})
	classifier := monitor.NewClassifier(monitor.ClassifierOptions{
		Instruments: stores.instrumentStore,
		Holders:     stores.holderStore,
		Reconciler:  reconciler,
		Logger:      log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	})
	mon := monitor.NewMonitor(monitor.MonitorOptions{
		Endpoint:    *wsEndpoint,
		Instruments: stores.instrumentStore,
		Holders:     stores.holderStore,
		Locks:       locks,
		Classifier:  classifier,
		Logger:      log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	})

	// Coupon distribution (needs a funded issuer wallet)
	var scheduler *coupon.Scheduler
	if *issuerAddress != "" && *issuerSeed != "" {
		wallet, err := xrpl.NewWalletFromSeed(*issuerAddress, *issuerSeed)
		if err != nil {
			logger.Fatalf("Invalid issuer wallet: %v", err)
		}
		engine := coupon.NewEngine(coupon.EngineOptions{
			Instruments:   stores.instrumentStore,
			Holders:       stores.holderStore,
			Transfers:     stores.transferStore,
			Archive:       stores.archiveStore,
			Locks:         locks,
			Submitter:     xrpl.NewDialingSubmitter(*wsEndpoint, nil, wallet),
			IssuerAddress: *issuerAddress,
			Logger:        log.New(os.Stdout, "[coupon] ", log.LstdFlags),
		})
		scheduler = coupon.NewScheduler(coupon.SchedulerOptions{
			Engine:   engine,
			Interval: *couponInterval,
			Logger:   log.New(os.Stdout, "[coupon] ", log.LstdFlags),
		})
	} else {
		logger.Println("Coupon distribution disabled: no issuer wallet configured")
	}

	// Create server
	server := &Server{
		wsEndpoint:     *wsEndpoint,
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		useMemory:      *useMemory,
		issuerAddress:  *issuerAddress,
		couponInterval: *couponInterval,
		stores:         stores,
		monitor:        mon,
		scheduler:      scheduler,
		logger:         logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			instrumentStore: memory.NewInstrumentStore(),
			holderStore:     memory.NewHolderStore(),
			transferStore:   memory.NewTransferStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	stores := &allStores{
		instrumentStore: pgstore.NewInstrumentStore(pool),
		holderStore:     pgstore.NewHolderStore(pool),
		transferStore:   pgstore.NewTransferStore(pool),
	}

	// ClickHouse archive is optional
	if clickhouseDSN == "" {
		return stores, func() { pool.Close() }, nil
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
	}
	stores.archiveStore = chstore.NewTransferArchiveStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the monitor and the coupon scheduler and blocks until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting bond tracker...")

	if err := s.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			s.monitor.Stop()
			return fmt.Errorf("start coupon scheduler: %w", err)
		}
	}

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Println("Bond tracker started")
	<-ctx.Done()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.monitor.Stop()

	return ctx.Err()
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	MonitorDisabled bool      `json:"monitor_disabled"`
	CouponsEnabled  bool      `json:"coupons_enabled"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(started).String(),
		Started:         started,
		MonitorDisabled: s.monitor.Disabled(),
		CouponsEnabled:  s.scheduler != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
