// Command ingestdemo wires an AsyncBatchConsumer end to end and sends a
// handful of demo events.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ingestsdk/go-sdk/config"
	"github.com/ingestsdk/go-sdk/consumer"
	"github.com/ingestsdk/go-sdk/event"
	"github.com/ingestsdk/go-sdk/facade"
	"github.com/ingestsdk/go-sdk/metrics"
	"github.com/ingestsdk/go-sdk/opsserver"
	"github.com/ingestsdk/go-sdk/pager"
	"github.com/ingestsdk/go-sdk/pkg/logging"
	"github.com/ingestsdk/go-sdk/transport"
	"github.com/ingestsdk/go-sdk/workerpool"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.New()

	logCfg := logging.ConfigForEnvironment(cfg.Environment)
	logger, err := logging.New("ingestdemo", logCfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	meters := metrics.Default()

	pool := workerpool.New(workerpool.Config{
		MinWorkers:  max(cfg.WorkerMinCount, cfg.NumNetworkThreads),
		IdleTimeout: cfg.WorkerIdleTimeout,
		Logger:      logger.Logger,
		Meters:      meters,
	})

	if cfg.ResourceAwarePause {
		monitor := workerpool.NewResourceMonitor(pool, cfg.MemoryPauseLimitPct, logger.Logger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go monitor.Run(ctx)
	}

	tr := transport.New(transport.Config{
		ServerURL:       cfg.ServerURL,
		AppID:           cfg.AppID,
		Token:           cfg.Token,
		RequestTimeout:  cfg.RequestTimeout,
		MaxRetries:      cfg.MaxRetries,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxDelay:   cfg.RetryMaxDelay,
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
		CompressGzip:    cfg.CompressGzip,
		Debug:           cfg.Debug,
		SimulateDelay:   cfg.SimulateDelay,
		SimulateResult:  cfg.SimulateResult,
		Logger:          logger.Logger,
		Meters:          meters,
	})

	pg := pager.New(logger.Logger)
	pg.Register(func(code pager.Code, message string) {
		logger.Warn("pager event", slog.String("code", code.String()), slog.String("message", message))
	})

	c := consumer.New(consumer.Config{
		Transport:          tr,
		Pool:               pool,
		Pager:              pg,
		Meters:             meters,
		Logger:             logger.Logger,
		QueueSize:          cfg.QueueSize,
		FlushLen:           cfg.FlushLen,
		Interval:           cfg.Interval,
		CloseRetry:         cfg.CloseRetry,
		QueueWarnThreshold: cfg.QueueWarnThreshold,
	})

	validator := event.NewValidator(cfg.AppID, "com.example.ingestdemo", cfg.Debug)
	client := facade.New(validator, c, logger.Logger)

	if cfg.OpsServerEnabled {
		ops := opsserver.New(meters, pool, pg, logger)
		go func() {
			if err := ops.Listen(":" + cfg.OpsServerPort); err != nil {
				logger.Error("ops server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	runDemo(client, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client.Close(ctx)
	logger.Info("shutdown complete")
}

func runDemo(client *facade.Client, logger *logging.Logger) {
	if err := client.Track("visitor-1", "", "#session_start", map[string]interface{}{
		"#is_first_time": true,
	}); err != nil {
		logger.Warn("demo track failed", slog.String("error", err.Error()))
	}

	if err := client.UserSet("visitor-1", "", map[string]interface{}{
		"plan": "free",
	}); err != nil {
		logger.Warn("demo user_set failed", slog.String("error", err.Error()))
	}

	client.Flush()
}
