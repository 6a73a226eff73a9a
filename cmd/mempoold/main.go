// Command mempoold runs the transaction mempool core: it restores
// MempoolState from durable storage, wires the Dispatcher, N
// AdmissionWorkers and one BlockAssembler, and serves until an OS
// signal asks it to stop. Following the teacher's cmd/service/main.go
// (50-mini-service-all-features), wiring lives in main and components
// only take what they need through constructor parameters.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zksync-go/mempoold/internal/config"
	"github.com/zksync-go/mempoold/internal/mempool"
	"github.com/zksync-go/mempoold/internal/metrics"
	"github.com/zksync-go/mempoold/internal/storage"
	"github.com/zksync-go/mempoold/internal/watcher"
)

func main() {
	configPath := "mempoold.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(&cfg.Logging)
	logger.Info().Msg("starting mempoold")

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	state, err := mempool.Restore(storage.Adapter{Store: store})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to restore mempool state")
	}
	logger.Info().Int("pending", state.Len()).Msg("restored mempool state from storage")

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fakeWatcher := watcher.NewFake(nil) // replace with the real watcher client in production wiring
	watcherClient := watcher.NewClient(fakeWatcher.Requests())

	maxBlockChunks := cfg.Mempool.MaxBlockSizeChunks()

	admissionInbox := make(chan mempool.AdmissionRequest, cfg.Mempool.ChannelCapacity)
	blockInbox := make(chan mempool.BlockRequest, cfg.Mempool.ChannelCapacity)

	template := mempool.NewAdmissionWorker(
		0,
		storage.Adapter{Store: store},
		state,
		maxBlockChunks,
		cfg.Mempool.MaxNumberOfWithdrawalsPerBlock,
		logger,
	)
	dispatcher := mempool.NewDispatcher(template, admissionInbox, int(cfg.Mempool.NumberOfAdmissionWorkers), cfg.Mempool.ChannelCapacity, recorder)
	assembler := mempool.NewBlockAssembler(state, watcherClient, maxBlockChunks, logger, recorder, blockInbox)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { fakeWatcher.Run(groupCtx); return nil })
	group.Go(func() error { dispatcher.Run(groupCtx); return nil })
	for _, w := range dispatcher.Workers() {
		w := w
		group.Go(func() error { w.Run(groupCtx); return nil })
	}
	group.Go(func() error { assembler.Run(groupCtx); return nil })

	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: promHandler(reg)}
	group.Go(func() error {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down mempoold")
	cancel()
	_ = metricsServer.Close()
	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("mempoold exited with error")
	}
}

func setupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func promHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
