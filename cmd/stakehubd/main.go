package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakehub/config"
	"stakehub/native/bank"
	"stakehub/native/staking"
	"stakehub/observability/logging"
	"stakehub/observability/metrics"
	"stakehub/rpc"
	"stakehub/storage"
)

const rpcTokenEnv = "STAKEHUB_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memoryFlag := flag.Bool("memory", false, "Keep ledger state in memory instead of the data directory")
	metricsAddr := flag.String("metrics", "", "Optional listen address for the Prometheus endpoint")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment, logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var state staking.State
	var db storage.Database
	if *memoryFlag || strings.TrimSpace(cfg.DataDir) == "" {
		state = staking.NewMemState()
		logger.Info("using in-memory ledger state")
	} else {
		db, err = storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open data directory", "error", err, "dir", cfg.DataDir)
			os.Exit(1)
		}
		defer db.Close()
		state = staking.NewKVState(db)
		logger.Info("using persistent ledger state", "dir", cfg.DataDir)
	}

	ledger := bank.NewLedger(cfg.Module())

	registry := staking.NewRegistry(state, cfg.OwnerAddress())
	engine := staking.NewEngine(state, registry, ledger, cfg.Module())
	engine.SetCollateral(ledger)
	engine.SetMetrics(metrics.Staking())

	token := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if token == "" {
		token = cfg.RPCToken
	}
	server := rpc.NewServer(registry, engine, token)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	if addr := strings.TrimSpace(*metricsAddr); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics endpoint", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", "error", err)
			os.Exit(1)
		}
	}
}
