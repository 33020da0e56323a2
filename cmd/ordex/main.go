package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordex/internal/capability/sim"
	"ordex/internal/config"
	"ordex/internal/engine"
	"ordex/internal/logger"
	"ordex/internal/store"
	"ordex/internal/store/journal"
	"ordex/internal/store/sqlite"
)

func main() {
	cfgPath := os.Getenv("ORDEX_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, settlement=%s)", cfg.App.Env, cfg.Trading.Settlement)

	// The sim provider serves both local capabilities and the remote path;
	// a production deployment substitutes real invokers here.
	provider := sim.NewProvider(nil)
	eng := engine.New(cfg, provider, provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store.Enabled {
		st, err := sqlite.NewSqliteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("opening store failed: %v", err)
		}
		defer st.Close()
		go store.NewRecorder(st).Run(ctx, eng.Bus().Subscribe(256))

		jr, err := journal.New(cfg.Store.JournalPath)
		if err != nil {
			log.Fatalf("opening journal failed: %v", err)
		}
		defer jr.Close()
		go jr.Run(ctx, eng.Bus().Subscribe(256))
	}

	if watcher, err := config.NewWatcher(cfgPath); err == nil {
		watcher.OnRoutingChange(eng.UpdateRouting)
	} else {
		logger.Warnf("config watcher unavailable: %v", err)
	}

	if cfg.App.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil {
				logger.Errorf("metrics server stopped: %v", err)
			}
		}()
		logger.Infof("metrics listening on %s", cfg.App.MetricsAddr)
	}

	logger.Infof("engine running, waiting for shutdown signal")
	<-ctx.Done()
	logger.Infof("shutting down")
	eng.Close()
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
