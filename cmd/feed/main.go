package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"MarketFeed/internal/cache"
	"MarketFeed/internal/collector"
	"MarketFeed/internal/config"
	"MarketFeed/internal/model"
	"MarketFeed/internal/notifier"
	"MarketFeed/internal/recorder"
	"MarketFeed/internal/scheduler"
	"MarketFeed/internal/universe"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] MarketFeed starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init adapters
	var crypto, general collector.Adapter
	if cfg.Sources.Mock {
		m := collector.NewMockAdapter("mock")
		m.Synthetic = true
		crypto, general = m, m
		log.Println("[INFO] using synthetic mock sources")
	} else {
		crypto = collector.NewBinanceAdapter(cfg.Sources.CryptoBaseURL, cfg.Sources.Proxy, cfg.Sources.Timeout)
		general = collector.NewYahooAdapter(cfg.Sources.QuoteBaseURL, cfg.Sources.Proxy, cfg.Sources.Timeout)
	}
	log.Printf("[INFO] data sources: crypto=%s general=%s", crypto.Name(), general.Name())
	chain := collector.NewChain(crypto, general)

	// Init universe
	u := universe.Default()
	if groups := cfg.UniverseGroups(); groups != nil {
		u = universe.New(groups)
	}
	for _, sym := range u.Misplaced() {
		log.Printf("[WARN] %s is registered under a different asset type than it classifies as", sym)
	}
	log.Printf("[INFO] universe: %d symbols", u.Len())

	// Init cache
	hc := cache.NewHistoryCache(chain, cache.SystemClock{}, cfg.CachePolicy())
	col := collector.NewCollector(hc)

	// Init snapshot repository and recorder
	repo, rec := openRepository(ctx, cfg)
	defer repo.Close()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, chain, hc, u, repo, rec, scheduler.Options{
		ChunkSize:       cfg.Schedule.ChunkSize,
		ChunkDelay:      cfg.Schedule.ChunkDelay,
		SparklineLength: cfg.Cache.SparklineLength,
		RetainStaleRows: cfg.Snapshot.RetainStaleRows,
	})

	// Init Telegram notifier
	if cfg.TelegramEnabled() {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Sources.Proxy)
		sched.Notifier = tn
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	} else {
		log.Println("[INFO] Telegram not configured, alerts disabled")
	}

	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if cfg.Schedule.RunOnStart {
		log.Println("[INFO] run_on_start enabled, executing refresh pass now")
		go func() {
			sched.RunPass(ctx)
			if ind := col.Indicators(ctx, "BTC-USD", model.Interval1d); len(ind.Closes) > 0 {
				last := len(ind.Closes) - 1
				log.Printf("[INFO] BTC-USD 1d: close=%.2f rsi=%.1f macd=%.2f", ind.Closes[last], ind.RSI[last], ind.MACD.MACD[last])
			}
		}()
	}

	log.Println("[INFO] MarketFeed is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] MarketFeed stopped")
}

// openRepository picks the snapshot backend. The SQLite backend also records
// pass history. Any backend that fails to open degrades to noop.
func openRepository(ctx context.Context, cfg *config.Config) (recorder.Repository, recorder.Recorder) {
	noop := recorder.NewNoopRecorder()
	switch cfg.Snapshot.Backend {
	case config.BackendFile:
		fr, err := recorder.NewFileRepository(cfg.Snapshot.FilePath)
		if err != nil {
			log.Printf("[WARN] init file repository failed, using noop: %v", err)
			return noop, noop
		}
		return fr, noop
	case config.BackendSQLite:
		sr, err := recorder.NewSQLiteRecorder(cfg.Snapshot.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			return noop, noop
		}
		return sr, sr
	case config.BackendRedis:
		rr, err := recorder.NewRedisRepository(ctx, cfg.Snapshot.RedisAddr, cfg.Snapshot.RedisPassword, cfg.Snapshot.RedisDB, cfg.Snapshot.RedisKey)
		if err != nil {
			log.Printf("[WARN] init redis repository failed, using noop: %v", err)
			return noop, noop
		}
		return rr, noop
	default:
		return noop, noop
	}
}
